package wizard

import (
	"context"
	"fmt"
	"testing"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCaptureHappyPath(t *testing.T) {
	env := newTestEnv()
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		assert.Equal(t, []byte("front-img"), front)
		assert.Equal(t, []byte("back-img"), back)
		return &domain.ParsedIdentityDocument{
			FirstName: strPtr("Chikondi"),
			LastName:  strPtr("Banda"),
			IDNumber:  strPtr("AB12CD34"),
		}, nil
	}

	s := env.session(domain.FlowFull)
	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("front-img")))
	require.NoError(t, s.ConfirmImage())
	assert.Equal(t, CaptureBack, s.View().Capture.Stage)

	require.NoError(t, s.ProvideImage([]byte("back-img")))
	require.NoError(t, s.ConfirmImage())
	s.Settle()

	v := s.View()
	assert.Equal(t, CaptureDone, v.Capture.Stage)
	assert.Equal(t, "Chikondi", v.Profile.FirstName)
	assert.Equal(t, "Banda", v.Profile.LastName)
	assert.Equal(t, "AB12CD34", v.Profile.IDNumber)
}

func TestCaptureParsedFieldsOverwriteProfile(t *testing.T) {
	env := newTestEnv()
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		return &domain.ParsedIdentityDocument{
			FirstName: strPtr("Y"),
			LastName:  strPtr("Z"),
		}, nil
	}

	s := env.session(domain.FlowFull)
	s.UpdateProfile(domain.Profile{FirstName: "X"})

	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))
	require.NoError(t, s.ConfirmImage())
	require.NoError(t, s.ProvideImage([]byte("b")))
	require.NoError(t, s.ConfirmImage())
	s.Settle()

	v := s.View()
	assert.Equal(t, "Y", v.Profile.FirstName, "parsed values take precedence")
	assert.Equal(t, "Z", v.Profile.LastName)
}

func TestCaptureUnrecognizedFieldsLeaveProfileAlone(t *testing.T) {
	env := newTestEnv()
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		return &domain.ParsedIdentityDocument{FirstName: strPtr("Y")}, nil
	}

	s := env.session(domain.FlowFull)
	s.UpdateProfile(domain.Profile{LastName: "Keep", City: "Zomba"})

	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))
	require.NoError(t, s.ConfirmImage())
	require.NoError(t, s.ProvideImage([]byte("b")))
	require.NoError(t, s.ConfirmImage())
	s.Settle()

	v := s.View()
	assert.Equal(t, "Y", v.Profile.FirstName)
	assert.Equal(t, "Keep", v.Profile.LastName)
	assert.Equal(t, "Zomba", v.Profile.City)
}

func TestCaptureParseFailureReturnsToBack(t *testing.T) {
	env := newTestEnv()
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		return nil, &errors.APIError{Status: 422, Message: "Document is too blurry"}
	}

	s := env.session(domain.FlowFull)
	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))
	require.NoError(t, s.ConfirmImage())
	require.NoError(t, s.ProvideImage([]byte("b")))
	require.NoError(t, s.ConfirmImage())
	s.Settle()

	v := s.View()
	assert.Equal(t, CaptureBack, v.Capture.Stage, "parse failure returns to the back image for retry")
	assert.Equal(t, "Document is too blurry", v.Capture.LastError)
	assert.Nil(t, v.Capture.Parsed)
}

func TestCaptureParseFailureGenericMessage(t *testing.T) {
	env := newTestEnv()
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		return nil, fmt.Errorf("connection reset")
	}

	s := env.session(domain.FlowFull)
	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))
	require.NoError(t, s.ConfirmImage())
	require.NoError(t, s.ProvideImage([]byte("b")))
	require.NoError(t, s.ConfirmImage())
	s.Settle()

	v := s.View()
	assert.Equal(t, CaptureBack, v.Capture.Stage)
	assert.Equal(t, "Something went wrong. Please try again.", v.Capture.LastError)
}

func TestCaptureRetakeClearsImageAndKeepsStage(t *testing.T) {
	env := newTestEnv()
	s := env.session(domain.FlowFull)

	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("blurry")))
	require.NoError(t, s.RetakeImage())

	v := s.View()
	assert.Equal(t, CaptureFront, v.Capture.Stage)
	assert.Empty(t, v.Capture.FrontImage)

	// Confirming without an image is rejected.
	assert.ErrorIs(t, s.ConfirmImage(), errors.ErrImageMissing)
}

func TestCaptureRejectsOutOfOrderActions(t *testing.T) {
	env := newTestEnv()
	s := env.session(domain.FlowFull)

	assert.ErrorIs(t, s.ProvideImage([]byte("x")), errors.ErrCaptureWrongState)
	assert.ErrorIs(t, s.RetakeImage(), errors.ErrCaptureWrongState)
	assert.ErrorIs(t, s.ConfirmImage(), errors.ErrCaptureWrongState)

	require.NoError(t, s.BeginCapture())
	assert.ErrorIs(t, s.BeginCapture(), errors.ErrCaptureWrongState)
	assert.ErrorIs(t, s.ProvideImage(nil), errors.ErrImageMissing)
}

func TestSkipCaptureJumpsToPersonalInfo(t *testing.T) {
	env := newTestEnv()
	s := env.session(domain.FlowFull)

	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))

	require.NoError(t, s.SkipCapture())

	assert.Equal(t, StepPersonalInfo, s.CurrentStep())
	v := s.View()
	assert.Equal(t, CaptureStart, v.Capture.Stage, "in-progress capture is abandoned")
	assert.Empty(t, v.Capture.FrontImage)
	assert.Empty(t, v.Profile.FirstName, "skip sets no parsed fields")
}

func TestSkipCaptureWhileParsingDiscardsResult(t *testing.T) {
	env := newTestEnv()
	gate := make(chan struct{})
	env.parser.fn = func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
		<-gate
		return &domain.ParsedIdentityDocument{FirstName: strPtr("Late")}, nil
	}

	s := env.session(domain.FlowFull)
	require.NoError(t, s.BeginCapture())
	require.NoError(t, s.ProvideImage([]byte("f")))
	require.NoError(t, s.ConfirmImage())
	require.NoError(t, s.ProvideImage([]byte("b")))
	require.NoError(t, s.ConfirmImage())

	require.NoError(t, s.SkipCapture())
	close(gate)
	s.Settle()

	v := s.View()
	assert.Equal(t, CaptureStart, v.Capture.Stage)
	assert.Empty(t, v.Profile.FirstName, "a parse resolving after skip must not merge")
}
