package wizard

import (
	"context"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"
)

// CaptureStage names a state of the identity capture subflow.
type CaptureStage string

const (
	CaptureStart   CaptureStage = "start"
	CaptureFront   CaptureStage = "front"
	CaptureBack    CaptureStage = "back"
	CaptureParsing CaptureStage = "parsing"
	CaptureDone    CaptureStage = "done"
)

// Capture holds the identity-document capture subflow: two images, the parse
// outcome, and the last parse error (shown inline, cleared on retry).
type Capture struct {
	Stage      CaptureStage                   `json:"stage"`
	FrontImage []byte                         `json:"front_image,omitempty"`
	BackImage  []byte                         `json:"back_image,omitempty"`
	Parsed     *domain.ParsedIdentityDocument `json:"parsed,omitempty"`
	LastError  string                         `json:"last_error,omitempty"`
}

// settled reports whether the subflow permits leaving the capture step:
// either never started or fully done.
func (c Capture) settled() bool {
	return c.Stage == CaptureStart || c.Stage == CaptureDone
}

// BeginCapture moves from the start screen to front-image acquisition.
func (s *Session) BeginCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Capture.Stage != CaptureStart {
		return errors.ErrCaptureWrongState
	}
	s.Capture.Stage = CaptureFront
	return nil
}

// ProvideImage stores the image for the stage the subflow is currently in.
func (s *Session) ProvideImage(image []byte) error {
	if len(image) == 0 {
		return errors.ErrImageMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.Capture.Stage {
	case CaptureFront:
		s.Capture.FrontImage = image
	case CaptureBack:
		s.Capture.BackImage = image
	default:
		return errors.ErrCaptureWrongState
	}
	return nil
}

// RetakeImage clears the image for the current stage; the stage itself does
// not change.
func (s *Session) RetakeImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.Capture.Stage {
	case CaptureFront:
		s.Capture.FrontImage = nil
	case CaptureBack:
		s.Capture.BackImage = nil
	default:
		return errors.ErrCaptureWrongState
	}
	return nil
}

// ConfirmImage accepts the image for the current stage. Confirming the front
// advances to the back; confirming the back submits both images for parsing.
func (s *Session) ConfirmImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.Capture.Stage {
	case CaptureFront:
		if len(s.Capture.FrontImage) == 0 {
			return errors.ErrImageMissing
		}
		s.Capture.Stage = CaptureBack
		return nil
	case CaptureBack:
		if len(s.Capture.BackImage) == 0 {
			return errors.ErrImageMissing
		}
		s.Capture.Stage = CaptureParsing
		s.Capture.LastError = ""
		s.parseIdentity()
		return nil
	default:
		return errors.ErrCaptureWrongState
	}
}

// parseIdentity submits both images to the OCR collaborator. On success the
// recognized fields overwrite the profile and the subflow completes; the
// Personal Information step is the applicant's point of correction. On
// failure the subflow returns to the back image for a retake or retry.
// Caller holds the session lock.
func (s *Session) parseIdentity() {
	front := s.Capture.FrontImage
	back := s.Capture.BackImage

	s.spawn(func(ctx context.Context) {
		parsed, err := s.deps.Parser.Parse(ctx, front, back)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.Capture.Stage != CaptureParsing {
			return // skipped or restarted while parsing
		}
		if err != nil {
			s.log.Warn("identity parse failed", map[string]interface{}{"session_id": s.ID.String(), "error": err.Error()})
			s.Capture.LastError = errors.Display(err)
			s.Capture.Stage = CaptureBack
			return
		}
		s.Capture.Parsed = parsed
		s.Capture.Stage = CaptureDone
		s.mergeParsed(parsed)
	})
}

// mergeParsed copies every recognized field onto the profile. Parsed values
// take precedence over whatever was there at parse time. Caller holds the
// session lock.
func (s *Session) mergeParsed(doc *domain.ParsedIdentityDocument) {
	if doc == nil {
		return
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&s.Profile.FirstName, doc.FirstName)
	setString(&s.Profile.LastName, doc.LastName)
	setString(&s.Profile.DateOfBirth, doc.DateOfBirth)
	setString(&s.Profile.IDNumber, doc.IDNumber)
	setString(&s.Profile.Gender, doc.Gender)
	setString(&s.Profile.AddressLine1, doc.AddressLine1)
	setString(&s.Profile.AddressLine2, doc.AddressLine2)
	setString(&s.Profile.City, doc.City)
	setString(&s.Profile.District, doc.District)
	if doc.IDType != nil {
		s.Profile.IDType = *doc.IDType
	}
}

// SkipCapture abandons any in-progress capture and jumps the wizard straight
// to Personal Information. Available from every capture state.
func (s *Session) SkipCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow.Kind != domain.FlowFull {
		return errors.ErrCaptureWrongState
	}
	s.Capture = Capture{Stage: CaptureStart}
	if idx := s.flow.IndexOf(StepPersonalInfo); idx > s.StepIndex {
		s.StepIndex = idx
	}
	return nil
}
