package wizard

import (
	"context"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"
)

// Advance moves the wizard one step forward. It enforces the current step's
// gating predicate and runs the commit side effects tied to leaving specific
// steps: draft creation when leaving Review, document upload when leaving
// Documents, finalization when leaving Sign & Consent. A failed side effect
// keeps the wizard on the current step so the applicant can retry.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Completed {
		return errors.ErrAlreadyAtLastStep
	}

	step := s.flow.Steps[s.StepIndex]
	if err := s.gateLocked(step); err != nil {
		s.StepError = err.Error()
		return err
	}

	lastStep := s.StepIndex == len(s.flow.Steps)-1

	switch {
	case step == StepReview && s.flow.Kind == domain.FlowFull:
		if err := s.createDraftLocked(ctx); err != nil {
			s.StepError = errors.Display(err)
			return err
		}

	case step == StepReview && s.flow.Kind == domain.FlowCondensed:
		// Condensed flow submits immediately after review: create the
		// draft and finalize without documents or wet signature.
		if err := s.createDraftLocked(ctx); err != nil {
			s.StepError = errors.Display(err)
			return err
		}
		if err := s.deps.Apps.Submit(ctx, *s.DraftID); err != nil {
			s.StepError = errors.Display(err)
			return err
		}
		s.Completed = true
		s.StepError = ""
		return nil

	case step == StepDocuments:
		if err := s.attachDocumentsLocked(ctx); err != nil {
			s.StepError = errors.Display(err)
			return err
		}

	case step == StepSignConsent:
		if err := s.finalizeLocked(ctx); err != nil {
			s.StepError = errors.Display(err)
			return err
		}
		s.Completed = true
		s.StepError = ""
		return nil
	}

	if lastStep {
		s.Completed = true
		s.StepError = ""
		return nil
	}

	s.StepIndex++
	s.StepError = ""

	// Entering the final step re-initializes the signature surface.
	if s.flow.Steps[s.StepIndex] == StepSignConsent {
		s.Pad.Clear()
	}
	return nil
}

// Back moves one step backward. It never re-triggers side effects; once a
// draft exists, revisiting earlier steps and advancing again will not create
// a second draft. A completed session is terminal: stepping back would leave
// it stranded, since Advance refuses completed sessions.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Completed {
		return errors.ErrSessionCompleted
	}
	if s.StepIndex == 0 {
		return errors.ErrAlreadyAtFirstStep
	}
	s.StepIndex--
	s.StepError = ""
	return nil
}

// gateLocked is the per-step advance predicate. Steps without an entry here
// allow free navigation.
func (s *Session) gateLocked(step Step) error {
	switch step {
	case StepIdentityCapture:
		if !s.Capture.settled() {
			return errors.ErrCaptureInProgress
		}
	case StepShopping:
		if s.MerchantID == "" || s.BranchID == "" || !s.totalLocked().IsPositive() {
			return errors.ErrShoppingIncomplete
		}
	case StepPlanSelection:
		if s.ProductID == "" || s.TermMonths <= 0 || s.Calculation == nil {
			return errors.ErrPlanIncomplete
		}
	}
	return nil
}

// SignatureEvent is one pointer/touch event applied to the signature surface.
type SignatureEvent struct {
	Type string  `json:"type" validate:"required,oneof=down move up leave"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// ApplySignature feeds pointer events to the signature pad. The surface is
// only mutable while the Sign & Consent step is active.
func (s *Session) ApplySignature(events []SignatureEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow.Steps[s.StepIndex] != StepSignConsent {
		return errors.ErrSignatureInactive
	}
	for _, ev := range events {
		switch ev.Type {
		case "down":
			s.Pad.Down(ev.X, ev.Y)
		case "move":
			s.Pad.Move(ev.X, ev.Y)
		case "up", "leave":
			s.Pad.Up()
		}
	}
	return nil
}

// ClearSignature wipes the signature surface.
func (s *Session) ClearSignature() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow.Steps[s.StepIndex] != StepSignConsent {
		return errors.ErrSignatureInactive
	}
	s.Pad.Clear()
	return nil
}
