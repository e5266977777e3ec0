package wizard

import (
	"context"
	"strings"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"

	"github.com/shopspring/decimal"
)

// The draft lifecycle is a strictly ordered, at-most-once commit sequence:
// create (profile + employment + draft + best-effort references), attach
// documents (sequential, fatal on first failure), finalize (gated consent
// submission). Each phase only starts after the previous one's round-trip
// resolved; all three run synchronously under the session lock.

// createDraftLocked persists the wizard's accumulated state and creates the
// draft application. Invoking it again once a draft id exists is a no-op.
func (s *Session) createDraftLocked(ctx context.Context) error {
	if s.DraftID != nil {
		return nil
	}

	if err := s.deps.Profiles.SaveProfile(ctx, &s.Profile); err != nil {
		return errors.Wrap(err, "failed to persist profile")
	}
	if err := s.deps.Profiles.SaveEmployment(ctx, &s.Employment); err != nil {
		return errors.Wrap(err, "failed to persist employment")
	}

	total := s.totalLocked()
	downpayment := decimal.Zero
	financed := total
	if s.Calculation != nil {
		downpayment = s.Calculation.Downpayment
		financed = s.Calculation.TotalFinanced
	}

	app := &domain.Application{
		UserID:        s.UserID,
		MerchantID:    s.MerchantID,
		BranchID:      s.BranchID,
		ProductID:     s.ProductID,
		TermMonths:    s.TermMonths,
		TotalAmount:   total,
		Downpayment:   downpayment,
		TotalFinanced: financed,
		Status:        domain.ApplicationStatusDraft,
		Items:         s.validItemsLocked(),
	}

	id, ref, err := s.deps.Apps.CreateDraft(ctx, app)
	if err != nil {
		return errors.Wrap(err, "failed to create draft application")
	}
	s.DraftID = &id
	s.ReferenceNumber = ref

	s.log.Info("draft application created", map[string]interface{}{
		"session_id":       s.ID.String(),
		"application_id":   id.String(),
		"reference_number": ref,
	})

	// Reference sync is best-effort per item: a failure is logged and the
	// loop completes for the remaining references.
	for i := range s.References {
		if s.References[i].Synced {
			continue
		}
		if err := s.deps.Apps.AddReference(ctx, id, s.References[i]); err != nil {
			s.log.Warn("reference sync failed", map[string]interface{}{
				"application_id": id.String(),
				"reference_id":   s.References[i].ID.String(),
				"error":          err.Error(),
			})
			continue
		}
		s.References[i].Synced = true
	}
	return nil
}

// attachDocumentsLocked uploads the locally held documents one by one. The
// first failure aborts the batch; documents already uploaded keep their
// status and are skipped when the batch is retried.
func (s *Session) attachDocumentsLocked(ctx context.Context) error {
	if s.DraftID == nil {
		return errors.ErrDraftNotCreated
	}
	for i := range s.Documents {
		if s.Documents[i].Uploaded {
			continue
		}
		if err := s.deps.Apps.AttachDocument(ctx, *s.DraftID, s.Documents[i]); err != nil {
			s.log.Error("document upload failed", map[string]interface{}{
				"application_id": s.DraftID.String(),
				"document_id":    s.Documents[i].ID.String(),
				"error":          err.Error(),
			})
			return errors.Wrap(err, "failed to upload document")
		}
		s.Documents[i].Uploaded = true
	}
	return nil
}

// finalizeLocked submits the signed consent. It requires a non-empty
// signature, a non-empty typed name, and the agreement flag; the stroke list
// is rasterized only here.
func (s *Session) finalizeLocked(ctx context.Context) error {
	if s.DraftID == nil {
		return errors.ErrDraftNotCreated
	}
	if !s.Pad.HasContent() || strings.TrimSpace(s.TypedName) == "" || !s.Agreed {
		return errors.ErrConsentIncomplete
	}

	signature, err := s.Pad.EncodePNG()
	if err != nil {
		return errors.Wrap(err, "failed to encode signature")
	}

	consent := domain.SignatureConsent{
		SignaturePNG: signature,
		TypedName:    strings.TrimSpace(s.TypedName),
		Agreed:       s.Agreed,
	}
	if err := s.deps.Apps.SubmitWithConsent(ctx, *s.DraftID, consent); err != nil {
		return errors.Wrap(err, "failed to submit application")
	}

	s.log.Info("application submitted", map[string]interface{}{
		"session_id":     s.ID.String(),
		"application_id": s.DraftID.String(),
	})
	return nil
}
