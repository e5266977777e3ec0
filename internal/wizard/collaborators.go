package wizard

import (
	"context"

	"hpcredit/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog is the external lookup service for merchants, branches, categories
// and eligible credit products.
type Catalog interface {
	Merchants(ctx context.Context) ([]domain.Merchant, error)
	Branches(ctx context.Context, merchantID string) ([]domain.Branch, error)
	Categories(ctx context.Context, merchantID string) ([]domain.Category, error)
	EligibleProducts(ctx context.Context, merchantID string, totalAmount decimal.Decimal) ([]domain.CreditProduct, error)
}

// Calculator is the external amortization and fee engine. Its internals are
// opaque; the wizard only consumes the computed plan.
type Calculator interface {
	Calculate(ctx context.Context, productID string, totalAmount decimal.Decimal, termMonths int) (*domain.CalculationResult, error)
}

// IdentityParser is the external OCR service for two-sided identity documents.
type IdentityParser interface {
	Parse(ctx context.Context, frontImage, backImage []byte) (*domain.ParsedIdentityDocument, error)
}

// ProfileStore persists applicant profile and employment records. Empty
// fields on save must not overwrite previously stored values.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	GetEmployment(ctx context.Context, userID uuid.UUID) (*domain.Employment, error)
	SaveProfile(ctx context.Context, profile *domain.Profile) error
	SaveEmployment(ctx context.Context, employment *domain.Employment) error
}

// ApplicationStore persists the draft application and everything attached to
// it. AddReference calls are independent of each other; AttachDocument calls
// are sequential and a failure is fatal to the caller's batch.
type ApplicationStore interface {
	CreateDraft(ctx context.Context, app *domain.Application) (id uuid.UUID, referenceNumber string, err error)
	AddReference(ctx context.Context, appID uuid.UUID, ref domain.Reference) error
	AttachDocument(ctx context.Context, appID uuid.UUID, doc domain.DocumentAttachment) error
	SubmitWithConsent(ctx context.Context, appID uuid.UUID, consent domain.SignatureConsent) error
	Submit(ctx context.Context, appID uuid.UUID) error
}

// SnapshotStore persists serializable session snapshots so an interrupted
// wizard session can be resumed.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Deps bundles every collaborator a wizard session needs.
type Deps struct {
	Catalog  Catalog
	Calc     Calculator
	Parser   IdentityParser
	Profiles ProfileStore
	Apps     ApplicationStore
}
