package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ApplicationRepository persists draft applications, their line items,
// references, documents and the final signed consent.
type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateDraft inserts the application envelope and its line items in one
// transaction and returns the generated id and human-readable reference
// number.
func (r *ApplicationRepository) CreateDraft(ctx context.Context, app *domain.Application) (uuid.UUID, string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, "", errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('application_reference_seq')`); err != nil {
		return uuid.Nil, "", errors.Wrap(err, "failed to allocate reference number")
	}
	id := uuid.New()
	ref := fmt.Sprintf("APP-%04d", seq)

	query := `
		INSERT INTO applications (
			id, reference_number, user_id, merchant_id, branch_id, product_id,
			term_months, total_amount, downpayment, total_financed, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err = tx.ExecContext(ctx, query,
		id, ref, app.UserID, app.MerchantID, app.BranchID, app.ProductID,
		app.TermMonths, app.TotalAmount, app.Downpayment, app.TotalFinanced,
		domain.ApplicationStatusDraft,
	)
	if err != nil {
		return uuid.Nil, "", errors.Wrap(err, "failed to create application")
	}

	itemQuery := `
		INSERT INTO application_items (id, application_id, category_id, category_label, unit_price, quantity, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, item := range app.Items {
		_, err = tx.ExecContext(ctx, itemQuery,
			uuid.New(), id, item.CategoryID, item.CategoryLabel, item.UnitPrice, item.Quantity, item.Description,
		)
		if err != nil {
			return uuid.Nil, "", errors.Wrap(err, "failed to insert application item")
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, "", errors.Wrap(err, "failed to commit draft application")
	}
	return id, ref, nil
}

func (r *ApplicationRepository) AddReference(ctx context.Context, appID uuid.UUID, ref domain.Reference) error {
	query := `
		INSERT INTO application_references (id, application_id, name, relationship, phone, address, directions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		ref.ID, appID, ref.Name, ref.Relationship, ref.Phone, ref.Address, ref.Directions,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add reference")
	}
	return nil
}

func (r *ApplicationRepository) AttachDocument(ctx context.Context, appID uuid.UUID, doc domain.DocumentAttachment) error {
	query := `
		INSERT INTO application_documents (id, application_id, doc_type, file_name, content, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, doc.ID, appID, doc.Type, doc.FileName, doc.Content)
	if err != nil {
		return errors.Wrap(err, "failed to attach document")
	}
	return nil
}

// SubmitWithConsent stores the signed consent and flips the application to
// submitted in one transaction.
func (r *ApplicationRepository) SubmitWithConsent(ctx context.Context, appID uuid.UUID, consent domain.SignatureConsent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	consentQuery := `
		INSERT INTO application_consents (id, application_id, signature_png, typed_name, agreed, signed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err = tx.ExecContext(ctx, consentQuery, uuid.New(), appID, consent.SignaturePNG, consent.TypedName, consent.Agreed)
	if err != nil {
		return errors.Wrap(err, "failed to store consent")
	}

	if err := submitTx(ctx, tx, appID); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit submission")
}

// Submit flips a draft application to submitted without consent collateral.
func (r *ApplicationRepository) Submit(ctx context.Context, appID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := submitTx(ctx, tx, appID); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit submission")
}

func submitTx(ctx context.Context, tx *sqlx.Tx, appID uuid.UUID) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		domain.ApplicationStatusSubmitted, appID, domain.ApplicationStatusDraft,
	)
	if err != nil {
		return errors.Wrap(err, "failed to submit application")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check submission result")
	}
	if rows == 0 {
		return errors.ErrApplicationNotFound
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := `
		SELECT id, reference_number, user_id, merchant_id, branch_id, product_id,
		       term_months, total_amount, downpayment, total_financed, status,
		       created_at, updated_at
		FROM applications
		WHERE id = $1
	`
	var app domain.Application
	err := r.db.GetContext(ctx, &app, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get application")
	}

	itemQuery := `
		SELECT category_id, category_label, unit_price, quantity, description
		FROM application_items
		WHERE application_id = $1
	`
	if err := r.db.SelectContext(ctx, &app.Items, itemQuery, id); err != nil {
		return nil, errors.Wrap(err, "failed to get application items")
	}
	return &app, nil
}
