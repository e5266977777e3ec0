package postgres

import (
	"context"
	"database/sql"

	"hpcredit/internal/domain"
	"hpcredit/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ProfileRepository persists applicant profile and employment records. Saves
// are upserts that never overwrite a stored value with an empty one, so a
// partially filled wizard step cannot erase data captured earlier.
type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT user_id, first_name, last_name, date_of_birth, id_type, id_number,
		       gender, marital_status, address_line1, address_line2, city, district,
		       phone_number, alt_phone_number, updated_at
		FROM applicant_profiles
		WHERE user_id = $1
	`
	var p domain.Profile
	err := r.db.GetContext(ctx, &p, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile")
	}
	return &p, nil
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO applicant_profiles (
			user_id, first_name, last_name, date_of_birth, id_type, id_number,
			gender, marital_status, address_line1, address_line2, city, district,
			phone_number, alt_phone_number, updated_at
		) VALUES (
			:user_id, :first_name, :last_name, :date_of_birth, :id_type, :id_number,
			:gender, :marital_status, :address_line1, :address_line2, :city, :district,
			:phone_number, :alt_phone_number, NOW()
		)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name       = COALESCE(NULLIF(EXCLUDED.first_name, ''), applicant_profiles.first_name),
			last_name        = COALESCE(NULLIF(EXCLUDED.last_name, ''), applicant_profiles.last_name),
			date_of_birth    = COALESCE(NULLIF(EXCLUDED.date_of_birth, ''), applicant_profiles.date_of_birth),
			id_type          = COALESCE(NULLIF(EXCLUDED.id_type, ''), applicant_profiles.id_type),
			id_number        = COALESCE(NULLIF(EXCLUDED.id_number, ''), applicant_profiles.id_number),
			gender           = COALESCE(NULLIF(EXCLUDED.gender, ''), applicant_profiles.gender),
			marital_status   = COALESCE(NULLIF(EXCLUDED.marital_status, ''), applicant_profiles.marital_status),
			address_line1    = COALESCE(NULLIF(EXCLUDED.address_line1, ''), applicant_profiles.address_line1),
			address_line2    = COALESCE(NULLIF(EXCLUDED.address_line2, ''), applicant_profiles.address_line2),
			city             = COALESCE(NULLIF(EXCLUDED.city, ''), applicant_profiles.city),
			district         = COALESCE(NULLIF(EXCLUDED.district, ''), applicant_profiles.district),
			phone_number     = COALESCE(NULLIF(EXCLUDED.phone_number, ''), applicant_profiles.phone_number),
			alt_phone_number = COALESCE(NULLIF(EXCLUDED.alt_phone_number, ''), applicant_profiles.alt_phone_number),
			updated_at       = NOW()
	`
	_, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return errors.Wrap(err, "failed to save profile")
	}
	return nil
}

// employmentRow is the storage shape of an employment record: money figures
// live as NUMERIC columns, NULL meaning "not provided".
type employmentRow struct {
	UserID          uuid.UUID        `db:"user_id"`
	EmployerName    string           `db:"employer_name"`
	Sector          string           `db:"sector"`
	JobTitle        string           `db:"job_title"`
	EmploymentType  string           `db:"employment_type"`
	YearsEmployed   *decimal.Decimal `db:"years_employed"`
	MonthlyIncome   *decimal.Decimal `db:"monthly_income"`
	OtherIncome     *decimal.Decimal `db:"other_income"`
	MonthlyExpenses *decimal.Decimal `db:"monthly_expenses"`
	ExistingDebt    *decimal.Decimal `db:"existing_debt"`
	Dependents      *int             `db:"dependents"`
}

func (r *ProfileRepository) GetEmployment(ctx context.Context, userID uuid.UUID) (*domain.Employment, error) {
	query := `
		SELECT user_id, employer_name, sector, job_title, employment_type,
		       years_employed, monthly_income, other_income, monthly_expenses,
		       existing_debt, dependents
		FROM applicant_employment
		WHERE user_id = $1
	`
	var row employmentRow
	err := r.db.GetContext(ctx, &row, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get employment")
	}

	e := domain.Employment{
		UserID:          row.UserID,
		EmployerName:    row.EmployerName,
		Sector:          row.Sector,
		JobTitle:        row.JobTitle,
		EmploymentType:  row.EmploymentType,
		YearsEmployed:   decimalText(row.YearsEmployed),
		MonthlyIncome:   decimalText(row.MonthlyIncome),
		OtherIncome:     decimalText(row.OtherIncome),
		MonthlyExpenses: decimalText(row.MonthlyExpenses),
		ExistingDebt:    decimalText(row.ExistingDebt),
	}
	if row.Dependents != nil {
		e.Dependents = intText(*row.Dependents)
	}
	return &e, nil
}

func (r *ProfileRepository) SaveEmployment(ctx context.Context, employment *domain.Employment) error {
	row := employmentRow{
		UserID:          employment.UserID,
		EmployerName:    employment.EmployerName,
		Sector:          employment.Sector,
		JobTitle:        employment.JobTitle,
		EmploymentType:  employment.EmploymentType,
		YearsEmployed:   parseDecimalText(employment.YearsEmployed),
		MonthlyIncome:   parseDecimalText(employment.MonthlyIncome),
		OtherIncome:     parseDecimalText(employment.OtherIncome),
		MonthlyExpenses: parseDecimalText(employment.MonthlyExpenses),
		ExistingDebt:    parseDecimalText(employment.ExistingDebt),
		Dependents:      parseIntText(employment.Dependents),
	}

	query := `
		INSERT INTO applicant_employment (
			user_id, employer_name, sector, job_title, employment_type,
			years_employed, monthly_income, other_income, monthly_expenses,
			existing_debt, dependents, updated_at
		) VALUES (
			:user_id, :employer_name, :sector, :job_title, :employment_type,
			:years_employed, :monthly_income, :other_income, :monthly_expenses,
			:existing_debt, :dependents, NOW()
		)
		ON CONFLICT (user_id) DO UPDATE SET
			employer_name    = COALESCE(NULLIF(EXCLUDED.employer_name, ''), applicant_employment.employer_name),
			sector           = COALESCE(NULLIF(EXCLUDED.sector, ''), applicant_employment.sector),
			job_title        = COALESCE(NULLIF(EXCLUDED.job_title, ''), applicant_employment.job_title),
			employment_type  = COALESCE(NULLIF(EXCLUDED.employment_type, ''), applicant_employment.employment_type),
			years_employed   = COALESCE(EXCLUDED.years_employed, applicant_employment.years_employed),
			monthly_income   = COALESCE(EXCLUDED.monthly_income, applicant_employment.monthly_income),
			other_income     = COALESCE(EXCLUDED.other_income, applicant_employment.other_income),
			monthly_expenses = COALESCE(EXCLUDED.monthly_expenses, applicant_employment.monthly_expenses),
			existing_debt    = COALESCE(EXCLUDED.existing_debt, applicant_employment.existing_debt),
			dependents       = COALESCE(EXCLUDED.dependents, applicant_employment.dependents),
			updated_at       = NOW()
	`
	_, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to save employment")
	}
	return nil
}
