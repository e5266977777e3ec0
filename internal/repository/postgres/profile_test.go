package postgres

import (
	"context"
	"testing"

	"hpcredit/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestGetProfileMapsRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	userID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"user_id", "first_name", "last_name", "date_of_birth", "id_type", "id_number",
		"gender", "marital_status", "address_line1", "address_line2", "city", "district",
		"phone_number", "alt_phone_number", "updated_at",
	}).AddRow(userID, "Chikondi", "Banda", "1990-04-12", "national_id", "AB12CD34",
		"F", "married", "Area 47", "", "Lilongwe", "Lilongwe", "+265991234567", "", nil)

	mock.ExpectQuery(`SELECT (.+) FROM applicant_profiles`).WithArgs(userID).WillReturnRows(rows)

	p, err := repo.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Chikondi", p.FirstName)
	assert.Equal(t, domain.IDTypeNationalID, p.IDType)
	assert.True(t, p.HasIdentity())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileAbsentIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM applicant_profiles`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	p, err := repo.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProfileUpsertKeepsStoredValues(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectExec(`INSERT INTO applicant_profiles (.+) ON CONFLICT \(user_id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProfile(context.Background(), &domain.Profile{
		UserID:    uuid.New(),
		FirstName: "Chikondi",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEmploymentParsesFiguresToNullableColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	userID := uuid.New()

	mock.ExpectExec(`INSERT INTO applicant_employment`).
		WithArgs(
			userID, "Acme Ltd", "", "", "",
			nil,               // years_employed: blank
			sqlmock.AnyArg(),  // monthly_income: parsed decimal
			nil,               // other_income: blank
			nil,               // monthly_expenses: unparseable
			nil,               // existing_debt: blank
			sqlmock.AnyArg(),  // dependents: parsed int
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveEmployment(context.Background(), &domain.Employment{
		UserID:          userID,
		EmployerName:    "Acme Ltd",
		MonthlyIncome:   "350,000.50",
		MonthlyExpenses: "about 90k",
		Dependents:      "3",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmploymentRendersFiguresAsText(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	userID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"user_id", "employer_name", "sector", "job_title", "employment_type",
		"years_employed", "monthly_income", "other_income", "monthly_expenses",
		"existing_debt", "dependents",
	}).AddRow(userID, "Acme Ltd", "retail", "clerk", "permanent",
		"4.5", "350000.5", nil, nil, nil, 3)

	mock.ExpectQuery(`SELECT (.+) FROM applicant_employment`).WithArgs(userID).WillReturnRows(rows)

	e, err := repo.GetEmployment(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "4.5", e.YearsEmployed)
	assert.Equal(t, "350000.5", e.MonthlyIncome)
	assert.Equal(t, "", e.OtherIncome)
	assert.Equal(t, "3", e.Dependents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseDecimalText(t *testing.T) {
	assert.Nil(t, parseDecimalText(""))
	assert.Nil(t, parseDecimalText("  "))
	assert.Nil(t, parseDecimalText("not a number"))

	d := parseDecimalText("1,250.75")
	require.NotNil(t, d)
	assert.Equal(t, "1250.75", d.String())
}
