// Package domain defines the core business entities for the hire-purchase
// application wizard.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlowKind selects which wizard flow shape a session runs.
type FlowKind string

const (
	FlowFull      FlowKind = "full"
	FlowCondensed FlowKind = "condensed"
)

// ApplicationStatus represents the lifecycle status of an application record.
type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
)

// IDType enumerates accepted identity document types.
type IDType string

const (
	IDTypeNationalID     IDType = "national_id"
	IDTypePassport       IDType = "passport"
	IDTypeDriversLicense IDType = "drivers_license"
)

// DocumentType tags an uploaded supporting file.
type DocumentType string

const (
	DocumentTypePayslip        DocumentType = "payslip"
	DocumentTypeBankStatement  DocumentType = "bank_statement"
	DocumentTypeProofOfAddress DocumentType = "proof_of_address"
	DocumentTypeEmployerLetter DocumentType = "employer_letter"
	DocumentTypeOther          DocumentType = "other"
)

// ReferenceRelationship enumerates accepted personal reference relationships.
type ReferenceRelationship string

const (
	RelationshipSpouse    ReferenceRelationship = "spouse"
	RelationshipParent    ReferenceRelationship = "parent"
	RelationshipSibling   ReferenceRelationship = "sibling"
	RelationshipFriend    ReferenceRelationship = "friend"
	RelationshipColleague ReferenceRelationship = "colleague"
)

// Profile is the applicant identity/contact record. String fields are kept as
// entered; empty means "not provided" and must never clobber stored values on
// persistence.
type Profile struct {
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	DateOfBirth    string     `json:"date_of_birth" db:"date_of_birth"`
	IDType         IDType     `json:"id_type" db:"id_type"`
	IDNumber       string     `json:"id_number" db:"id_number"`
	Gender         string     `json:"gender" db:"gender"`
	MaritalStatus  string     `json:"marital_status" db:"marital_status"`
	AddressLine1   string     `json:"address_line1" db:"address_line1"`
	AddressLine2   string     `json:"address_line2" db:"address_line2"`
	City           string     `json:"city" db:"city"`
	District       string     `json:"district" db:"district"`
	PhoneNumber    string     `json:"phone_number" db:"phone_number"`
	AltPhoneNumber string     `json:"alt_phone_number" db:"alt_phone_number"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// HasIdentity reports whether the profile already carries identity data,
// which lets a returning applicant bypass the capture subflow.
func (p Profile) HasIdentity() bool {
	return p.FirstName != "" || p.IDNumber != "" || p.AddressLine1 != ""
}

// Employment is the applicant income/employment record. Numeric figures stay
// free text while the wizard runs and are parsed to decimals at persistence
// (empty string maps to absent).
type Employment struct {
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	EmployerName    string     `json:"employer_name" db:"employer_name"`
	Sector          string     `json:"sector" db:"sector"`
	JobTitle        string     `json:"job_title" db:"job_title"`
	EmploymentType  string     `json:"employment_type" db:"employment_type"`
	YearsEmployed   string     `json:"years_employed" db:"years_employed"`
	MonthlyIncome   string     `json:"monthly_income" db:"monthly_income"`
	OtherIncome     string     `json:"other_income" db:"other_income"`
	MonthlyExpenses string     `json:"monthly_expenses" db:"monthly_expenses"`
	ExistingDebt    string     `json:"existing_debt" db:"existing_debt"`
	Dependents      string     `json:"dependents" db:"dependents"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// ShoppingItem is one line item of the purchase.
type ShoppingItem struct {
	CategoryID    string          `json:"category_id" db:"category_id"`
	CategoryLabel string          `json:"category_label" db:"category_label"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Description   string          `json:"description" db:"description"`
}

// Valid reports whether the item counts toward the total and the submitted
// item list: it needs a category, a positive price, and a positive quantity.
func (i ShoppingItem) Valid() bool {
	return i.CategoryID != "" && i.UnitPrice.IsPositive() && i.Quantity > 0
}

// Subtotal is price times quantity; zero for invalid items.
func (i ShoppingItem) Subtotal() decimal.Decimal {
	if !i.Valid() {
		return decimal.Zero
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Merchant is a catalog merchant entry.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Branch is a merchant branch.
type Branch struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchant_id"`
	Name       string `json:"name"`
	City       string `json:"city"`
}

// Category is a purchasable goods category for a merchant.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreditProduct is an offer the applicant may choose.
type CreditProduct struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	MinTermMonths int             `json:"min_term_months"`
	MaxTermMonths int             `json:"max_term_months"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	MaxAmount     decimal.Decimal `json:"max_amount"`
}

// Installment is one entry of the payment calendar.
type Installment struct {
	Sequence  int             `json:"sequence"`
	DueDate   time.Time       `json:"due_date"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	AmountDue decimal.Decimal `json:"amount_due"`
}

// FeeLine is one entry of the upfront fee breakdown.
type FeeLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// CalculationResult is the server-computed payment plan for a
// (product, amount, term) triple.
type CalculationResult struct {
	TotalFinanced  decimal.Decimal `json:"total_financed"`
	Downpayment    decimal.Decimal `json:"downpayment"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	UpfrontFees    decimal.Decimal `json:"upfront_fees"`
	Fees           []FeeLine       `json:"fees"`
	Calendar       []Installment   `json:"calendar"`
}

// ParsedIdentityDocument is the OCR output for a two-sided identity document.
// Nil fields were not recognized.
type ParsedIdentityDocument struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	DateOfBirth   *string `json:"date_of_birth,omitempty"`
	IDType        *IDType `json:"id_type,omitempty"`
	IDNumber      *string `json:"id_number,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	AddressLine1  *string `json:"address_line1,omitempty"`
	AddressLine2  *string `json:"address_line2,omitempty"`
	City          *string `json:"city,omitempty"`
	District      *string `json:"district,omitempty"`
}

// Reference is a personal reference for the applicant, held client-side until
// the draft exists and then synced best-effort.
type Reference struct {
	ID           uuid.UUID             `json:"id" db:"id"`
	Name         string                `json:"name" db:"name"`
	Relationship ReferenceRelationship `json:"relationship" db:"relationship"`
	Phone        string                `json:"phone" db:"phone"`
	Address      string                `json:"address" db:"address"`
	Directions   string                `json:"directions,omitempty" db:"directions"`
	Synced       bool                  `json:"synced" db:"-"`
}

// DocumentAttachment is an uploaded supporting file. Uploaded tracks whether
// the file has already been persisted against the draft so a retried batch
// does not resend it.
// Content is carried in the JSON form so a session snapshot keeps the bytes
// across a restart; the HTTP layer strips it before rendering.
type DocumentAttachment struct {
	ID       uuid.UUID    `json:"id"`
	Type     DocumentType `json:"type"`
	FileName string       `json:"file_name"`
	Content  []byte       `json:"content,omitempty"`
	Uploaded bool         `json:"uploaded"`
}

// SignatureConsent is the wet-signature plus typed-name agreement captured at
// the final step.
type SignatureConsent struct {
	SignaturePNG []byte `json:"signature_png"`
	TypedName    string `json:"typed_name"`
	Agreed       bool   `json:"agreed"`
}

// Application is the persisted application envelope.
type Application struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	ReferenceNumber string            `json:"reference_number" db:"reference_number"`
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	MerchantID      string            `json:"merchant_id" db:"merchant_id"`
	BranchID        string            `json:"branch_id" db:"branch_id"`
	ProductID       string            `json:"product_id" db:"product_id"`
	TermMonths      int               `json:"term_months" db:"term_months"`
	TotalAmount     decimal.Decimal   `json:"total_amount" db:"total_amount"`
	Downpayment     decimal.Decimal   `json:"downpayment" db:"downpayment"`
	TotalFinanced   decimal.Decimal   `json:"total_financed" db:"total_financed"`
	Status          ApplicationStatus `json:"status" db:"status"`
	Items           []ShoppingItem    `json:"items" db:"-"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}
