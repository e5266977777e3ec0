package wizard

import (
	"context"
	"fmt"
	"sync"

	"hpcredit/internal/domain"
	"hpcredit/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shared in-package fakes. Function fields override behavior per test; the
// zero value serves fixed fixture data.

var (
	fixtureBranches = []domain.Branch{
		{ID: "B1", MerchantID: "M1", Name: "City Centre", City: "Lilongwe"},
		{ID: "B2", MerchantID: "M1", Name: "Old Town", City: "Blantyre"},
	}
	fixtureCategories = []domain.Category{
		{ID: "C1", Name: "Furniture"},
		{ID: "C2", Name: "Electronics"},
	}
	fixtureProducts = []domain.CreditProduct{
		{ID: "P1", Name: "Standard", MinTermMonths: 3, MaxTermMonths: 24,
			MinAmount: decimal.NewFromInt(50), MaxAmount: decimal.NewFromInt(5000)},
		{ID: "P2", Name: "Premium", MinTermMonths: 6, MaxTermMonths: 36,
			MinAmount: decimal.NewFromInt(500), MaxAmount: decimal.NewFromInt(20000)},
	}
)

func fixtureCalculation() *domain.CalculationResult {
	return &domain.CalculationResult{
		TotalFinanced:  decimal.NewFromInt(180),
		Downpayment:    decimal.NewFromInt(20),
		MonthlyPayment: decimal.NewFromInt(17),
		UpfrontFees:    decimal.NewFromInt(5),
	}
}

type fakeCatalog struct {
	mu            sync.Mutex
	branchCalls   int
	productCalls  int
	branchesFn    func(ctx context.Context, merchantID string) ([]domain.Branch, error)
	categoriesFn  func(ctx context.Context, merchantID string) ([]domain.Category, error)
	productsFn    func(ctx context.Context, merchantID string, total decimal.Decimal) ([]domain.CreditProduct, error)
}

func (f *fakeCatalog) Merchants(ctx context.Context) ([]domain.Merchant, error) {
	return []domain.Merchant{{ID: "M1", Name: "Furniture Mart"}}, nil
}

func (f *fakeCatalog) Branches(ctx context.Context, merchantID string) ([]domain.Branch, error) {
	f.mu.Lock()
	f.branchCalls++
	fn := f.branchesFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, merchantID)
	}
	return fixtureBranches, nil
}

func (f *fakeCatalog) Categories(ctx context.Context, merchantID string) ([]domain.Category, error) {
	f.mu.Lock()
	fn := f.categoriesFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, merchantID)
	}
	return fixtureCategories, nil
}

func (f *fakeCatalog) EligibleProducts(ctx context.Context, merchantID string, total decimal.Decimal) ([]domain.CreditProduct, error) {
	f.mu.Lock()
	f.productCalls++
	fn := f.productsFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, merchantID, total)
	}
	return fixtureProducts, nil
}

type fakeCalc struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, productID string, total decimal.Decimal, term int) (*domain.CalculationResult, error)
}

func (f *fakeCalc) Calculate(ctx context.Context, productID string, total decimal.Decimal, term int) (*domain.CalculationResult, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, productID, total, term)
	}
	return fixtureCalculation(), nil
}

type fakeParser struct {
	fn func(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error)
}

func (f *fakeParser) Parse(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
	if f.fn != nil {
		return f.fn(ctx, front, back)
	}
	return &domain.ParsedIdentityDocument{}, nil
}

type fakeProfiles struct {
	mu          sync.Mutex
	profile     *domain.Profile
	employment  *domain.Employment
	saveErr     error
	savedCount  int
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeProfiles) GetEmployment(ctx context.Context, userID uuid.UUID) (*domain.Employment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.employment, nil
}

func (f *fakeProfiles) SaveProfile(ctx context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *p
	f.profile = &cp
	f.savedCount++
	return nil
}

func (f *fakeProfiles) SaveEmployment(ctx context.Context, e *domain.Employment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *e
	f.employment = &cp
	return nil
}

type fakeApps struct {
	mu sync.Mutex

	createCalls   int
	createErr     error
	draftID       uuid.UUID
	referenceNum  string

	referenceCalls []domain.Reference
	referenceErrFor map[string]error

	attachCalls []uuid.UUID
	attachErrFor map[uuid.UUID]error

	submitConsentCalls int
	submitConsentErr   error
	submitCalls        int
	lastConsent        domain.SignatureConsent
	lastApp            *domain.Application
}

func newFakeApps() *fakeApps {
	return &fakeApps{
		draftID:      uuid.New(),
		referenceNum: "APP-0042",
	}
}

func (f *fakeApps) CreateDraft(ctx context.Context, app *domain.Application) (uuid.UUID, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return uuid.Nil, "", f.createErr
	}
	cp := *app
	f.lastApp = &cp
	return f.draftID, f.referenceNum, nil
}

func (f *fakeApps) AddReference(ctx context.Context, appID uuid.UUID, ref domain.Reference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.referenceErrFor[ref.Name]; ok {
		return err
	}
	f.referenceCalls = append(f.referenceCalls, ref)
	return nil
}

func (f *fakeApps) AttachDocument(ctx context.Context, appID uuid.UUID, doc domain.DocumentAttachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.attachErrFor[doc.ID]; ok {
		return err
	}
	f.attachCalls = append(f.attachCalls, doc.ID)
	return nil
}

func (f *fakeApps) SubmitWithConsent(ctx context.Context, appID uuid.UUID, consent domain.SignatureConsent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitConsentCalls++
	if f.submitConsentErr != nil {
		return f.submitConsentErr
	}
	f.lastConsent = consent
	return nil
}

func (f *fakeApps) Submit(ctx context.Context, appID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	return nil
}

type testEnv struct {
	catalog  *fakeCatalog
	calc     *fakeCalc
	parser   *fakeParser
	profiles *fakeProfiles
	apps     *fakeApps
}

func newTestEnv() *testEnv {
	return &testEnv{
		catalog:  &fakeCatalog{},
		calc:     &fakeCalc{},
		parser:   &fakeParser{},
		profiles: &fakeProfiles{},
		apps:     newFakeApps(),
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Catalog:  e.catalog,
		Calc:     e.calc,
		Parser:   e.parser,
		Profiles: e.profiles,
		Apps:     e.apps,
	}
}

func (e *testEnv) session(kind domain.FlowKind) *Session {
	return NewSession(uuid.New(), kind, domain.Profile{}, domain.Employment{}, e.deps(), logger.NewNop())
}

func validItems(price int64, qty int) []domain.ShoppingItem {
	return []domain.ShoppingItem{{
		CategoryID:    "C1",
		CategoryLabel: "Furniture",
		UnitPrice:     decimal.NewFromInt(price),
		Quantity:      qty,
	}}
}

// selectPlan walks a session through merchant, branch, items, product and
// term so the plan-selection gate passes.
func selectPlan(s *Session) error {
	s.SetMerchant("M1")
	if err := s.SetItems(validItems(100, 2)); err != nil {
		return err
	}
	s.Settle()
	s.SetBranch("B1")
	if err := s.SelectProduct("P1"); err != nil {
		return err
	}
	if err := s.SelectTerm(12); err != nil {
		return err
	}
	s.Settle()
	if s.View().Calculation == nil {
		return fmt.Errorf("calculation not settled")
	}
	return nil
}
