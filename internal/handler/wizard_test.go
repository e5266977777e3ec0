package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"hpcredit/internal/domain"
	"hpcredit/internal/middleware"
	"hpcredit/internal/wizard"
	apperrors "hpcredit/pkg/errors"
	"hpcredit/pkg/logger"
	"hpcredit/pkg/validator"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubCatalog struct{}

func (stubCatalog) Merchants(ctx context.Context) ([]domain.Merchant, error) {
	return []domain.Merchant{{ID: "M1", Name: "Furniture Mart"}}, nil
}

func (stubCatalog) Branches(ctx context.Context, merchantID string) ([]domain.Branch, error) {
	return []domain.Branch{{ID: "B1", MerchantID: merchantID, Name: "City Centre"}}, nil
}

func (stubCatalog) Categories(ctx context.Context, merchantID string) ([]domain.Category, error) {
	return []domain.Category{{ID: "C1", Name: "Furniture"}}, nil
}

func (stubCatalog) EligibleProducts(ctx context.Context, merchantID string, total decimal.Decimal) ([]domain.CreditProduct, error) {
	return []domain.CreditProduct{{ID: "P1", Name: "Standard", MinTermMonths: 3, MaxTermMonths: 24}}, nil
}

type stubCalc struct{}

func (stubCalc) Calculate(ctx context.Context, productID string, total decimal.Decimal, term int) (*domain.CalculationResult, error) {
	return &domain.CalculationResult{
		TotalFinanced:  total.Sub(decimal.NewFromInt(20)),
		Downpayment:    decimal.NewFromInt(20),
		MonthlyPayment: decimal.NewFromInt(17),
	}, nil
}

type stubParser struct{}

func (stubParser) Parse(ctx context.Context, front, back []byte) (*domain.ParsedIdentityDocument, error) {
	name := "Chikondi"
	return &domain.ParsedIdentityDocument{FirstName: &name}, nil
}

type stubProfiles struct{}

func (stubProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return nil, nil
}

func (stubProfiles) GetEmployment(ctx context.Context, userID uuid.UUID) (*domain.Employment, error) {
	return nil, nil
}

func (stubProfiles) SaveProfile(ctx context.Context, p *domain.Profile) error { return nil }

func (stubProfiles) SaveEmployment(ctx context.Context, e *domain.Employment) error { return nil }

type stubApps struct {
	mu          sync.Mutex
	submitCalls int
}

func (a *stubApps) CreateDraft(ctx context.Context, app *domain.Application) (uuid.UUID, string, error) {
	return uuid.New(), "APP-0007", nil
}

func (a *stubApps) AddReference(ctx context.Context, appID uuid.UUID, ref domain.Reference) error {
	return nil
}

func (a *stubApps) AttachDocument(ctx context.Context, appID uuid.UUID, doc domain.DocumentAttachment) error {
	return nil
}

func (a *stubApps) SubmitWithConsent(ctx context.Context, appID uuid.UUID, consent domain.SignatureConsent) error {
	return nil
}

func (a *stubApps) Submit(ctx context.Context, appID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitCalls++
	return nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]*wizard.Snapshot
}

func (m *memorySnapshots) Save(ctx context.Context, snap *wizard.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap
	return nil
}

func (m *memorySnapshots) Load(ctx context.Context, id uuid.UUID) (*wizard.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap, ok := m.snaps[id]; ok {
		return snap, nil
	}
	return nil, apperrors.ErrSessionNotFound
}

func (m *memorySnapshots) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type testServer struct {
	router  *mux.Router
	manager *wizard.Manager
	apps    *stubApps
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	apps := &stubApps{}
	deps := wizard.Deps{
		Catalog:  stubCatalog{},
		Calc:     stubCalc{},
		Parser:   stubParser{},
		Profiles: stubProfiles{},
		Apps:     apps,
	}
	manager := wizard.NewManager(deps, &memorySnapshots{snaps: make(map[uuid.UUID]*wizard.Snapshot)}, logger.NewNop())
	h := NewWizardHandler(manager, validator.New(), logger.NewNop(), 10<<20)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(testSecret).Authenticate)
	h.RegisterRoutes(api)

	return &testServer{router: router, manager: manager, apps: apps}
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (ts *testServer) do(t *testing.T, userID uuid.UUID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", bearerToken(t, userID))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStartSessionFullFlow(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	require.Equal(t, http.StatusCreated, rec.Code)

	out := decodeSession(t, rec)
	assert.Equal(t, "identity_capture", out["current_step"])
	assert.Equal(t, "full", out["flow_kind"])
	assert.NotEmpty(t, out["id"])
}

func TestStartSessionRejectsUnknownFlow(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, uuid.New(), http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "express"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "errors")
}

func TestRequestsRequireAuth(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions", bytes.NewReader([]byte(`{"flow":"full"}`)))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForeignSessionReadsAsNotFound(t *testing.T) {
	ts := newTestServer(t)
	owner := uuid.New()

	rec := ts.do(t, owner, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decodeSession(t, rec)["id"].(string)

	rec = ts.do(t, uuid.New(), http.MethodGet, "/api/v1/wizard/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCondensedFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "condensed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decodeSession(t, rec)["id"].(string)
	base := "/api/v1/wizard/sessions/" + sessionID

	rec = ts.do(t, userID, http.MethodPut, base+"/merchant", map[string]string{"merchant_id": "M1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, userID, http.MethodPut, base+"/items", map[string]interface{}{
		"items": []map[string]interface{}{
			{"category_id": "C1", "category_label": "Furniture", "unit_price": "100", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, userID, http.MethodPut, base+"/branch", map[string]string{"branch_id": "B1"})
	require.Equal(t, http.StatusOK, rec.Code)

	s, err := ts.manager.Get(context.Background(), uuid.MustParse(sessionID))
	require.NoError(t, err)
	s.Settle()

	rec = ts.do(t, userID, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plan_selection", decodeSession(t, rec)["current_step"])

	rec = ts.do(t, userID, http.MethodPut, base+"/product", map[string]string{"product_id": "P1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, userID, http.MethodPut, base+"/term", map[string]int{"term_months": 12})
	require.Equal(t, http.StatusOK, rec.Code)
	s.Settle()

	for _, step := range []string{"personal_info", "employment", "review"} {
		rec = ts.do(t, userID, http.MethodPost, base+"/advance", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, step, decodeSession(t, rec)["current_step"])
	}

	rec = ts.do(t, userID, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeSession(t, rec)["completed"])

	ts.apps.mu.Lock()
	defer ts.apps.mu.Unlock()
	assert.Equal(t, 1, ts.apps.submitCalls)
}

func TestAdvanceGateFailureReturnsConflict(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "condensed"})
	sessionID := decodeSession(t, rec)["id"].(string)

	rec = ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions/"+sessionID+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["error"])
	session := out["session"].(map[string]interface{})
	assert.NotEmpty(t, session["step_error"])
}

func TestAddReferenceValidatesPhone(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	sessionID := decodeSession(t, rec)["id"].(string)

	rec = ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions/"+sessionID+"/references", map[string]string{
		"name":         "Mary Banda",
		"relationship": "spouse",
		"phone":        "not-a-phone",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "errors")
}

func TestSignatureOutsideConsentStep(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	sessionID := decodeSession(t, rec)["id"].(string)

	rec = ts.do(t, userID, http.MethodPut, "/api/v1/wizard/sessions/"+sessionID+"/signature", map[string]interface{}{
		"events": []map[string]interface{}{{"type": "down", "x": 1, "y": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureFrontUpload(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	sessionID := decodeSession(t, rec)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "front.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("front-image-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/"+sessionID+"/capture/front", &buf)
	req.Header.Set("Authorization", bearerToken(t, userID))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	reqRec := httptest.NewRecorder()
	ts.router.ServeHTTP(reqRec, req)
	require.Equal(t, http.StatusOK, reqRec.Code)

	out := decodeSession(t, reqRec)
	capture := out["capture"].(map[string]interface{})
	assert.Equal(t, "front", capture["stage"])
	assert.Equal(t, true, out["has_front_image"])
	assert.Nil(t, capture["front_image"], "raw image bytes never leave the service")
}

func TestDocumentUploadResponseOmitsContent(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.New()

	rec := ts.do(t, userID, http.MethodPost, "/api/v1/wizard/sessions", map[string]string{"flow": "full"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decodeSession(t, rec)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", "payslip"))
	part, err := mw.CreateFormFile("file", "payslip.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("payslip-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/"+sessionID+"/documents", &buf)
	req.Header.Set("Authorization", bearerToken(t, userID))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	reqRec := httptest.NewRecorder()
	ts.router.ServeHTTP(reqRec, req)
	require.Equal(t, http.StatusOK, reqRec.Code)

	out := decodeSession(t, reqRec)
	docs := out["documents"].([]interface{})
	require.Len(t, docs, 1)
	doc := docs[0].(map[string]interface{})
	assert.Equal(t, "payslip.pdf", doc["file_name"])
	_, present := doc["content"]
	assert.False(t, present, "document bytes never leave the service")

	// Rendering must not strip the bytes from the live session.
	s, err := ts.manager.Get(context.Background(), uuid.MustParse(sessionID))
	require.NoError(t, err)
	live := s.View().Documents
	require.Len(t, live, 1)
	assert.Equal(t, []byte("payslip-bytes"), live[0].Content)
}
