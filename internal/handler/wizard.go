package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"hpcredit/internal/domain"
	"hpcredit/internal/middleware"
	"hpcredit/internal/wizard"
	"hpcredit/pkg/errors"
	"hpcredit/pkg/logger"
	"hpcredit/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// WizardHandler exposes the wizard session lifecycle: start, inspect, mutate
// step data, navigate, and run the capture/signature subflows. Every mutation
// persists a session snapshot before responding.
type WizardHandler struct {
	manager   *wizard.Manager
	validator *validator.Validator
	logger    logger.Logger
	maxUpload int64
}

func NewWizardHandler(manager *wizard.Manager, val *validator.Validator, log logger.Logger, maxUpload int64) *WizardHandler {
	return &WizardHandler{manager: manager, validator: val, logger: log, maxUpload: maxUpload}
}

// RegisterRoutes mounts the wizard endpoints on the given (authenticated)
// subrouter.
func (h *WizardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/wizard/sessions", h.StartSession).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}", h.GetSession).Methods(http.MethodGet)

	r.HandleFunc("/wizard/sessions/{id}/profile", h.UpdateProfile).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/employment", h.UpdateEmployment).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/merchant", h.SetMerchant).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/branch", h.SetBranch).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/items", h.SetItems).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/product", h.SelectProduct).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/term", h.SelectTerm).Methods(http.MethodPut)

	r.HandleFunc("/wizard/sessions/{id}/advance", h.Advance).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/back", h.Back).Methods(http.MethodPost)

	r.HandleFunc("/wizard/sessions/{id}/capture/front", h.CaptureFront).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/capture/back", h.CaptureBack).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/capture/retake", h.CaptureRetake).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/capture/confirm", h.CaptureConfirm).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/capture/skip", h.CaptureSkip).Methods(http.MethodPost)

	r.HandleFunc("/wizard/sessions/{id}/references", h.AddReference).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/references/{refID}", h.RemoveReference).Methods(http.MethodDelete)
	r.HandleFunc("/wizard/sessions/{id}/documents", h.AddDocument).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/documents/{docID}", h.RemoveDocument).Methods(http.MethodDelete)

	r.HandleFunc("/wizard/sessions/{id}/signature", h.ApplySignature).Methods(http.MethodPut)
	r.HandleFunc("/wizard/sessions/{id}/signature/clear", h.ClearSignature).Methods(http.MethodPost)
	r.HandleFunc("/wizard/sessions/{id}/consent", h.SetConsent).Methods(http.MethodPut)
}

// sessionResponse is the rendered session state. Raw image bytes never leave
// the service; the client tracks capture progress through the stage field.
type sessionResponse struct {
	wizard.State
	CurrentStep wizard.Step `json:"current_step"`
	TermOptions []int       `json:"term_options,omitempty"`
	HasFront    bool        `json:"has_front_image"`
	HasBack     bool        `json:"has_back_image"`
}

func renderSession(s *wizard.Session) sessionResponse {
	v := s.View()
	resp := sessionResponse{
		State:       v,
		CurrentStep: s.CurrentStep(),
		TermOptions: s.TermOptions(),
		HasFront:    len(v.Capture.FrontImage) > 0,
		HasBack:     len(v.Capture.BackImage) > 0,
	}
	resp.Capture.FrontImage = nil
	resp.Capture.BackImage = nil
	if len(v.Documents) > 0 {
		docs := make([]domain.DocumentAttachment, len(v.Documents))
		copy(docs, v.Documents)
		for i := range docs {
			docs[i].Content = nil
		}
		resp.Documents = docs
	}
	return resp
}

type startSessionRequest struct {
	Flow domain.FlowKind `json:"flow" validate:"required,oneof=full condensed"`
}

func (h *WizardHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	s, err := h.manager.Start(r.Context(), userID, req.Flow)
	if err != nil {
		h.logger.Error("Failed to start wizard session", map[string]interface{}{"error": err.Error(), "user_id": userID.String()})
		respondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	respondJSON(w, http.StatusCreated, renderSession(s))
}

func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, renderSession(s))
}

// session resolves the session from the path and checks it belongs to the
// authenticated applicant. A foreign session reads as not found.
func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session id")
		return nil, false
	}

	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), "Session not found")
		return nil, false
	}
	if s.View().UserID != userID {
		respondError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

// apply runs a session command, persists the snapshot, and renders the
// session. Command errors respond with the mapped status and a displayable
// message; the session body is included so the client can re-render state
// like step_error.
func (h *WizardHandler) apply(w http.ResponseWriter, r *http.Request, s *wizard.Session, fn func() error) {
	if err := fn(); err != nil {
		h.manager.Persist(r.Context(), s)
		respondJSON(w, statusFor(err), map[string]interface{}{
			"error":   errDisplay(err),
			"session": renderSession(s),
		})
		return
	}
	h.manager.Persist(r.Context(), s)
	respondJSON(w, http.StatusOK, renderSession(s))
}

// errDisplay prefers the sentinel's own message for command errors and the
// normalized display text for collaborator failures.
func errDisplay(err error) string {
	var d errors.Detailer
	if errors.As(err, &d) {
		return errors.Display(err)
	}
	return err.Error()
}

func (h *WizardHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var p domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		s.UpdateProfile(p)
		return nil
	})
}

func (h *WizardHandler) UpdateEmployment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var e domain.Employment
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		s.UpdateEmployment(e)
		return nil
	})
}

type merchantRequest struct {
	MerchantID string `json:"merchant_id"`
}

func (h *WizardHandler) SetMerchant(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req merchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		s.SetMerchant(req.MerchantID)
		return nil
	})
}

type branchRequest struct {
	BranchID string `json:"branch_id"`
}

func (h *WizardHandler) SetBranch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		s.SetBranch(req.BranchID)
		return nil
	})
}

type itemsRequest struct {
	Items []domain.ShoppingItem `json:"items" validate:"required,min=1,dive"`
}

func (h *WizardHandler) SetItems(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		return s.SetItems(req.Items)
	})
}

type productRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

func (h *WizardHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	h.apply(w, r, s, func() error {
		return s.SelectProduct(req.ProductID)
	})
}

type termRequest struct {
	TermMonths int `json:"term_months" validate:"required,gt=0"`
}

func (h *WizardHandler) SelectTerm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	h.apply(w, r, s, func() error {
		return s.SelectTerm(req.TermMonths)
	})
}

func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, func() error {
		return s.Advance(r.Context())
	})
}

func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, func() error {
		return s.Back()
	})
}

// CaptureFront accepts the front image. Uploading a front image from the
// start screen implicitly begins the capture subflow.
func (h *WizardHandler) CaptureFront(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	image, ok := h.readImage(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, func() error {
		if s.View().Capture.Stage == wizard.CaptureStart {
			if err := s.BeginCapture(); err != nil {
				return err
			}
		}
		return s.ProvideImage(image)
	})
}

func (h *WizardHandler) CaptureBack(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	image, ok := h.readImage(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, func() error {
		return s.ProvideImage(image)
	})
}

// readImage pulls the "image" file out of a multipart body.
func (h *WizardHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart body")
		return nil, false
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Image file is required")
		return nil, false
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read image")
		return nil, false
	}
	return image, true
}

func (h *WizardHandler) CaptureRetake(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, s.RetakeImage)
}

func (h *WizardHandler) CaptureConfirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, s.ConfirmImage)
}

func (h *WizardHandler) CaptureSkip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, s.SkipCapture)
}

type referenceRequest struct {
	Name         string                       `json:"name" validate:"required"`
	Relationship domain.ReferenceRelationship `json:"relationship" validate:"required,oneof=spouse parent sibling friend colleague"`
	Phone        string                       `json:"phone" validate:"required,local_phone"`
	Address      string                       `json:"address"`
	Directions   string                       `json:"directions"`
}

func (h *WizardHandler) AddReference(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	h.apply(w, r, s, func() error {
		s.AddReference(domain.Reference{
			Name:         validator.Sanitize(req.Name),
			Relationship: req.Relationship,
			Phone:        req.Phone,
			Address:      validator.Sanitize(req.Address),
			Directions:   validator.Sanitize(req.Directions),
		})
		return nil
	})
}

func (h *WizardHandler) RemoveReference(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	refID, err := uuid.Parse(mux.Vars(r)["refID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid reference id")
		return
	}
	if !s.RemoveReference(refID) {
		respondError(w, http.StatusNotFound, "Reference not found")
		return
	}
	h.apply(w, r, s, func() error { return nil })
}

func (h *WizardHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	docType := domain.DocumentType(r.FormValue("type"))
	switch docType {
	case domain.DocumentTypePayslip, domain.DocumentTypeBankStatement,
		domain.DocumentTypeProofOfAddress, domain.DocumentTypeEmployerLetter,
		domain.DocumentTypeOther:
	default:
		respondError(w, http.StatusBadRequest, "Unknown document type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Document file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read document")
		return
	}

	h.apply(w, r, s, func() error {
		s.AddDocument(docType, header.Filename, content)
		return nil
	})
}

func (h *WizardHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	docID, err := uuid.Parse(mux.Vars(r)["docID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid document id")
		return
	}
	if !s.RemoveDocument(docID) {
		respondError(w, http.StatusConflict, "Document not found or already uploaded")
		return
	}
	h.apply(w, r, s, func() error { return nil })
}

type signatureRequest struct {
	Events []wizard.SignatureEvent `json:"events" validate:"required,min=1,dive"`
}

func (h *WizardHandler) ApplySignature(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req signatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	h.apply(w, r, s, func() error {
		return s.ApplySignature(req.Events)
	})
}

func (h *WizardHandler) ClearSignature(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, s.ClearSignature)
}

type consentRequest struct {
	TypedName string `json:"typed_name"`
	Agreed    bool   `json:"agreed"`
}

func (h *WizardHandler) SetConsent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.apply(w, r, s, func() error {
		s.SetConsent(validator.Sanitize(req.TypedName), req.Agreed)
		return nil
	})
}
