package handler

import (
	"net/http"

	"hpcredit/internal/middleware"
	"hpcredit/internal/repository/postgres"
	"hpcredit/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ApplicationHandler serves persisted application records, backing the
// confirmation screen after a wizard run completes.
type ApplicationHandler struct {
	repo   *postgres.ApplicationRepository
	logger logger.Logger
}

func NewApplicationHandler(repo *postgres.ApplicationRepository, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{repo: repo, logger: log}
}

func (h *ApplicationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/applications/{id}", h.GetApplication).Methods(http.MethodGet)
}

func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid application id")
		return
	}

	app, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), "Application not found")
		return
	}
	if app.UserID != userID {
		respondError(w, http.StatusNotFound, "Application not found")
		return
	}

	respondJSON(w, http.StatusOK, app)
}
