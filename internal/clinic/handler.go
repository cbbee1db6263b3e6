package clinic

import (
	"encoding/json"
	"net/http"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// Handler exposes the clinic's scheduling and directory operations directly,
// without going through a conversation.
type Handler struct {
	scheduler Scheduler
	verifier  InsuranceVerifier
	directory *Directory
	logger    *logging.Logger
}

// NewHandler creates the clinic HTTP handler.
func NewHandler(scheduler Scheduler, verifier InsuranceVerifier, directory *Directory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		scheduler: scheduler,
		verifier:  verifier,
		directory: directory,
		logger:    logger,
	}
}

// BookRequest is the request body for a direct booking.
type BookRequest struct {
	Patient PatientInfo        `json:"patient"`
	Details AppointmentDetails `json:"details"`
}

// BookAppointment books a slot without a dialogue.
// POST /api/v1/appointments/book
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.Details.Doctor == "" || req.Details.Date == "" || req.Details.Time == "" {
		http.Error(w, `{"error": "doctor, date and time required"}`, http.StatusBadRequest)
		return
	}

	res, err := h.scheduler.BookAppointment(r.Context(), req.Patient, req.Details)
	if err != nil {
		h.logger.Error("direct booking failed", "doctor", req.Details.Doctor, "error", err)
		http.Error(w, `{"error": "booking failed"}`, http.StatusBadGateway)
		return
	}

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, res, h.logger)
}

// VerifyRequest is the request body for a direct insurance check.
type VerifyRequest struct {
	Patient PatientInfo      `json:"patient"`
	Details InsuranceDetails `json:"details"`
}

// VerifyInsurance checks coverage without a dialogue.
// POST /api/v1/insurance/verify
func (h *Handler) VerifyInsurance(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, `{"error": "insurance verification not configured"}`, http.StatusNotImplemented)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.Details.Provider == "" || req.Details.PolicyNumber == "" {
		http.Error(w, `{"error": "provider and policy_number required"}`, http.StatusBadRequest)
		return
	}

	res, err := h.verifier.VerifyInsurance(r.Context(), req.Patient, req.Details)
	if err != nil {
		h.logger.Error("direct insurance check failed", "provider", req.Details.Provider, "error", err)
		http.Error(w, `{"error": "verification failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res, h.logger)
}

// GetInfo returns the clinic directory, optionally filtered by ?type=.
// GET /api/v1/clinic/info
func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	info := h.directory.Lookup(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, info, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
