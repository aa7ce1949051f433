package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/middleware"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	workflow *service.WorkflowCoordinator
	log      zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(workflow *service.WorkflowCoordinator, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		workflow: workflow,
		log:      log,
	}
}

// SubmitClaim handles claim submission HTTP requests
func (h *HTTPHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		CustomerID       string `json:"customer_id"`
		VehicleVIN       string `json:"vehicle_vin"`
		IssueDescription string `json:"issue_description"`
		DiagnosisReport  string `json:"diagnosis_report"`
		Lines            []struct {
			PartModelID string `json:"part_model_id"`
			Quantity    int    `json:"quantity"`
		} `json:"line_items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	submit := &service.SubmitClaimRequest{
		CustomerID:       req.CustomerID,
		VehicleVIN:       req.VehicleVIN,
		IssueDescription: req.IssueDescription,
		DiagnosisReport:  req.DiagnosisReport,
	}
	for _, line := range req.Lines {
		submit.Lines = append(submit.Lines, service.SubmitClaimLine{
			PartModelID: line.PartModelID,
			Quantity:    line.Quantity,
		})
	}

	claim, err := h.workflow.SubmitClaim(r.Context(), actor, submit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

// GetClaim handles get claim HTTP requests
func (h *HTTPHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := r.URL.Query().Get("id")
	if claimID == "" {
		writeError(w, apperr.MissingField("id", "claim id is required"))
		return
	}

	claim, err := h.workflow.GetClaim(r.Context(), claimID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// ListClaims handles list claims HTTP requests
func (h *HTTPHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	var filter repository.ClaimFilter

	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		filter.CustomerID = &customerID
	}
	if vin := r.URL.Query().Get("vehicle_vin"); vin != "" {
		filter.VehicleVIN = &vin
	}
	if status := r.URL.Query().Get("status"); status != "" {
		parsed, ok := repository.ParseClaimStatus(status)
		if !ok {
			writeError(w, apperr.MissingField("status", "unknown claim status"))
			return
		}
		filter.Status = &parsed
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	claims, total, err := h.workflow.ListClaims(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claims": claims,
		"total":  total,
	})
}

// ApproveClaim handles claim approval HTTP requests
func (h *HTTPHandler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ID    string  `json:"id"`
		Notes *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	claim, err := h.workflow.ApproveClaim(r.Context(), actor, req.ID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// RejectClaim handles claim rejection HTTP requests
func (h *HTTPHandler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	claim, err := h.workflow.RejectClaim(r.Context(), actor, req.ID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// MarkSelfService handles self-service resolution HTTP requests
func (h *HTTPHandler) MarkSelfService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	claim, err := h.workflow.MarkSelfService(r.Context(), actor, req.ID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// AssignTask handles task assignment HTTP requests
func (h *HTTPHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ClaimID        string    `json:"claim_id"`
		TechnicianID   string    `json:"technician_id"`
		DueDate        time.Time `json:"due_date"`
		EstimatedHours float64   `json:"estimated_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	task, err := h.workflow.AssignTask(r.Context(), actor, &service.AssignTaskRequest{
		ClaimID:        req.ClaimID,
		TechnicianID:   req.TechnicianID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// StartTask handles task start HTTP requests
func (h *HTTPHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ID    string  `json:"id"`
		Notes *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	task, err := h.workflow.StartTask(r.Context(), actor, req.ID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// CompleteTask handles task completion HTTP requests
func (h *HTTPHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ID          string  `json:"id"`
		ActualHours float64 `json:"actual_hours"`
		Notes       *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}

	task, err := h.workflow.CompleteTask(r.Context(), actor, req.ID, req.ActualHours, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GetTask handles get task HTTP requests
func (h *HTTPHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("id")
	if taskID == "" {
		writeError(w, apperr.MissingField("id", "task id is required"))
		return
	}

	task, err := h.workflow.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ListMyTasks handles a technician's own task list HTTP requests
func (h *HTTPHandler) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	tasks, err := h.workflow.ListTechnicianTasks(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// MarkDefective handles defective part unit HTTP requests
func (h *HTTPHandler) MarkDefective(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		SerialNumber string `json:"serial_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindMissingField, "invalid request body"))
		return
	}
	if req.SerialNumber == "" {
		writeError(w, apperr.MissingField("serial_number", "serial number is required"))
		return
	}

	unit, err := h.workflow.MarkDefective(r.Context(), actor, req.SerialNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, unit)
}

// GetPartUnit handles part unit lookup HTTP requests
func (h *HTTPHandler) GetPartUnit(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial_number")
	if serial == "" {
		writeError(w, apperr.MissingField("serial_number", "serial number is required"))
		return
	}

	view, err := h.workflow.GetPartUnit(r.Context(), serial)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetPartStock handles part stock count HTTP requests
func (h *HTTPHandler) GetPartStock(w http.ResponseWriter, r *http.Request) {
	partModelID := r.URL.Query().Get("part_model_id")
	if partModelID == "" {
		writeError(w, apperr.MissingField("part_model_id", "part model id is required"))
		return
	}

	count, err := h.workflow.PartStock(r.Context(), partModelID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"part_model_id": partModelID,
		"in_stock":      count,
	})
}

func actorFrom(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.KindUnauthorized, "no authenticated actor"))
		return identity.Actor{}, false
	}
	return actor, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to the HTTP status code returned to clients.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindMissingField:
		return http.StatusBadRequest
	case apperr.KindInvalidTransition, apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, statusFor(kind), map[string]any{
		"error": map[string]any{
			"code":    string(kind),
			"message": err.Error(),
		},
	})
}
