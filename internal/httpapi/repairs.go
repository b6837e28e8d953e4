package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"hotline/backend/internal/domain"
	"hotline/backend/internal/service"
)

func (a *API) handleValidateIdentifier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.IdentifierCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CheckIdentifier(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleScanCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ScanCaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CaptureScan(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeviceLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	identifier := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if identifier == "" {
		writeError(w, http.StatusBadRequest, errors.New("identifier query parameter required"))
		return
	}

	resp, err := a.service.LookupDevice(r.Context(), identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCostPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CostPreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"costs": a.service.PreviewCosts(r.Context(), req)})
}

func (a *API) handleRepairs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		filter := domain.RepairFilter{
			StoreID:    query.Get("store_id"),
			Status:     strings.TrimSpace(query.Get("status")),
			Technician: query.Get("technician"),
			Identifier: strings.TrimSpace(query.Get("identifier")),
			Limit:      parsePositiveLimit(query.Get("limit"), 100, 500),
		}

		repairs, err := a.service.ListRepairJobs(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.RepairListResponse{Repairs: repairs})
	case http.MethodPost:
		if !a.actorHasRole(w, r, domain.RoleAdmin, domain.RoleCashier) {
			return
		}

		var req domain.RepairCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		repair, err := a.service.CreateRepairJob(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.RepairResponse{Repair: repair})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleRepairActions serves /api/v1/repairs/{id} and its lifecycle
// sub-resources.
func (a *API) handleRepairActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/repairs/"), "/")
	repairID, action, _ := strings.Cut(rest, "/")
	repairID = strings.TrimSpace(repairID)
	if repairID == "" {
		writeError(w, http.StatusBadRequest, errors.New("repair id required"))
		return
	}

	switch action {
	case "":
		a.handleRepair(w, r, repairID)
	case "parts":
		a.handleRepairParts(w, r, repairID)
	case "start":
		a.handleRepairStart(w, r, repairID)
	case "complete":
		a.handleRepairComplete(w, r, repairID)
	case "deliver":
		a.handleRepairDeliver(w, r, repairID)
	case "cancel":
		a.handleRepairCancel(w, r, repairID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown repair action"))
	}
}

func (a *API) handleRepair(w http.ResponseWriter, r *http.Request, repairID string) {
	switch r.Method {
	case http.MethodGet:
		repair, err := a.service.GetRepairJob(r.Context(), repairID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
	case http.MethodPatch:
		var req domain.RepairUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		repair, err := a.service.UpdateRepairJob(r.Context(), repairID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRepairParts(w http.ResponseWriter, r *http.Request, repairID string) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	if !a.actorHasRole(w, r, domain.RoleAdmin, domain.RoleTechnician) {
		return
	}

	var req domain.RepairPartsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, err := a.service.SetRepairParts(r.Context(), repairID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
}

func (a *API) handleRepairStart(w http.ResponseWriter, r *http.Request, repairID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.actorHasRole(w, r, domain.RoleAdmin, domain.RoleTechnician) {
		return
	}

	repair, err := a.service.StartRepair(r.Context(), repairID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
}

func (a *API) handleRepairComplete(w http.ResponseWriter, r *http.Request, repairID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.actorHasRole(w, r, domain.RoleAdmin, domain.RoleTechnician) {
		return
	}

	var req domain.RepairCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, err := a.service.CompleteRepair(r.Context(), repairID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
}

func (a *API) handleRepairDeliver(w http.ResponseWriter, r *http.Request, repairID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.actorHasRole(w, r, domain.RoleAdmin, domain.RoleCashier) {
		return
	}

	var req domain.RepairDeliverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	repair, err := a.service.DeliverRepair(r.Context(), repairID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
}

// handleRepairCancel needs the manager PIN on top of the admin role.
func (a *API) handleRepairCancel(w http.ResponseWriter, r *http.Request, repairID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.actorHasRole(w, r, domain.RoleAdmin) {
		return
	}

	var req domain.RepairCancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow("pin:cancel:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	repair, err := a.service.CancelRepair(r.Context(), repairID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.RepairResponse{Repair: repair})
}

func (a *API) handleParts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	parts, err := a.service.ListParts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.PartListResponse{Parts: parts})
}

func (a *API) handleTechnicianDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	board, err := a.service.TechnicianDashboard(r.Context(), query.Get("store_id"), query.Get("technician"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	storeID := r.URL.Query().Get("store_id")
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), storeID, date, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) actorHasRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || !isRoleAllowed(actor.Role, roles) {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return false
	}
	return true
}
