package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/modules/placement/presentation/mappers"
	"github.com/campusops/placement/modules/placement/presentation/viewmodels"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/application"
	"github.com/campusops/placement/pkg/middleware"
)

type PlacementAPIController struct {
	app         application.Application
	batches     *services.BatchService
	assignments *services.AssignmentService
	suggestions *services.SuggestionService
	executions  *services.ExecutionService
	ledger      *services.LedgerService
	basePath    string
}

func NewPlacementAPIController(app application.Application) application.Controller {
	return &PlacementAPIController{
		app:         app,
		batches:     app.Service(services.BatchService{}).(*services.BatchService),
		assignments: app.Service(services.AssignmentService{}).(*services.AssignmentService),
		suggestions: app.Service(services.SuggestionService{}).(*services.SuggestionService),
		executions:  app.Service(services.ExecutionService{}).(*services.ExecutionService),
		ledger:      app.Service(services.LedgerService{}).(*services.LedgerService),
		basePath:    "/placement/api",
	}
}

func (c *PlacementAPIController) Key() string {
	return c.basePath
}

func (c *PlacementAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/batches", c.ListBatches).Methods(http.MethodGet)
	router.HandleFunc("/batches/{id}", c.GetBatch).Methods(http.MethodGet)
	router.HandleFunc("/batches/{id}/assignments", c.ListBatchAssignments).Methods(http.MethodGet)
	router.HandleFunc("/batches/{id}/suggestions", c.GenerateSuggestions).Methods(http.MethodGet)
	router.HandleFunc("/batches/{id}/results", c.ListResults).Methods(http.MethodGet)
	router.HandleFunc("/capacity", c.GetWindow).Methods(http.MethodGet)
	router.HandleFunc("/capacity/audit", c.GetWindowAudit).Methods(http.MethodGet)

	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction())
	writeRouter.HandleFunc("/pool", c.EnterPool).Methods(http.MethodPost)
	writeRouter.HandleFunc("/batches", c.CreateBatch).Methods(http.MethodPost)
	writeRouter.HandleFunc("/batches/{id}/students", c.AddStudents).Methods(http.MethodPost)
	writeRouter.HandleFunc("/batches/{id}/students/{assignmentID}", c.RemoveStudent).Methods(http.MethodDelete)
	writeRouter.HandleFunc("/batches/{id}/transition", c.TransitionBatch).Methods(http.MethodPost)

	// Execution manages its own transactions per pair; a request-scoped
	// transaction would serialize the whole run and undo committed pairs on a
	// late failure in best effort mode.
	router.HandleFunc("/batches/{id}/execute", c.Execute).Methods(http.MethodPost)
}

func (c *PlacementAPIController) ListBatches(w http.ResponseWriter, r *http.Request) {
	params := &batch.FindParams{Limit: 20}
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			params.Limit = parsed
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			params.Offset = parsed
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status := batch.Status(v)
		if !batch.ValidStatus(status) {
			writeAPIError(w, r, http.StatusUnprocessableEntity, "PLACEMENT_INVALID_STATUS", "unknown batch status")
			return
		}
		params.Status = status
	}

	items, total, err := c.batches.GetPaginated(r.Context(), params)
	if err != nil {
		writeAPIError(w, r, http.StatusInternalServerError, "PLACEMENT_INTERNAL", "internal error")
		return
	}

	out := make([]*viewmodels.Batch, 0, len(items))
	for _, b := range items {
		out = append(out, mappers.BatchToVM(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"total": total,
	})
}

func (c *PlacementAPIController) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := c.batches.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.BatchToVM(b))
}

func (c *PlacementAPIController) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var dto batch.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_JSON", "invalid json")
		return
	}
	if fields, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, r, fields)
		return
	}

	created, err := c.batches.Create(r.Context(), dto.Name, dto.ProgramFilter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.BatchToVM(created))
}

func (c *PlacementAPIController) AddStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var dto batch.AddStudentsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_JSON", "invalid json")
		return
	}
	if fields, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, r, fields)
		return
	}

	updated, rejected, err := c.batches.AddStudents(r.Context(), id, dto.AssignmentIDs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]viewmodels.MembershipError, 0, len(rejected))
	for _, e := range rejected {
		out = append(out, mappers.MembershipErrorToVM(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch":    mappers.BatchToVM(updated),
		"rejected": out,
	})
}

func (c *PlacementAPIController) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(w, r, "assignmentID")
	if !ok {
		return
	}

	updated, err := c.batches.RemoveStudent(r.Context(), id, assignmentID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.BatchToVM(updated))
}

func (c *PlacementAPIController) TransitionBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var dto batch.TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_JSON", "invalid json")
		return
	}
	if fields, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, r, fields)
		return
	}

	updated, err := c.batches.Transition(r.Context(), id, batch.Status(dto.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.BatchToVM(updated))
}

func (c *PlacementAPIController) ListBatchAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	items, err := c.assignments.ListByBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]*viewmodels.Assignment, 0, len(items))
	for _, a := range items {
		out = append(out, mappers.AssignmentToVM(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *PlacementAPIController) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	items, err := c.suggestions.Generate(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]*viewmodels.Suggestion, 0, len(items))
	for _, s := range items {
		out = append(out, mappers.SuggestionToVM(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *PlacementAPIController) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var dto execution.ExecuteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_JSON", "invalid json")
		return
	}
	if fields, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, r, fields)
		return
	}

	pairs := make([]services.ExecutionPair, 0, len(dto.Pairs))
	for _, p := range dto.Pairs {
		pairs = append(pairs, services.ExecutionPair{
			AssignmentID: p.AssignmentID,
			Window: capacity.WindowKey{
				SiteID:      p.SiteID,
				ProgramID:   p.ProgramID,
				PeriodStart: p.PeriodStart,
				PeriodEnd:   p.PeriodEnd,
			},
		})
	}

	results, err := c.executions.Execute(r.Context(), id, pairs, execution.Mode(dto.Mode))
	if err != nil && len(results) == 0 {
		writeDomainError(w, r, err)
		return
	}

	out := make([]*viewmodels.ExecutionResult, 0, len(results))
	for _, res := range results {
		out = append(out, mappers.ResultToVM(res))
	}
	payload := map[string]any{"results": out}
	if err != nil {
		// Cancellation mid run still returns whatever was decided.
		payload["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (c *PlacementAPIController) ListResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	items, err := c.executions.ListByBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]*viewmodels.ExecutionResult, 0, len(items))
	for _, res := range items {
		out = append(out, mappers.ResultToVM(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *PlacementAPIController) EnterPool(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		StudentID uuid.UUID `json:"student_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_JSON", "invalid json")
		return
	}
	if dto.StudentID == uuid.Nil {
		writeValidationError(w, r, map[string]string{"StudentID": "StudentID is required"})
		return
	}

	created, err := c.assignments.EnterPool(r.Context(), dto.StudentID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.AssignmentToVM(created))
}

func (c *PlacementAPIController) GetWindow(w http.ResponseWriter, r *http.Request) {
	key, ok := queryWindowKey(w, r)
	if !ok {
		return
	}
	window, err := c.ledger.Get(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.WindowToVM(window))
}

func (c *PlacementAPIController) GetWindowAudit(w http.ResponseWriter, r *http.Request) {
	key, ok := queryWindowKey(w, r)
	if !ok {
		return
	}
	entries, err := c.ledger.Audit(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]viewmodels.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, mappers.AuditEntryToVM(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_ID", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryWindowKey(w http.ResponseWriter, r *http.Request) (capacity.WindowKey, bool) {
	q := r.URL.Query()
	siteID, err := uuid.Parse(strings.TrimSpace(q.Get("site_id")))
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_ID", "invalid site_id")
		return capacity.WindowKey{}, false
	}
	programID, err := uuid.Parse(strings.TrimSpace(q.Get("program_id")))
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_ID", "invalid program_id")
		return capacity.WindowKey{}, false
	}
	periodStart, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("period_start")))
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_PERIOD", "invalid period_start")
		return capacity.WindowKey{}, false
	}
	periodEnd, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("period_end")))
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "PLACEMENT_INVALID_PERIOD", "invalid period_end")
		return capacity.WindowKey{}, false
	}
	return capacity.WindowKey{
		SiteID:      siteID,
		ProgramID:   programID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, true
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, batch.ErrNotFound),
		errors.Is(err, assignment.ErrNotFound),
		errors.Is(err, capacity.ErrNotFound):
		writeAPIError(w, r, http.StatusNotFound, "PLACEMENT_NOT_FOUND", err.Error())
	case errors.Is(err, batch.ErrNotMember):
		writeAPIError(w, r, http.StatusNotFound, "PLACEMENT_NOT_A_MEMBER", err.Error())
	case errors.Is(err, services.ErrEmptyBatchName),
		errors.Is(err, services.ErrInvalidMode):
		writeAPIError(w, r, http.StatusUnprocessableEntity, "PLACEMENT_VALIDATION_FAILED", err.Error())
	case errors.Is(err, batch.ErrInvalidTransition),
		errors.Is(err, batch.ErrArchived),
		errors.Is(err, batch.ErrNotMutable),
		errors.Is(err, batch.ErrMembersPending),
		errors.Is(err, batch.ErrNotActive),
		errors.Is(err, capacity.ErrInsufficientCapacity),
		errors.Is(err, capacity.ErrConcurrencyConflict),
		errors.Is(err, assignment.ErrConcurrencyConflict),
		errors.Is(err, capacity.ErrWindowHalted):
		writeAPIError(w, r, http.StatusConflict, "PLACEMENT_CONFLICT", err.Error())
	default:
		writeAPIError(w, r, http.StatusInternalServerError, "PLACEMENT_INTERNAL", "internal error")
	}
}
