package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/eligibility"
	"github.com/campusops/placement/modules/placement/infrastructure/persistence/memory"
	"github.com/campusops/placement/modules/placement/presentation/controllers"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/application"
	"github.com/campusops/placement/pkg/configuration"
	"github.com/campusops/placement/pkg/eventbus"
)

type stubDirectory struct {
	profiles map[uuid.UUID]eligibility.StudentProfile
}

func (d *stubDirectory) Profile(_ context.Context, studentID uuid.UUID) (eligibility.StudentProfile, error) {
	p, ok := d.profiles[studentID]
	if !ok {
		return eligibility.StudentProfile{}, fmt.Errorf("student %s not in directory", studentID)
	}
	return p, nil
}

type stubRegistry struct{}

func (stubRegistry) Profile(_ context.Context, siteID, _ uuid.UUID) (services.SiteProfile, error) {
	return services.SiteProfile{SiteID: siteID, Name: "site " + siteID.String()[:8], SuccessRate: 0.8}, nil
}

type env struct {
	router      *mux.Router
	windows     *memory.CapacityRepository
	assignments *memory.AssignmentRepository
	directory   *stubDirectory
	ledger      *services.LedgerService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bus := eventbus.NewEventPublisher(log)

	windows := memory.NewCapacityRepository()
	assignments := memory.NewAssignmentRepository()
	batches := memory.NewBatchRepository()
	results := memory.NewExecutionRepository()
	directory := &stubDirectory{profiles: map[uuid.UUID]eligibility.StudentProfile{}}

	ledger := services.NewLedgerService(windows, configuration.LedgerOptions{
		MaxAttempts: 5,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
	})
	scoring := configuration.ScoringOptions{
		HeadroomWeight:   0.35,
		SuccessWeight:    0.30,
		PreferenceWeight: 0.20,
		RecencyWeight:    0.15,
		RecencyHorizon:   720 * time.Hour,
	}

	app := application.New(&application.ApplicationOptions{EventBus: bus, Logger: log})
	app.RegisterServices(
		ledger,
		services.NewBatchService(batches, assignments, ledger, bus),
		services.NewAssignmentService(assignments, directory, bus),
		services.NewSuggestionService(batches, assignments, windows, directory, stubRegistry{}, scoring),
		services.NewExecutionService(batches, assignments, windows, ledger, results, directory, bus),
	)

	router := mux.NewRouter()
	controllers.NewPlacementAPIController(app).Register(router)

	return &env{
		router:      router,
		windows:     windows,
		assignments: assignments,
		directory:   directory,
		ledger:      ledger,
	}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (e *env) addStudent(t *testing.T, programID uuid.UUID) (studentID, assignmentID uuid.UUID) {
	t.Helper()

	studentID = uuid.New()
	e.directory.profiles[studentID] = eligibility.StudentProfile{
		StudentID: studentID,
		ProgramID: programID,
	}
	rec := e.do(t, http.MethodPost, "/placement/api/pool", map[string]any{"student_id": studentID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assignmentID = uuid.MustParse(created["id"].(string))
	return studentID, assignmentID
}

func (e *env) addWindow(t *testing.T, programID uuid.UUID, max int) capacity.WindowKey {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	key := capacity.WindowKey{
		SiteID:      uuid.New(),
		ProgramID:   programID,
		PeriodStart: now.AddDate(0, -1, 0),
		PeriodEnd:   now.AddDate(0, 2, 0),
	}
	_, err := e.windows.Create(context.Background(), capacity.New(key, max))
	require.NoError(t, err)
	return key
}

func windowQuery(key capacity.WindowKey) string {
	return fmt.Sprintf(
		"site_id=%s&program_id=%s&period_start=%s&period_end=%s",
		key.SiteID, key.ProgramID,
		key.PeriodStart.Format(time.RFC3339), key.PeriodEnd.Format(time.RFC3339),
	)
}

func TestCreateBatchValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{"name": "   "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "PLACEMENT_VALIDATION_FAILED", body["code"])

	rec = e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{"name": "fall cohort"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	require.Equal(t, "fall cohort", created["name"])
	require.Equal(t, "draft", created["status"])
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	programID := uuid.New()
	_, assignmentID := e.addStudent(t, programID)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{
		"name":           "spring cohort",
		"program_filter": programID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	batchID := decode[map[string]any](t, rec)["id"].(string)

	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/students", map[string]any{
		"assignment_ids": []uuid.UUID{assignmentID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	require.Empty(t, body["rejected"])

	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/transition", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "active", decode[map[string]any](t, rec)["status"])

	// completion with an unsettled member conflicts
	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/transition", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "PLACEMENT_CONFLICT", decode[map[string]any](t, rec)["code"])
}

func TestAddStudentsReportsRejections(t *testing.T) {
	e := newEnv(t)
	programID := uuid.New()
	otherProgram := uuid.New()
	_, matching := e.addStudent(t, programID)
	_, mismatched := e.addStudent(t, otherProgram)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{
		"name":           "filtered",
		"program_filter": programID,
	})
	batchID := decode[map[string]any](t, rec)["id"].(string)

	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/students", map[string]any{
		"assignment_ids": []uuid.UUID{matching, mismatched, uuid.New()},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Batch struct {
			MemberIDs []string `json:"member_ids"`
		} `json:"batch"`
		Rejected []struct {
			AssignmentID string `json:"assignment_id"`
			Code         string `json:"code"`
		} `json:"rejected"`
	}](t, rec)
	require.Equal(t, []string{matching.String()}, body.Batch.MemberIDs)
	require.Len(t, body.Rejected, 2)
	codes := map[string]string{}
	for _, rej := range body.Rejected {
		codes[rej.AssignmentID] = rej.Code
	}
	require.Equal(t, "program_mismatch", codes[mismatched.String()])
}

func TestSuggestThenExecuteOverHTTP(t *testing.T) {
	e := newEnv(t)
	programID := uuid.New()
	_, assignmentID := e.addStudent(t, programID)
	key := e.addWindow(t, programID, 2)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{"name": "cohort"})
	batchID := decode[map[string]any](t, rec)["id"].(string)
	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/students", map[string]any{
		"assignment_ids": []uuid.UUID{assignmentID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/transition", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/placement/api/batches/"+batchID+"/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	suggested := decode[struct {
		Items []struct {
			AssignmentID string `json:"assignment_id"`
			Candidates   []struct {
				Score   int      `json:"score"`
				Reasons []string `json:"reasons"`
			} `json:"candidates"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, suggested.Items, 1)
	require.Equal(t, assignmentID.String(), suggested.Items[0].AssignmentID)
	require.NotEmpty(t, suggested.Items[0].Candidates)

	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/execute", map[string]any{
		"pairs": []map[string]any{{
			"assignment_id": assignmentID,
			"site_id":       key.SiteID,
			"program_id":    key.ProgramID,
			"period_start":  key.PeriodStart,
			"period_end":    key.PeriodEnd,
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	executed := decode[struct {
		Results []struct {
			AssignmentID string `json:"assignment_id"`
			Outcome      string `json:"outcome"`
		} `json:"results"`
	}](t, rec)
	require.Len(t, executed.Results, 1)
	require.Equal(t, "committed", executed.Results[0].Outcome)

	rec = e.do(t, http.MethodGet, "/placement/api/capacity?"+windowQuery(key), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	window := decode[struct {
		AvailableSpots int `json:"available_spots"`
	}](t, rec)
	require.Equal(t, 1, window.AvailableSpots)

	rec = e.do(t, http.MethodGet, "/placement/api/capacity/audit?"+windowQuery(key), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[struct {
		Items []struct {
			Delta int `json:"delta"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, audit.Items, 1)
	require.Equal(t, -1, audit.Items[0].Delta)

	rec = e.do(t, http.MethodGet, "/placement/api/batches/"+batchID+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[struct {
		Items []struct {
			Outcome string `json:"outcome"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, stored.Items, 1)
}

func TestExecuteRejectsUnknownMode(t *testing.T) {
	e := newEnv(t)
	programID := uuid.New()
	_, assignmentID := e.addStudent(t, programID)
	key := e.addWindow(t, programID, 1)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{"name": "cohort"})
	batchID := decode[map[string]any](t, rec)["id"].(string)

	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/execute", map[string]any{
		"mode": "eventually",
		"pairs": []map[string]any{{
			"assignment_id": assignmentID,
			"site_id":       key.SiteID,
			"program_id":    key.ProgramID,
			"period_start":  key.PeriodStart,
			"period_end":    key.PeriodEnd,
		}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestNotFoundMapping(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/placement/api/batches/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "PLACEMENT_NOT_FOUND", decode[map[string]any](t, rec)["code"])

	rec = e.do(t, http.MethodGet, "/placement/api/batches/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	key := capacity.WindowKey{SiteID: uuid.New(), ProgramID: uuid.New(), PeriodStart: time.Now(), PeriodEnd: time.Now()}
	rec = e.do(t, http.MethodGet, "/placement/api/capacity?"+windowQuery(key), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveStudentOverHTTP(t *testing.T) {
	e := newEnv(t)
	programID := uuid.New()
	_, assignmentID := e.addStudent(t, programID)

	rec := e.do(t, http.MethodPost, "/placement/api/batches", map[string]any{"name": "cohort"})
	batchID := decode[map[string]any](t, rec)["id"].(string)
	rec = e.do(t, http.MethodPost, "/placement/api/batches/"+batchID+"/students", map[string]any{
		"assignment_ids": []uuid.UUID{assignmentID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/placement/api/batches/"+batchID+"/students/"+assignmentID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, decode[struct {
		MemberIDs []string `json:"member_ids"`
	}](t, rec).MemberIDs)

	// second removal refers to a former member
	rec = e.do(t, http.MethodDelete, "/placement/api/batches/"+batchID+"/students/"+assignmentID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
