package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence/memory"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
	"github.com/clinicflow/clinicflow/pkg/web"
	"github.com/clinicflow/clinicflow/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := memory.NewPersistence()
	store.SeedStaff(
		&models.Staff{ID: "sales-1", ClinicID: "clinic-1", Name: "Alex", Role: models.RoleSalesStaff, Active: true},
		&models.Staff{ID: "beautician-1", ClinicID: "clinic-1", Name: "Mei", Role: models.RoleBeautician, Active: true},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broadcaster := broadcast.NewBroadcaster(store.EventRepository(), logger)
	tasks := taskqueue.NewManager(store, broadcaster, logger)
	engine := workflow.NewEngine(store, tasks, broadcaster, logger)

	handlers := web.NewAPIHandlers(engine, tasks, broadcaster, store, validator.New())

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/transitions", handlers.ExecuteTransition)
	w.Get("/:id/actions", handlers.GetTransitionLog)
	w.Get("/:id/tasks", handlers.WorkflowTasks)
	w.Post("/:id/events", handlers.BroadcastEvent)
	w.Get("/:id/events", handlers.EventHistory)

	tk := app.Group("/tasks")
	tk.Post("/", handlers.CreateTask)
	tk.Get("/my", handlers.MyTasks)
	tk.Patch("/:id/status", handlers.UpdateTaskStatus)
	tk.Post("/:id/assign", handlers.AssignTask)

	cl := app.Group("/clinics/:clinicId")
	cl.Post("/tasks/reprioritize", handlers.ReprioritizeTasks)
	cl.Post("/tasks/auto-assign", handlers.AutoAssignTasks)
	cl.Get("/dashboard", handlers.DashboardSummary)

	return app
}

func createTestWorkflow(t *testing.T, app *fiber.App) models.WorkflowState {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"clinic_id":         "clinic-1",
		"customer_id":       "cust-1",
		"customer_name":     "Mdm Tan",
		"assigned_sales_id": "sales-1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	return created
}

func doJSON(t *testing.T, app *fiber.App, method, url string, payload any, actor string) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, url, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	created := createTestWorkflow(t, app)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StageLeadCreated, created.CurrentStage)
	assert.Equal(t, int64(0), created.Version)
}

func TestAPIHandlers_CreateWorkflow_ValidationError(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/workflows", map[string]any{
		"clinic_id": "clinic-1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateWorkflow_DuplicateActive(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows", map[string]any{
		"clinic_id":         "clinic-1",
		"customer_id":       "cust-1",
		"customer_name":     "Mdm Tan",
		"assigned_sales_id": "sales-1",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ExecuteTransition(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
		"action":      "scan_customer",
		"action_data": map[string]any{"scan_id": "scan-1"},
	}, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.WorkflowState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, models.StageScanned, updated.CurrentStage)
	assert.Equal(t, int64(1), updated.Version)
}

func TestAPIHandlers_ExecuteTransition_RequiresActor(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
		"action": "scan_customer",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ExecuteTransition_InvalidEdge(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
		"action": "confirm_payment",
		"action_data": map[string]any{
			"amount": 1200.0,
		},
	}, "sales-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ExecuteTransition_InvalidActionData(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	for _, action := range []string{"scan_customer", "send_proposal"} {
		resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
			"action": action,
		}, "sales-1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// confirm_payment requires a positive amount
	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
		"action":      "confirm_payment",
		"action_data": map[string]any{"amount": 0},
	}, "sales-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/workflows/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ListWorkflows(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodGet, "/workflows/?clinic_id=clinic-1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Workflows []models.WorkflowState `json:"workflows"`
		Count     int                    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Count)

	resp = doJSON(t, app, http.MethodGet, "/workflows/", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetTransitionLog(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/transitions", map[string]any{
		"action": "scan_customer",
	}, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/actions", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Actions []models.WorkflowAction `json:"actions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Actions, 2)
	assert.Equal(t, models.ActionWorkflowCreated, result.Actions[0].ActionType)
	assert.Equal(t, models.ActionScanCustomer, result.Actions[1].ActionType)
}

func TestAPIHandlers_TaskLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/tasks/", map[string]any{
		"workflow_id":   created.ID,
		"assigned_to":   "sales-1",
		"task_type":     "follow_up_call",
		"customer_name": "Mdm Tan",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task models.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, "Follow-up call: Mdm Tan", task.Title)
	assert.Equal(t, models.PriorityMedium, task.Priority)

	resp = doJSON(t, app, http.MethodPatch, "/tasks/"+task.ID+"/status", map[string]any{
		"status": "in_progress",
	}, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// completed -> in_progress is not a legal move
	resp = doJSON(t, app, http.MethodPatch, "/tasks/"+task.ID+"/status", map[string]any{
		"status": "completed",
	}, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPatch, "/tasks/"+task.ID+"/status", map[string]any{
		"status": "in_progress",
	}, "sales-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_CreateTask_UnknownType(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/tasks/", map[string]any{
		"workflow_id":   created.ID,
		"task_type":     "make_coffee",
		"customer_name": "Mdm Tan",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_MyTasks(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/tasks/", map[string]any{
		"workflow_id":   created.ID,
		"assigned_to":   "sales-1",
		"task_type":     "follow_up_call",
		"customer_name": "Mdm Tan",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/tasks/my", nil, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Tasks []models.Task `json:"tasks"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Count)

	resp = doJSON(t, app, http.MethodGet, "/tasks/my", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_AutoAssign(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/tasks/", map[string]any{
		"workflow_id":   created.ID,
		"task_type":     "follow_up_call",
		"customer_name": "Mdm Tan",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/clinics/clinic-1/tasks/auto-assign", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Assigned int `json:"assigned"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Assigned)
}

func TestAPIHandlers_Reprioritize(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/clinics/clinic-1/tasks/reprioritize", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 0, result.Updated)
}

func TestAPIHandlers_BroadcastAndHistory(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/events", map[string]any{
		"event_type":   "upsell_opportunity",
		"target_users": []string{"sales-1"},
		"data":         map[string]any{"note": "interested in package upgrade"},
	}, "beautician-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/events?event_types=upsell_opportunity", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Events []models.Event `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Events, 1)
	assert.Equal(t, "upsell_opportunity", result.Events[0].EventType)
	assert.Equal(t, "beautician-1", result.Events[0].SourceUserID)
}

func TestAPIHandlers_BroadcastEvent_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/workflows/missing/events", map[string]any{
		"event_type":   "upsell_opportunity",
		"target_users": []string{"sales-1"},
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_DashboardSummary(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createTestWorkflow(t, app)

	resp := doJSON(t, app, http.MethodPost, "/tasks/", map[string]any{
		"workflow_id":   created.ID,
		"assigned_to":   "sales-1",
		"task_type":     "follow_up_call",
		"customer_name": "Mdm Tan",
		"priority":      "high",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/clinics/clinic-1/dashboard", nil, "sales-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary web.DashboardSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.TotalWorkflows)
	assert.Equal(t, 1, summary.ActiveWorkflows)
	assert.Equal(t, 1, summary.StageDistribution["lead_created"])
	assert.Equal(t, 1, summary.PendingTasks)
	assert.Equal(t, 1, summary.TasksByPriority["high"])
}
