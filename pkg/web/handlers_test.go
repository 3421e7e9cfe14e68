package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fluxohq/fluxo/pkg/persistence/memory"
	"github.com/fluxohq/fluxo/pkg/services"
	"github.com/fluxohq/fluxo/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	persistence := memory.NewPersistence(logger)

	graphService := services.NewGraph(persistence, nil, logger)
	credentialService := services.NewCredential(persistence.Credentials(), logger)

	authService, err := services.NewAuth(persistence.Users(), "test-secret", time.Hour, logger)
	require.NoError(t, err)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(graphService, authService, credentialService, validate)

	app := fiber.New()

	auth := app.Group("/auth")
	auth.Post("/signup", handlers.Signup)
	auth.Post("/signin", handlers.Signin)
	auth.Get("/me", handlers.RequireAuth(handlers.GetCurrentUser))

	w := app.Group("/workflows")
	w.Get("/", handlers.RequireAuth(handlers.GetWorkflows))
	w.Post("/", handlers.RequireAuth(handlers.CreateWorkflow))
	w.Get("/:id", handlers.RequireAuth(handlers.GetWorkflow))
	w.Patch("/:id", handlers.RequireAuth(handlers.UpdateWorkflow))
	w.Delete("/:id", handlers.RequireAuth(handlers.DeleteWorkflow))

	cr := app.Group("/credentials")
	cr.Get("/", handlers.RequireAuth(handlers.GetCredentials))
	cr.Post("/", handlers.RequireAuth(handlers.CreateCredential))
	cr.Get("/:id", handlers.RequireAuth(handlers.GetCredential))
	cr.Patch("/:id", handlers.RequireAuth(handlers.UpdateCredential))
	cr.Delete("/:id", handlers.RequireAuth(handlers.DeleteCredential))

	return app
}

func jsonRequest(t *testing.T, method, path string, body any, token string) *http.Request {
	t.Helper()

	var reader io.Reader

	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func signupAndSignin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/auth/signup", web.SignupRequest{
		FirstName: "Test",
		Email:     email,
		Password:  "pw-12345678",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/auth/signin", web.SigninRequest{
		Email:    email,
		Password: "pw-12345678",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokenResp web.TokenResponse

	err = json.NewDecoder(resp.Body).Decode(&tokenResp)
	require.NoError(t, err)
	require.NotEmpty(t, tokenResp.Token)

	return tokenResp.Token
}

func createGraph(t *testing.T, app *fiber.App, token string, body web.CreateWorkflowRequest) web.GraphResponse {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", body, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var graph web.GraphResponse

	err = json.NewDecoder(resp.Body).Decode(&graph)
	require.NoError(t, err)

	return graph
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:  "order-pipeline",
				Title: "Order Pipeline",
				Nodes: []web.NodePayload{
					{ID: "tmp-a", PositionX: 10, PositionY: 20},
					{ID: "tmp-b", PositionX: 30, PositionY: 40},
				},
				Connections: []web.ConnectionPayload{
					{FromID: "tmp-a", ToID: "tmp-b"},
				},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing name",
			requestBody: web.CreateWorkflowRequest{
				Title: "No Name",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing title",
			requestBody: web.CreateWorkflowRequest{
				Name: "no-title",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - edge references unknown node",
			requestBody: web.CreateWorkflowRequest{
				Name:  "bad-edges",
				Title: "Bad Edges",
				Nodes: []web.NodePayload{
					{ID: "tmp-a"},
				},
				Connections: []web.ConnectionPayload{
					{FromID: "tmp-a", ToID: "ghost"},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - self loop",
			requestBody: web.CreateWorkflowRequest{
				Name:  "loop",
				Title: "Loop",
				Nodes: []web.NodePayload{
					{ID: "tmp-a"},
				},
				Connections: []web.ConnectionPayload{
					{FromID: "tmp-a", ToID: "tmp-a"},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t)
			token := signupAndSignin(t, app, "ada@example.com")

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", tt.requestBody, token))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var graph web.GraphResponse

				err = json.NewDecoder(resp.Body).Decode(&graph)
				require.NoError(t, err)
				assert.NotEmpty(t, graph.Workflow.ID)
				assert.Len(t, graph.Nodes, 2)
				require.Len(t, graph.Connections, 1)
				assert.NotEqual(t, "tmp-a", graph.Connections[0].FromID, "placeholder ids must be remapped")
			}
		})
	}
}

func TestAPIHandlers_CreateWorkflow_NameConflict(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	createGraph(t, app, token, web.CreateWorkflowRequest{Name: "taken", Title: "First"})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name:  "taken",
		Title: "Second",
	}, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_Unauthorized(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/workflows/", nil, "garbage-token"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	created := createGraph(t, app, token, web.CreateWorkflowRequest{
		Name:  "wf",
		Title: "WF",
		Nodes: []web.NodePayload{{ID: "a"}, {ID: "b"}},
		Connections: []web.ConnectionPayload{
			{FromID: "a", ToID: "b"},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+created.Workflow.ID, nil, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var graph web.GraphResponse

	err = json.NewDecoder(resp.Body).Decode(&graph)
	require.NoError(t, err)
	assert.Equal(t, created.Workflow.ID, graph.Workflow.ID)
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Connections, 1)
}

func TestAPIHandlers_GetWorkflow_ForbiddenAndNotFound(t *testing.T) {
	app := setupTestApp(t)
	ownerToken := signupAndSignin(t, app, "owner@example.com")
	intruderToken := signupAndSignin(t, app, "intruder@example.com")

	created := createGraph(t, app, ownerToken, web.CreateWorkflowRequest{Name: "wf", Title: "WF"})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+created.Workflow.ID, nil, intruderToken))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/workflows/missing", nil, ownerToken))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	created := createGraph(t, app, token, web.CreateWorkflowRequest{
		Name:  "wf",
		Title: "WF",
		Nodes: []web.NodePayload{{ID: "a"}, {ID: "b"}},
		Connections: []web.ConnectionPayload{
			{FromID: "a", ToID: "b"},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+created.Workflow.ID, map[string]any{
		"title":   "Renamed",
		"enabled": true,
	}, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var graph web.GraphResponse

	err = json.NewDecoder(resp.Body).Decode(&graph)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", graph.Workflow.Title)
	assert.True(t, graph.Workflow.Enabled)
	assert.Len(t, graph.Nodes, 2, "metadata patch keeps the stored graph")
	assert.Len(t, graph.Connections, 1)
}

func TestAPIHandlers_UpdateWorkflow_NodesWithoutConnections(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	created := createGraph(t, app, token, web.CreateWorkflowRequest{Name: "wf", Title: "WF"})

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+created.Workflow.ID, map[string]any{
		"nodes": []map[string]any{{"id": "a"}},
	}, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow_ReplaceGraph(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	created := createGraph(t, app, token, web.CreateWorkflowRequest{
		Name:  "wf",
		Title: "WF",
		Nodes: []web.NodePayload{{ID: "a"}},
		Connections: []web.ConnectionPayload{},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+created.Workflow.ID, map[string]any{
		"nodes": []map[string]any{
			{"id": "x", "position_x": 1.5},
			{"id": "y", "position_x": 2.5},
		},
		"connections": []map[string]any{
			{"from_id": "x", "to_id": "y"},
		},
	}, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var graph web.GraphResponse

	err = json.NewDecoder(resp.Body).Decode(&graph)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Connections, 1)
	assert.NotEqual(t, "x", graph.Connections[0].FromID)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	app := setupTestApp(t)
	token := signupAndSignin(t, app, "ada@example.com")

	created := createGraph(t, app, token, web.CreateWorkflowRequest{Name: "wf", Title: "WF"})

	resp, err := app.Test(jsonRequest(t, http.MethodDelete, "/workflows/"+created.Workflow.ID, nil, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Repeat delete reports 404.
	resp, err = app.Test(jsonRequest(t, http.MethodDelete, "/workflows/"+created.Workflow.ID, nil, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ListWorkflows_OwnerScoped(t *testing.T) {
	app := setupTestApp(t)
	adaToken := signupAndSignin(t, app, "ada@example.com")
	bobToken := signupAndSignin(t, app, "bob@example.com")

	createGraph(t, app, adaToken, web.CreateWorkflowRequest{Name: "ada-wf", Title: "Ada"})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/", nil, bobToken))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Workflows []json.RawMessage `json:"workflows"`
	}

	err = json.NewDecoder(resp.Body).Decode(&body)
	require.NoError(t, err)
	assert.Empty(t, body.Workflows)
}
