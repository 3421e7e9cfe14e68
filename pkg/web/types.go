// Package web provides HTTP request and response types for the graph API.
package web

import "github.com/fluxohq/fluxo/pkg/models"

// NodePayload represents a node in a graph mutation request. The id is a
// client-chosen placeholder used to wire connections; stored nodes get
// server-issued ids.
type NodePayload struct {
	ID        string  `json:"id"         validate:"required"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
}

// ConnectionPayload represents a directed edge between two nodes.
type ConnectionPayload struct {
	FromID string `json:"from_id" validate:"required"`
	ToID   string `json:"to_id"   validate:"required"`
}

// CreateWorkflowRequest represents the request body for creating a workflow
// graph.
type CreateWorkflowRequest struct {
	Name        string              `json:"name"        validate:"required,max=128"`
	Title       string              `json:"title"       validate:"required,max=32"`
	Enabled     bool                `json:"enabled"`
	Nodes       []NodePayload       `json:"nodes"       validate:"dive"`
	Connections []ConnectionPayload `json:"connections" validate:"dive"`
}

// UpdateWorkflowRequest represents a partial graph update. Absent fields keep
// the stored values; an empty nodes array clears the graph.
type UpdateWorkflowRequest struct {
	Name        *string             `json:"name,omitempty"        validate:"omitempty,min=1,max=128"`
	Title       *string             `json:"title,omitempty"       validate:"omitempty,min=1,max=32"`
	Enabled     *bool               `json:"enabled,omitempty"`
	Nodes       []NodePayload       `json:"nodes,omitempty"       validate:"omitempty,dive"`
	Connections []ConnectionPayload `json:"connections,omitempty" validate:"omitempty,dive"`
}

// GraphResponse is the full graph representation returned by the API.
type GraphResponse struct {
	Workflow    *models.Workflow     `json:"workflow"`
	Nodes       []*models.Node       `json:"nodes"`
	Connections []*models.Connection `json:"connections"`
}

// TransformGraphResponse converts a service graph into the API shape.
func TransformGraphResponse(graph *models.WorkflowGraph) GraphResponse {
	return GraphResponse{
		Workflow:    graph.Workflow,
		Nodes:       graph.Nodes,
		Connections: graph.Connections,
	}
}

// SignupRequest represents the request body for registering a user.
type SignupRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"      validate:"required,email"`
	Password  string `json:"password"   validate:"required,min=8"`
}

// SigninRequest represents the request body for signing in.
type SigninRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries the bearer token issued on signin.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// CredentialRequest represents the request body for creating or updating a
// credential.
type CredentialRequest struct {
	Title    string         `json:"title"    validate:"required,min=1"`
	Platform string         `json:"platform" validate:"required"`
	Data     map[string]any `json:"data"     validate:"required"`
}
