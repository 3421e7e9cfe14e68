// Package web provides HTTP handlers and REST API endpoints for workflow
// graph management.
package web

import (
	"net/http"
	"time"

	"github.com/fluxohq/fluxo/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthedHandler is a handler that receives the authenticated caller id
// explicitly instead of reading it from request-scoped ambient state.
type AuthedHandler func(c fiber.Ctx, callerID string) error

type APIHandlers struct {
	graphService      *services.Graph
	authService       *services.Auth
	credentialService *services.Credential
	validator         *validator.Validate
}

func NewAPIHandlers(
	graphService *services.Graph,
	authService *services.Auth,
	credentialService *services.Credential,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		graphService:      graphService,
		authService:       authService,
		credentialService: credentialService,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.graphService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Fluxo API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Fluxo API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx, callerID string) error {
	workflows, err := h.graphService.ListGraphs(c.Context(), callerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	graph, err := h.graphService.GetGraph(c.Context(), callerID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformGraphResponse(graph))
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx, callerID string) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	graph, err := h.graphService.CreateGraph(c.Context(), services.CreateGraphRequest{
		OwnerID:     callerID,
		Name:        req.Name,
		Title:       req.Title,
		Enabled:     req.Enabled,
		Nodes:       toNodeSpecs(req.Nodes),
		Connections: toEdgeSpecs(req.Connections),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformGraphResponse(graph))
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	replace := services.ReplaceGraphRequest{
		Name:    req.Name,
		Title:   req.Title,
		Enabled: req.Enabled,
	}

	// A nil slice means the field was absent and the stored rows are kept.
	if req.Nodes != nil {
		replace.Nodes = toNodeSpecs(req.Nodes)
	}

	if req.Connections != nil {
		replace.Connections = toEdgeSpecs(req.Connections)
	}

	graph, err := h.graphService.ReplaceGraph(c.Context(), callerID, id, replace)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformGraphResponse(graph))
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.graphService.DeleteGraph(c.Context(), callerID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toNodeSpecs(payloads []NodePayload) []services.NodeSpec {
	specs := make([]services.NodeSpec, len(payloads))
	for i, payload := range payloads {
		specs[i] = services.NodeSpec{
			ID:        payload.ID,
			PositionX: payload.PositionX,
			PositionY: payload.PositionY,
		}
	}

	return specs
}

func toEdgeSpecs(payloads []ConnectionPayload) []services.EdgeSpec {
	specs := make([]services.EdgeSpec, len(payloads))
	for i, payload := range payloads {
		specs[i] = services.EdgeSpec{
			FromID: payload.FromID,
			ToID:   payload.ToID,
		}
	}

	return specs
}
