package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fluxohq/fluxo/pkg/eventbus"
	"github.com/fluxohq/fluxo/pkg/events"
	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/otelhelper"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Graph is the transaction boundary for workflow graph use cases. Every
// mutating operation runs inside a single persistence transaction; lifecycle
// events are published only after the transaction commits.
type Graph struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewGraph creates a new graph service. The publisher may be nil; lifecycle
// events are then skipped.
func NewGraph(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Graph {
	return &Graph{
		persistence: persistence,
		publisher:   publisher,
		tracer:      otel.Tracer("fluxo.services.graph"),
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (g *Graph) HealthCheck(ctx context.Context) (string, bool) {
	if g.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := g.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// NodeSpec describes a node in a graph mutation request. The ID is a
// client-chosen placeholder; persisted nodes always get server-issued ids.
type NodeSpec struct {
	ID        string
	PositionX float64
	PositionY float64
}

// EdgeSpec describes a directed connection between two nodes. In CreateGraph
// (and node-replacing updates) the endpoints reference NodeSpec placeholder
// ids; in connection-only updates they reference persisted node ids.
type EdgeSpec struct {
	FromID string
	ToID   string
}

// CreateGraphRequest contains everything needed to persist a new graph.
type CreateGraphRequest struct {
	OwnerID     string
	Name        string
	Title       string
	Enabled     bool
	Nodes       []NodeSpec
	Connections []EdgeSpec
}

// CreateGraph persists a workflow with its nodes and connections atomically.
// Placeholder node ids from the request are remapped to the server-issued
// ids before the connections are inserted.
func (g *Graph) CreateGraph(ctx context.Context, req CreateGraphRequest) (*models.WorkflowGraph, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "graph.create",
		attribute.String(otelhelper.OwnerIDKey, req.OwnerID),
		attribute.Int(otelhelper.NodeCountKey, len(req.Nodes)),
		attribute.Int(otelhelper.EdgeCountKey, len(req.Connections)),
	)
	defer span.End()

	err := validateCreateGraphRequest(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	graph := &models.WorkflowGraph{}

	err = g.persistence.Transaction(ctx, func(store persistence.GraphStore) error {
		workflow := &models.Workflow{
			OwnerID: req.OwnerID,
			Name:    req.Name,
			Title:   req.Title,
			Enabled: req.Enabled,
		}

		err := store.CreateWorkflow(ctx, workflow)
		if err != nil {
			return err
		}

		nodes, remap, err := insertRemappedNodes(ctx, store, workflow.ID, req.Nodes)
		if err != nil {
			return err
		}

		connections, err := store.InsertConnections(ctx, workflow.ID, remapEdges(req.Connections, remap))
		if err != nil {
			return err
		}

		graph.Workflow = workflow
		graph.Nodes = nodes
		graph.Connections = connections

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, mapStoreError(err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, graph.Workflow.ID))

	created := events.WorkflowCreated{
		BaseEvent:       events.NewBaseEvent(events.WorkflowCreatedEvent, graph.Workflow.ID),
		WorkflowName:    graph.Workflow.Name,
		NodeCount:       len(graph.Nodes),
		ConnectionCount: len(graph.Connections),
	}
	created.OwnerID = req.OwnerID
	g.publish(ctx, graph.Workflow.ID, created)

	return graph, nil
}

// ReplaceGraphRequest is a partial update. Nil pointer fields keep the stored
// metadata; a nil Nodes or Connections slice keeps the stored rows. Nodes
// cannot be replaced without their connections: the stored edges would be
// left pointing at deleted rows.
type ReplaceGraphRequest struct {
	Name        *string
	Title       *string
	Enabled     *bool
	Nodes       []NodeSpec
	Connections []EdgeSpec
}

// ReplaceGraph applies a partial update to the owner's workflow. Replacing
// nodes discards all stored connections first; the request's edges reference
// the new placeholder ids. A connections-only update references persisted
// node ids directly.
func (g *Graph) ReplaceGraph(ctx context.Context, ownerID, workflowID string, req ReplaceGraphRequest) (*models.WorkflowGraph, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "graph.replace",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	err := validateReplaceGraphRequest(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	graph := &models.WorkflowGraph{}

	err = g.persistence.Transaction(ctx, func(store persistence.GraphStore) error {
		workflow, err := assertOwnership(ctx, store, ownerID, workflowID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			workflow.Name = *req.Name
		}

		if req.Title != nil {
			workflow.Title = *req.Title
		}

		if req.Enabled != nil {
			workflow.Enabled = *req.Enabled
		}

		// Replacing graph content counts as a workflow update too, so
		// updated_at moves even when no metadata field changed.
		metadataChanged := req.Name != nil || req.Title != nil || req.Enabled != nil
		if metadataChanged || req.Nodes != nil || req.Connections != nil {
			err = store.UpdateWorkflow(ctx, workflow)
			if err != nil {
				return err
			}
		}

		graph.Workflow = workflow

		switch {
		case req.Nodes != nil:
			nodes, remap, err := replaceRemappedNodes(ctx, store, workflowID, req.Nodes)
			if err != nil {
				return err
			}

			connections, err := store.InsertConnections(ctx, workflowID, remapEdges(req.Connections, remap))
			if err != nil {
				return err
			}

			graph.Nodes = nodes
			graph.Connections = connections
		case req.Connections != nil:
			edges := make([]persistence.EdgeInput, len(req.Connections))
			for i, edge := range req.Connections {
				edges[i] = persistence.EdgeInput{FromID: edge.FromID, ToID: edge.ToID}
			}

			connections, err := store.ReplaceConnections(ctx, workflowID, edges)
			if err != nil {
				return err
			}

			graph.Connections = connections

			graph.Nodes, err = store.NodesByWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}
		default:
			graph.Nodes, err = store.NodesByWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}

			graph.Connections, err = store.ConnectionsByWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, mapStoreError(err)
	}

	updated := events.WorkflowUpdated{
		BaseEvent:       events.NewBaseEvent(events.WorkflowUpdatedEvent, workflowID),
		WorkflowName:    graph.Workflow.Name,
		NodesReplaced:   req.Nodes != nil,
		EdgesReplaced:   req.Nodes != nil || req.Connections != nil,
		NodeCount:       len(graph.Nodes),
		ConnectionCount: len(graph.Connections),
	}
	updated.OwnerID = ownerID
	g.publish(ctx, workflowID, updated)

	return graph, nil
}

// GetGraph returns the owner's workflow with all nodes and connections. The
// three reads run in one transaction so a concurrent replace can never tear
// the snapshot between the node and connection queries.
func (g *Graph) GetGraph(ctx context.Context, ownerID, workflowID string) (*models.WorkflowGraph, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "graph.get",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	graph := &models.WorkflowGraph{}

	err := g.persistence.Transaction(ctx, func(store persistence.GraphStore) error {
		workflow, err := assertOwnership(ctx, store, ownerID, workflowID)
		if err != nil {
			return err
		}

		graph.Workflow = workflow

		graph.Nodes, err = store.NodesByWorkflow(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("failed to load nodes: %w", err)
		}

		graph.Connections, err = store.ConnectionsByWorkflow(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("failed to load connections: %w", err)
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return graph, nil
}

// ListGraphs returns workflow summaries for the owner, without nodes or
// connections.
func (g *Graph) ListGraphs(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "graph.list",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
	)
	defer span.End()

	if ownerID == "" {
		return nil, ErrEmptyOwnerID
	}

	workflows, err := g.persistence.Graph().ListWorkflowsByOwner(ctx, ownerID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// DeleteGraph removes the owner's workflow with all nodes and connections.
// Deleting an already-deleted workflow yields ErrWorkflowNotFound.
func (g *Graph) DeleteGraph(ctx context.Context, ownerID, workflowID string) error {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "graph.delete",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	var name string

	err := g.persistence.Transaction(ctx, func(store persistence.GraphStore) error {
		workflow, err := assertOwnership(ctx, store, ownerID, workflowID)
		if err != nil {
			return err
		}

		name = workflow.Name

		return store.DeleteWorkflowCascade(ctx, workflowID)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return mapStoreError(err)
	}

	deleted := events.WorkflowDeleted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowDeletedEvent, workflowID),
		WorkflowName: name,
	}
	deleted.OwnerID = ownerID
	g.publish(ctx, workflowID, deleted)

	return nil
}

func (g *Graph) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if g.publisher == nil {
		return
	}

	err := g.publisher.Publish(ctx, workflowID, event)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to publish graph event",
			"event_type", event.GetType(),
			"workflow_id", workflowID,
			"error", err)
	}
}

func insertRemappedNodes(ctx context.Context, store persistence.GraphStore, workflowID string, specs []NodeSpec) ([]*models.Node, map[string]string, error) {
	inputs := make([]persistence.NodeInput, len(specs))
	for i, spec := range specs {
		inputs[i] = persistence.NodeInput{PositionX: spec.PositionX, PositionY: spec.PositionY}
	}

	nodes, err := store.InsertNodes(ctx, workflowID, inputs)
	if err != nil {
		return nil, nil, err
	}

	remap := make(map[string]string, len(specs))
	for i, spec := range specs {
		remap[spec.ID] = nodes[i].ID
	}

	return nodes, remap, nil
}

func replaceRemappedNodes(ctx context.Context, store persistence.GraphStore, workflowID string, specs []NodeSpec) ([]*models.Node, map[string]string, error) {
	inputs := make([]persistence.NodeInput, len(specs))
	for i, spec := range specs {
		inputs[i] = persistence.NodeInput{PositionX: spec.PositionX, PositionY: spec.PositionY}
	}

	nodes, err := store.ReplaceNodes(ctx, workflowID, inputs)
	if err != nil {
		return nil, nil, err
	}

	remap := make(map[string]string, len(specs))
	for i, spec := range specs {
		remap[spec.ID] = nodes[i].ID
	}

	return nodes, remap, nil
}

func remapEdges(specs []EdgeSpec, remap map[string]string) []persistence.EdgeInput {
	edges := make([]persistence.EdgeInput, len(specs))
	for i, spec := range specs {
		edges[i] = persistence.EdgeInput{FromID: remap[spec.FromID], ToID: remap[spec.ToID]}
	}

	return edges
}

func validateCreateGraphRequest(req CreateGraphRequest) error {
	if req.OwnerID == "" {
		return ErrEmptyOwnerID
	}

	if req.Name == "" {
		return ErrWorkflowNameRequired
	}

	return validateGraphShape(req.Nodes, req.Connections)
}

func validateReplaceGraphRequest(req ReplaceGraphRequest) error {
	if req.Name != nil && *req.Name == "" {
		return ErrWorkflowNameRequired
	}

	if req.Nodes != nil && req.Connections == nil {
		return NewValidationError(
			"ReplaceGraph",
			"NODES_WITHOUT_CONNECTIONS",
			"replacing nodes requires the connections that reference them",
			ErrNodesWithoutConnections,
		)
	}

	if req.Nodes != nil {
		return validateGraphShape(req.Nodes, req.Connections)
	}

	for _, edge := range req.Connections {
		if edge.FromID == edge.ToID {
			return NewValidationError(
				"ReplaceGraph",
				"SELF_REFERENCING_EDGE",
				fmt.Sprintf("connection from node %q to itself", edge.FromID),
				ErrSelfReferencingEdge,
			)
		}
	}

	return nil
}

// validateGraphShape checks placeholder ids and edge endpoints when nodes and
// connections arrive together in one request.
func validateGraphShape(nodes []NodeSpec, edges []EdgeSpec) error {
	seen := make(map[string]struct{}, len(nodes))

	for _, node := range nodes {
		if node.ID == "" {
			return NewValidationError(
				"validateGraphShape",
				"MISSING_NODE_ID",
				"every node needs a placeholder id",
				ErrInvalidRequest,
			)
		}

		_, duplicate := seen[node.ID]
		if duplicate {
			return NewValidationError(
				"validateGraphShape",
				"DUPLICATE_NODE_ID",
				fmt.Sprintf("node id %q appears more than once", node.ID),
				ErrDuplicateNodeID,
			)
		}

		seen[node.ID] = struct{}{}
	}

	for _, edge := range edges {
		if edge.FromID == edge.ToID {
			return NewValidationError(
				"validateGraphShape",
				"SELF_REFERENCING_EDGE",
				fmt.Sprintf("connection from node %q to itself", edge.FromID),
				ErrSelfReferencingEdge,
			)
		}

		for _, endpoint := range []string{edge.FromID, edge.ToID} {
			_, known := seen[endpoint]
			if !known {
				return NewValidationError(
					"validateGraphShape",
					"UNKNOWN_EDGE_ENDPOINT",
					fmt.Sprintf("connection references unknown node %q", endpoint),
					ErrUnknownEdgeEndpoint,
				)
			}
		}
	}

	return nil
}

// mapStoreError translates store-level referential integrity failures into
// the service validation vocabulary. Everything else passes through so the
// sentinel helpers keep working.
func mapStoreError(err error) error {
	if persistence.IsNodeNotInWorkflow(err) {
		return NewValidationError(
			"mapStoreError",
			"UNKNOWN_EDGE_ENDPOINT",
			"connection references a node outside the workflow",
			ErrUnknownEdgeEndpoint,
		)
	}

	return err
}
