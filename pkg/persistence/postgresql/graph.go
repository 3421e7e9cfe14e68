package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same repository
// code serves auto-commit reads and transactional writes. The repository
// never begins or ends a transaction itself.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GraphRepository handles workflow graph database operations.
type GraphRepository struct {
	q      querier
	logger *slog.Logger
}

// NewGraphRepository creates a graph repository bound to the given handle.
func NewGraphRepository(q querier, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{q: q, logger: logger}
}

// CreateWorkflow inserts a new workflow row.
func (r *GraphRepository) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflows (id, owner_id, name, title, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		workflow.ID,
		workflow.OwnerID,
		workflow.Name,
		workflow.Title,
		workflow.Enabled,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_workflows_name") {
			return persistence.NewGraphError("CreateWorkflow", workflow.ID, persistence.ErrWorkflowNameTaken)
		}

		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// UpdateWorkflow persists the mutable workflow fields.
func (r *GraphRepository) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workflows
		SET name = $2, title = $3, enabled = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Title,
		workflow.Enabled,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_workflows_name") {
			return persistence.NewGraphError("UpdateWorkflow", workflow.ID, persistence.ErrWorkflowNameTaken)
		}

		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewGraphError("UpdateWorkflow", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// GetWorkflow returns a workflow by ID, or (nil, nil) when absent.
func (r *GraphRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, owner_id, name, title, enabled, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// ListWorkflowsByOwner returns the workflows owned by ownerID, newest first.
func (r *GraphRepository) ListWorkflowsByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	query := `
		SELECT id, owner_id, name, title, enabled, created_at, updated_at
		FROM workflows
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// InsertNodes appends nodes to a workflow, assigning identities.
func (r *GraphRepository) InsertNodes(ctx context.Context, workflowID string, nodes []persistence.NodeInput) ([]*models.Node, error) {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, position_x, position_y)
		VALUES ($1, $2, $3, $4)
	`

	inserted := make([]*models.Node, 0, len(nodes))

	for _, input := range nodes {
		node := &models.Node{
			ID:         uuid.New().String(),
			WorkflowID: workflowID,
			PositionX:  input.PositionX,
			PositionY:  input.PositionY,
		}

		_, err := r.q.ExecContext(ctx, query, node.WorkflowID, node.ID, node.PositionX, node.PositionY)
		if err != nil {
			if isForeignKeyViolation(err, "fk_nodes_workflow") {
				return nil, persistence.NewGraphError("InsertNodes", workflowID, persistence.ErrWorkflowNotFound)
			}

			return nil, fmt.Errorf("failed to insert node: %w", err)
		}

		inserted = append(inserted, node)
	}

	return inserted, nil
}

// InsertConnections appends edges to a workflow. Endpoint membership is
// enforced by the composite foreign keys on workflow_connections.
func (r *GraphRepository) InsertConnections(ctx context.Context, workflowID string, edges []persistence.EdgeInput) ([]*models.Connection, error) {
	query := `
		INSERT INTO workflow_connections (workflow_id, id, from_id, to_id)
		VALUES ($1, $2, $3, $4)
	`

	inserted := make([]*models.Connection, 0, len(edges))

	for _, input := range edges {
		connection := &models.Connection{
			ID:         uuid.New().String(),
			WorkflowID: workflowID,
			FromID:     input.FromID,
			ToID:       input.ToID,
		}

		_, err := r.q.ExecContext(ctx, query, connection.WorkflowID, connection.ID, connection.FromID, connection.ToID)
		if err != nil {
			if isForeignKeyViolation(err, "fk_connections_from") || isForeignKeyViolation(err, "fk_connections_to") {
				return nil, persistence.NewGraphError("InsertConnections", workflowID, persistence.ErrNodeNotInWorkflow)
			}

			if isForeignKeyViolation(err, "fk_connections_workflow") {
				return nil, persistence.NewGraphError("InsertConnections", workflowID, persistence.ErrWorkflowNotFound)
			}

			return nil, fmt.Errorf("failed to insert connection: %w", err)
		}

		inserted = append(inserted, connection)
	}

	return inserted, nil
}

// ReplaceNodes drops the workflow's node set (its connections go with it)
// and inserts the given one. Runs entirely on the repository's handle; the
// caller owns the transaction.
func (r *GraphRepository) ReplaceNodes(ctx context.Context, workflowID string, nodes []persistence.NodeInput) ([]*models.Node, error) {
	_, err := r.q.ExecContext(ctx, "DELETE FROM workflow_connections WHERE workflow_id = $1", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing connections: %w", err)
	}

	_, err = r.q.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	return r.InsertNodes(ctx, workflowID, nodes)
}

// ReplaceConnections drops the workflow's connection set and inserts the
// given one.
func (r *GraphRepository) ReplaceConnections(ctx context.Context, workflowID string, edges []persistence.EdgeInput) ([]*models.Connection, error) {
	_, err := r.q.ExecContext(ctx, "DELETE FROM workflow_connections WHERE workflow_id = $1", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing connections: %w", err)
	}

	return r.InsertConnections(ctx, workflowID, edges)
}

// NodesByWorkflow returns the workflow's nodes in a stable order. Rows
// batch-inserted in one transaction share a created_at, so id breaks ties.
func (r *GraphRepository) NodesByWorkflow(ctx context.Context, workflowID string) ([]*models.Node, error) {
	query := `
		SELECT id, workflow_id, position_x, position_y
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer r.closeRows(ctx, rows)

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var node models.Node

		err := rows.Scan(&node.ID, &node.WorkflowID, &node.PositionX, &node.PositionY)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// ConnectionsByWorkflow returns the workflow's connections in a stable order.
func (r *GraphRepository) ConnectionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Connection, error) {
	query := `
		SELECT id, workflow_id, from_id, to_id
		FROM workflow_connections
		WHERE workflow_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow connections: %w", err)
	}

	defer r.closeRows(ctx, rows)

	connections := make([]*models.Connection, 0)

	for rows.Next() {
		var connection models.Connection

		err := rows.Scan(&connection.ID, &connection.WorkflowID, &connection.FromID, &connection.ToID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		connections = append(connections, &connection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

// DeleteWorkflowCascade removes the workflow with all dependent rows.
// Children go first so the delete works regardless of cascade rules.
func (r *GraphRepository) DeleteWorkflowCascade(ctx context.Context, workflowID string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM workflow_connections WHERE workflow_id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow connections: %w", err)
	}

	_, err = r.q.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow nodes: %w", err)
	}

	result, err := r.q.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewGraphError("DeleteWorkflowCascade", workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *GraphRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.OwnerID,
		&workflow.Name,
		&workflow.Title,
		&workflow.Enabled,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) &&
		pqErr.Code.Name() == "unique_violation" &&
		pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) &&
		pqErr.Code.Name() == "foreign_key_violation" &&
		pqErr.Constraint == constraint
}
