package services

import (
	"context"
	"fmt"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
)

// assertOwnership loads the workflow and checks it belongs to ownerID. A
// missing workflow yields ErrWorkflowNotFound; a workflow owned by someone
// else yields ErrNotWorkflowOwner.
func assertOwnership(ctx context.Context, store persistence.GraphStore, ownerID, workflowID string) (*models.Workflow, error) {
	workflow, err := store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	if workflow.OwnerID != ownerID {
		return nil, ErrNotWorkflowOwner
	}

	return workflow, nil
}
