package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNameTaken indicates a workflow with the same name already exists.
	ErrWorkflowNameTaken = errors.New("workflow name already taken")

	// ErrNodeNotInWorkflow indicates a connection endpoint does not reference
	// a node of the connection's workflow.
	ErrNodeNotInWorkflow = errors.New("node does not belong to workflow")

	// ErrEmailTaken indicates a user with the same email already exists.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUserNotFound indicates a user was not found by the given identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialNotFound indicates a credential was not found for the owner.
	ErrCredentialNotFound = errors.New("credential not found")
)

// GraphError wraps graph store errors with operation context.
type GraphError struct {
	Op         string // Operation being performed (e.g., "CreateWorkflow")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *GraphError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGraphError creates a new graph error with context.
func NewGraphError(op, workflowID string, err error) *GraphError {
	return &GraphError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowNameTaken checks if an error indicates a workflow name collision.
func IsWorkflowNameTaken(err error) bool {
	return errors.Is(err, ErrWorkflowNameTaken)
}

// IsNodeNotInWorkflow checks if an error indicates a cross-workflow or
// dangling connection endpoint.
func IsNodeNotInWorkflow(err error) bool {
	return errors.Is(err, ErrNodeNotInWorkflow)
}

// IsEmailTaken checks if an error indicates a duplicate user email.
func IsEmailTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken)
}

// IsCredentialNotFound checks if an error indicates a missing credential.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}
