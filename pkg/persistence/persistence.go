// Package persistence defines the storage abstraction for workflow graphs,
// users and credentials.
package persistence

import (
	"context"

	"github.com/fluxohq/fluxo/pkg/models"
)

// NodeInput describes a node to insert; the store assigns its identity.
type NodeInput struct {
	PositionX float64
	PositionY float64
}

// EdgeInput describes a connection to insert between two existing nodes.
type EdgeInput struct {
	FromID string
	ToID   string
}

// GraphStore exposes the durable primitives for workflow graphs. It carries
// no business semantics beyond referential integrity, and it never opens a
// transaction of its own: implementations bound to a transaction run every
// statement on the caller-supplied handle.
//
// Lookup methods return (nil, nil) when the record does not exist.
type GraphStore interface {
	// CreateWorkflow inserts a new workflow, assigning ID and timestamps if
	// unset. Fails with ErrWorkflowNameTaken when the name already exists
	// anywhere in the system.
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error

	// UpdateWorkflow persists the mutable fields of an existing workflow.
	// Fails with ErrWorkflowNotFound when the row is gone and with
	// ErrWorkflowNameTaken on a name collision.
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error

	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflowsByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error)

	// InsertNodes appends nodes to a workflow, assigning identities.
	// Fails with ErrWorkflowNotFound when the workflow does not exist.
	InsertNodes(ctx context.Context, workflowID string, nodes []NodeInput) ([]*models.Node, error)

	// InsertConnections appends edges to a workflow. Fails with
	// ErrNodeNotInWorkflow when an endpoint is not a node of that workflow.
	InsertConnections(ctx context.Context, workflowID string, edges []EdgeInput) ([]*models.Connection, error)

	// ReplaceNodes removes every node of the workflow (connections fall with
	// them) and inserts the given set.
	ReplaceNodes(ctx context.Context, workflowID string, nodes []NodeInput) ([]*models.Node, error)

	// ReplaceConnections removes every connection of the workflow and inserts
	// the given set, validating endpoints like InsertConnections.
	ReplaceConnections(ctx context.Context, workflowID string, edges []EdgeInput) ([]*models.Connection, error)

	NodesByWorkflow(ctx context.Context, workflowID string) ([]*models.Node, error)
	ConnectionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Connection, error)

	// DeleteWorkflowCascade removes the workflow with all of its nodes and
	// connections as one unit. Fails with ErrWorkflowNotFound when absent.
	DeleteWorkflowCascade(ctx context.Context, workflowID string) error
}

// UserStore persists account identities.
type UserStore interface {
	// CreateUser inserts a user, failing with ErrEmailTaken on a duplicate
	// email.
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// CredentialStore persists owner-scoped credential blobs. Every lookup and
// mutation is filtered by owner.
type CredentialStore interface {
	CreateCredential(ctx context.Context, credential *models.Credential) error
	CredentialByID(ctx context.Context, ownerID, id string) (*models.Credential, error)
	CredentialsByOwner(ctx context.Context, ownerID string) ([]*models.Credential, error)
	UpdateCredential(ctx context.Context, credential *models.Credential) error
	DeleteCredential(ctx context.Context, ownerID, id string) error
}

// Persistence is the root of the storage layer. Graph returns an
// auto-commit view; Transaction runs fn against a GraphStore bound to a
// single transaction, committing on nil and rolling back on error or
// context cancellation.
type Persistence interface {
	Graph() GraphStore
	Users() UserStore
	Credentials() CredentialStore

	Transaction(ctx context.Context, fn func(store GraphStore) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
