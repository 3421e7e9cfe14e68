package memory_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/fluxohq/fluxo/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *memory.Persistence {
	t.Helper()

	return memory.NewPersistence(slog.Default())
}

func TestGraphStore_CreateAndGetWorkflow(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	workflow := &models.Workflow{
		OwnerID: "owner-1",
		Name:    "invoice-sync",
		Title:   "Invoice Sync",
		Enabled: true,
	}

	err := store.CreateWorkflow(t.Context(), workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	fetched, err := store.GetWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "invoice-sync", fetched.Name)
	assert.True(t, fetched.Enabled)
}

func TestGraphStore_GetWorkflow_Absent(t *testing.T) {
	p := newTestPersistence(t)

	workflow, err := p.Graph().GetWorkflow(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, workflow)
}

func TestGraphStore_CreateWorkflow_DuplicateName(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	err := store.CreateWorkflow(t.Context(), &models.Workflow{OwnerID: "owner-1", Name: "dup", Title: "First"})
	require.NoError(t, err)

	// Names are unique across owners, not per owner.
	err = store.CreateWorkflow(t.Context(), &models.Workflow{OwnerID: "owner-2", Name: "dup", Title: "Second"})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNameTaken(err))
}

func TestGraphStore_UpdateWorkflow_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	err := p.Graph().UpdateWorkflow(t.Context(), &models.Workflow{ID: "missing", Name: "x", Title: "x"})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestGraphStore_InsertConnections_UnknownEndpoint(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	workflow := &models.Workflow{OwnerID: "owner-1", Name: "wf", Title: "WF"}
	require.NoError(t, store.CreateWorkflow(t.Context(), workflow))

	nodes, err := store.InsertNodes(t.Context(), workflow.ID, []persistence.NodeInput{{PositionX: 1, PositionY: 2}})
	require.NoError(t, err)

	_, err = store.InsertConnections(t.Context(), workflow.ID, []persistence.EdgeInput{
		{FromID: nodes[0].ID, ToID: "not-a-node"},
	})
	require.Error(t, err)
	assert.True(t, persistence.IsNodeNotInWorkflow(err))
}

func TestGraphStore_ReplaceNodes_DropsConnections(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	workflow := &models.Workflow{OwnerID: "owner-1", Name: "wf", Title: "WF"}
	require.NoError(t, store.CreateWorkflow(t.Context(), workflow))

	nodes, err := store.InsertNodes(t.Context(), workflow.ID, []persistence.NodeInput{{}, {}})
	require.NoError(t, err)

	_, err = store.InsertConnections(t.Context(), workflow.ID, []persistence.EdgeInput{
		{FromID: nodes[0].ID, ToID: nodes[1].ID},
	})
	require.NoError(t, err)

	replaced, err := store.ReplaceNodes(t.Context(), workflow.ID, []persistence.NodeInput{{PositionX: 9}})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	connections, err := store.ConnectionsByWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, connections)
}

func TestGraphStore_DeleteWorkflowCascade(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	workflow := &models.Workflow{OwnerID: "owner-1", Name: "wf", Title: "WF"}
	require.NoError(t, store.CreateWorkflow(t.Context(), workflow))

	nodes, err := store.InsertNodes(t.Context(), workflow.ID, []persistence.NodeInput{{}, {}})
	require.NoError(t, err)

	_, err = store.InsertConnections(t.Context(), workflow.ID, []persistence.EdgeInput{
		{FromID: nodes[0].ID, ToID: nodes[1].ID},
	})
	require.NoError(t, err)

	err = store.DeleteWorkflowCascade(t.Context(), workflow.ID)
	require.NoError(t, err)

	fetched, err := store.GetWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	remaining, err := store.NodesByWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Repeat delete reports absence.
	err = store.DeleteWorkflowCascade(t.Context(), workflow.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_TransactionCommit(t *testing.T) {
	p := newTestPersistence(t)

	err := p.Transaction(t.Context(), func(store persistence.GraphStore) error {
		return store.CreateWorkflow(t.Context(), &models.Workflow{OwnerID: "owner-1", Name: "committed", Title: "C"})
	})
	require.NoError(t, err)

	workflows, err := p.Graph().ListWorkflowsByOwner(t.Context(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
}

func TestPersistence_TransactionRollback(t *testing.T) {
	p := newTestPersistence(t)

	boom := errors.New("boom")

	err := p.Transaction(t.Context(), func(store persistence.GraphStore) error {
		createErr := store.CreateWorkflow(t.Context(), &models.Workflow{OwnerID: "owner-1", Name: "doomed", Title: "D"})
		if createErr != nil {
			return createErr
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	workflows, err := p.Graph().ListWorkflowsByOwner(t.Context(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, workflows, "rolled back workflow must not be visible")
}

func TestPersistence_TransactionRollbackRestoresPriorState(t *testing.T) {
	p := newTestPersistence(t)
	store := p.Graph()

	workflow := &models.Workflow{OwnerID: "owner-1", Name: "stable", Title: "Stable"}
	require.NoError(t, store.CreateWorkflow(t.Context(), workflow))

	nodes, err := store.InsertNodes(t.Context(), workflow.ID, []persistence.NodeInput{{PositionX: 5}})
	require.NoError(t, err)

	err = p.Transaction(t.Context(), func(txStore persistence.GraphStore) error {
		_, replaceErr := txStore.ReplaceNodes(t.Context(), workflow.ID, []persistence.NodeInput{{}, {}, {}})
		if replaceErr != nil {
			return replaceErr
		}

		return errors.New("abort")
	})
	require.Error(t, err)

	after, err := store.NodesByWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, nodes[0].ID, after[0].ID)
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	p := newTestPersistence(t)
	users := p.Users()

	err := users.CreateUser(t.Context(), &models.User{FirstName: "Ada", Email: "ada@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	err = users.CreateUser(t.Context(), &models.User{FirstName: "Ada2", Email: "ada@example.com", PasswordHash: "y"})
	require.ErrorIs(t, err, persistence.ErrEmailTaken)
}

func TestCredentialStore_OwnerScoping(t *testing.T) {
	p := newTestPersistence(t)
	credentials := p.Credentials()

	credential := &models.Credential{
		OwnerID:  "owner-1",
		Title:    "team slack",
		Platform: "slack",
		Data:     map[string]any{"token": "xoxb-1"},
	}
	require.NoError(t, credentials.CreateCredential(t.Context(), credential))

	fetched, err := credentials.CredentialByID(t.Context(), "owner-2", credential.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched, "foreign owner must not see the credential")

	err = credentials.DeleteCredential(t.Context(), "owner-2", credential.ID)
	require.ErrorIs(t, err, persistence.ErrCredentialNotFound)

	err = credentials.DeleteCredential(t.Context(), "owner-1", credential.ID)
	require.NoError(t, err)
}
