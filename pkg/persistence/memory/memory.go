// Package memory provides an in-memory persistence implementation used by
// tests and local development. Transactions take a snapshot of the state and
// restore it when the callback fails, giving the same all-or-nothing
// behavior as the SQL implementation.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/google/uuid"
)

type state struct {
	users       map[string]*models.User
	workflows   map[string]*models.Workflow
	nodes       map[string][]*models.Node
	connections map[string][]*models.Connection
	credentials map[string]*models.Credential
}

func newState() *state {
	return &state{
		users:       make(map[string]*models.User),
		workflows:   make(map[string]*models.Workflow),
		nodes:       make(map[string][]*models.Node),
		connections: make(map[string][]*models.Connection),
		credentials: make(map[string]*models.Credential),
	}
}

func (s *state) clone() *state {
	copied := newState()

	for id, user := range s.users {
		u := *user
		copied.users[id] = &u
	}

	for id, workflow := range s.workflows {
		w := *workflow
		copied.workflows[id] = &w
	}

	for workflowID, nodes := range s.nodes {
		cloned := make([]*models.Node, len(nodes))
		for i, node := range nodes {
			n := *node
			cloned[i] = &n
		}

		copied.nodes[workflowID] = cloned
	}

	for workflowID, connections := range s.connections {
		cloned := make([]*models.Connection, len(connections))
		for i, connection := range connections {
			c := *connection
			cloned[i] = &c
		}

		copied.connections[workflowID] = cloned
	}

	for id, credential := range s.credentials {
		c := *credential
		copied.credentials[id] = &c
	}

	return copied
}

// Persistence implements persistence.Persistence entirely in memory.
type Persistence struct {
	mu     sync.Mutex
	logger *slog.Logger
	state  *state
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence(logger *slog.Logger) *Persistence {
	return &Persistence{
		logger: logger,
		state:  newState(),
	}
}

// Graph returns the auto-commit graph store view.
func (p *Persistence) Graph() persistence.GraphStore {
	return &graphStore{p: p}
}

// Users returns the user store.
func (p *Persistence) Users() persistence.UserStore {
	return &userStore{p: p}
}

// Credentials returns the credential store.
func (p *Persistence) Credentials() persistence.CredentialStore {
	return &credentialStore{p: p}
}

// Transaction runs fn under the store lock against a snapshot-backed view;
// any error restores the pre-transaction state.
func (p *Persistence) Transaction(ctx context.Context, fn func(store persistence.GraphStore) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.state.clone()

	err := fn(&graphStore{p: p, inTx: true})
	if err != nil {
		p.state = snapshot

		return err
	}

	if err := ctx.Err(); err != nil {
		p.state = snapshot

		return err
	}

	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close discards the state.
func (p *Persistence) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = newState()

	return nil
}

// graphStore implements persistence.GraphStore over the shared state. When
// inTx is set the transaction already holds the lock.
type graphStore struct {
	p    *Persistence
	inTx bool
}

func (s *graphStore) lock() func() {
	if s.inTx {
		return func() {}
	}

	s.p.mu.Lock()

	return s.p.mu.Unlock
}

func (s *graphStore) CreateWorkflow(_ context.Context, workflow *models.Workflow) error {
	defer s.lock()()

	for _, existing := range s.p.state.workflows {
		if existing.Name == workflow.Name {
			return persistence.NewGraphError("CreateWorkflow", workflow.ID, persistence.ErrWorkflowNameTaken)
		}
	}

	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	stored := *workflow
	s.p.state.workflows[workflow.ID] = &stored
	s.p.state.nodes[workflow.ID] = []*models.Node{}
	s.p.state.connections[workflow.ID] = []*models.Connection{}

	return nil
}

func (s *graphStore) UpdateWorkflow(_ context.Context, workflow *models.Workflow) error {
	defer s.lock()()

	existing, ok := s.p.state.workflows[workflow.ID]
	if !ok {
		return persistence.NewGraphError("UpdateWorkflow", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	for id, other := range s.p.state.workflows {
		if id != workflow.ID && other.Name == workflow.Name {
			return persistence.NewGraphError("UpdateWorkflow", workflow.ID, persistence.ErrWorkflowNameTaken)
		}
	}

	existing.Name = workflow.Name
	existing.Title = workflow.Title
	existing.Enabled = workflow.Enabled
	existing.UpdatedAt = time.Now().UTC()
	workflow.UpdatedAt = existing.UpdatedAt

	return nil
}

func (s *graphStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	defer s.lock()()

	workflow, ok := s.p.state.workflows[id]
	if !ok {
		return nil, nil
	}

	copied := *workflow

	return &copied, nil
}

func (s *graphStore) ListWorkflowsByOwner(_ context.Context, ownerID string) ([]*models.Workflow, error) {
	defer s.lock()()

	workflows := make([]*models.Workflow, 0)

	for _, workflow := range s.p.state.workflows {
		if workflow.OwnerID == ownerID {
			copied := *workflow
			workflows = append(workflows, &copied)
		}
	}

	return workflows, nil
}

func (s *graphStore) InsertNodes(_ context.Context, workflowID string, nodes []persistence.NodeInput) ([]*models.Node, error) {
	defer s.lock()()

	if _, ok := s.p.state.workflows[workflowID]; !ok {
		return nil, persistence.NewGraphError("InsertNodes", workflowID, persistence.ErrWorkflowNotFound)
	}

	inserted := make([]*models.Node, 0, len(nodes))

	for _, input := range nodes {
		node := &models.Node{
			ID:         uuid.New().String(),
			WorkflowID: workflowID,
			PositionX:  input.PositionX,
			PositionY:  input.PositionY,
		}

		s.p.state.nodes[workflowID] = append(s.p.state.nodes[workflowID], node)

		copied := *node
		inserted = append(inserted, &copied)
	}

	return inserted, nil
}

func (s *graphStore) InsertConnections(_ context.Context, workflowID string, edges []persistence.EdgeInput) ([]*models.Connection, error) {
	defer s.lock()()

	if _, ok := s.p.state.workflows[workflowID]; !ok {
		return nil, persistence.NewGraphError("InsertConnections", workflowID, persistence.ErrWorkflowNotFound)
	}

	members := make(map[string]struct{}, len(s.p.state.nodes[workflowID]))
	for _, node := range s.p.state.nodes[workflowID] {
		members[node.ID] = struct{}{}
	}

	inserted := make([]*models.Connection, 0, len(edges))

	for _, input := range edges {
		if _, ok := members[input.FromID]; !ok {
			return nil, persistence.NewGraphError("InsertConnections", workflowID, persistence.ErrNodeNotInWorkflow)
		}

		if _, ok := members[input.ToID]; !ok {
			return nil, persistence.NewGraphError("InsertConnections", workflowID, persistence.ErrNodeNotInWorkflow)
		}

		connection := &models.Connection{
			ID:         uuid.New().String(),
			WorkflowID: workflowID,
			FromID:     input.FromID,
			ToID:       input.ToID,
		}

		s.p.state.connections[workflowID] = append(s.p.state.connections[workflowID], connection)

		copied := *connection
		inserted = append(inserted, &copied)
	}

	return inserted, nil
}

func (s *graphStore) ReplaceNodes(ctx context.Context, workflowID string, nodes []persistence.NodeInput) ([]*models.Node, error) {
	unlock := s.lock()
	s.p.state.connections[workflowID] = []*models.Connection{}
	s.p.state.nodes[workflowID] = []*models.Node{}
	unlock()

	return s.InsertNodes(ctx, workflowID, nodes)
}

func (s *graphStore) ReplaceConnections(ctx context.Context, workflowID string, edges []persistence.EdgeInput) ([]*models.Connection, error) {
	unlock := s.lock()
	s.p.state.connections[workflowID] = []*models.Connection{}
	unlock()

	return s.InsertConnections(ctx, workflowID, edges)
}

func (s *graphStore) NodesByWorkflow(_ context.Context, workflowID string) ([]*models.Node, error) {
	defer s.lock()()

	nodes := make([]*models.Node, 0, len(s.p.state.nodes[workflowID]))

	for _, node := range s.p.state.nodes[workflowID] {
		copied := *node
		nodes = append(nodes, &copied)
	}

	return nodes, nil
}

func (s *graphStore) ConnectionsByWorkflow(_ context.Context, workflowID string) ([]*models.Connection, error) {
	defer s.lock()()

	connections := make([]*models.Connection, 0, len(s.p.state.connections[workflowID]))

	for _, connection := range s.p.state.connections[workflowID] {
		copied := *connection
		connections = append(connections, &copied)
	}

	return connections, nil
}

func (s *graphStore) DeleteWorkflowCascade(_ context.Context, workflowID string) error {
	defer s.lock()()

	if _, ok := s.p.state.workflows[workflowID]; !ok {
		return persistence.NewGraphError("DeleteWorkflowCascade", workflowID, persistence.ErrWorkflowNotFound)
	}

	delete(s.p.state.workflows, workflowID)
	delete(s.p.state.nodes, workflowID)
	delete(s.p.state.connections, workflowID)

	return nil
}

type userStore struct {
	p *Persistence
}

func (s *userStore) CreateUser(_ context.Context, user *models.User) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	for _, existing := range s.p.state.users {
		if existing.Email == user.Email {
			return persistence.ErrEmailTaken
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	stored := *user
	s.p.state.users[user.ID] = &stored

	return nil
}

func (s *userStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	for _, user := range s.p.state.users {
		if user.Email == email {
			copied := *user

			return &copied, nil
		}
	}

	return nil, nil
}

func (s *userStore) UserByID(_ context.Context, id string) (*models.User, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	user, ok := s.p.state.users[id]
	if !ok {
		return nil, nil
	}

	copied := *user

	return &copied, nil
}

type credentialStore struct {
	p *Persistence
}

func (s *credentialStore) CreateCredential(_ context.Context, credential *models.Credential) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	now := time.Now().UTC()

	if credential.ID == "" {
		credential.ID = uuid.New().String()
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	stored := *credential
	s.p.state.credentials[credential.ID] = &stored

	return nil
}

func (s *credentialStore) CredentialByID(_ context.Context, ownerID, id string) (*models.Credential, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	credential, ok := s.p.state.credentials[id]
	if !ok || credential.OwnerID != ownerID {
		return nil, nil
	}

	copied := *credential

	return &copied, nil
}

func (s *credentialStore) CredentialsByOwner(_ context.Context, ownerID string) ([]*models.Credential, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	credentials := make([]*models.Credential, 0)

	for _, credential := range s.p.state.credentials {
		if credential.OwnerID == ownerID {
			copied := *credential
			credentials = append(credentials, &copied)
		}
	}

	return credentials, nil
}

func (s *credentialStore) UpdateCredential(_ context.Context, credential *models.Credential) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	existing, ok := s.p.state.credentials[credential.ID]
	if !ok || existing.OwnerID != credential.OwnerID {
		return persistence.ErrCredentialNotFound
	}

	existing.Title = credential.Title
	existing.Platform = credential.Platform
	existing.Data = credential.Data
	existing.UpdatedAt = time.Now().UTC()
	credential.UpdatedAt = existing.UpdatedAt

	return nil
}

func (s *credentialStore) DeleteCredential(_ context.Context, ownerID, id string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	existing, ok := s.p.state.credentials[id]
	if !ok || existing.OwnerID != ownerID {
		return persistence.ErrCredentialNotFound
	}

	delete(s.p.state.credentials, id)

	return nil
}
