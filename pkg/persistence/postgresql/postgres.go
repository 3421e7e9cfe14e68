// Package postgresql provides PostgreSQL persistence for workflow graphs,
// users and credentials.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/fluxohq/fluxo/pkg/persistence/sqlbase"

	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	graph       *GraphRepository
	users       *UserRepository
	credentials *CredentialRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		graph:       NewGraphRepository(database, logger),
		users:       NewUserRepository(database, logger),
		credentials: NewCredentialRepository(database, logger),
	}, nil
}

// Graph returns the auto-commit graph store view.
func (p *Persistence) Graph() persistence.GraphStore {
	return p.graph
}

// Users returns the user store.
func (p *Persistence) Users() persistence.UserStore {
	return p.users
}

// Credentials returns the credential store.
func (p *Persistence) Credentials() persistence.CredentialStore {
	return p.credentials
}

// Transaction runs fn against a graph store bound to a single database
// transaction. A nil return from fn commits; any error (including a caller
// disconnect surfacing through ctx) rolls the whole transaction back.
func (p *Persistence) Transaction(ctx context.Context, fn func(store persistence.GraphStore) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	store := NewGraphRepository(tx, p.logger)

	err = fn(store)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			p.logger.ErrorContext(ctx, "failed to roll back transaction", "error", rollbackErr)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}

		p.logger.InfoContext(ctx, "Database connection closed")
	}

	return nil
}
