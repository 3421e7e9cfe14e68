package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/google/uuid"
)

// CredentialRepository handles credential-related database operations. Every
// query is filtered by owner so one user can never touch another's blobs.
type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sql.DB, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

// CreateCredential inserts a new credential row.
func (r *CredentialRepository) CreateCredential(ctx context.Context, credential *models.Credential) error {
	now := time.Now().UTC()

	if credential.ID == "" {
		credential.ID = uuid.New().String()
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = now
	}

	credential.UpdatedAt = now

	dataJSON, err := json.Marshal(credential.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal credential data: %w", err)
	}

	query := `
		INSERT INTO credentials (id, owner_id, title, platform, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		credential.ID,
		credential.OwnerID,
		credential.Title,
		credential.Platform,
		dataJSON,
		credential.CreatedAt,
		credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// CredentialByID returns the owner's credential, or (nil, nil) when absent.
func (r *CredentialRepository) CredentialByID(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	query := `
		SELECT id, owner_id, title, platform, data, created_at, updated_at
		FROM credentials
		WHERE id = $1 AND owner_id = $2
	`

	credential, err := scanCredential(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	return credential, nil
}

// CredentialsByOwner returns every credential owned by ownerID, newest first.
func (r *CredentialRepository) CredentialsByOwner(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	query := `
		SELECT id, owner_id, title, platform, data, created_at, updated_at
		FROM credentials
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	credentials := make([]*models.Credential, 0)

	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

// UpdateCredential persists the mutable credential fields, scoped to owner.
func (r *CredentialRepository) UpdateCredential(ctx context.Context, credential *models.Credential) error {
	credential.UpdatedAt = time.Now().UTC()

	dataJSON, err := json.Marshal(credential.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal credential data: %w", err)
	}

	query := `
		UPDATE credentials
		SET title = $3, platform = $4, data = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		credential.ID,
		credential.OwnerID,
		credential.Title,
		credential.Platform,
		dataJSON,
		credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrCredentialNotFound
	}

	return nil
}

// DeleteCredential removes the owner's credential.
func (r *CredentialRepository) DeleteCredential(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrCredentialNotFound
	}

	return nil
}

func scanCredential(scanner interface{ Scan(dest ...any) error }) (*models.Credential, error) {
	var (
		credential models.Credential
		dataJSON   []byte
	)

	err := scanner.Scan(
		&credential.ID,
		&credential.OwnerID,
		&credential.Title,
		&credential.Platform,
		&dataJSON,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dataJSON != nil {
		err := json.Unmarshal(dataJSON, &credential.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential data: %w", err)
		}
	}

	return &credential, nil
}
