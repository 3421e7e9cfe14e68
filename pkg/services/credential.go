package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluxohq/fluxo/pkg/models"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// platformSchemas maps each supported integration platform to the JSON
// Schema its credential data must satisfy.
var platformSchemas = map[string]*gojsonschema.Schema{
	"slack": mustCompileSchema(`{
		"type": "object",
		"required": ["token"],
		"properties": {
			"token": {"type": "string", "minLength": 1}
		}
	}`),
	"github": mustCompileSchema(`{
		"type": "object",
		"required": ["token"],
		"properties": {
			"token": {"type": "string", "minLength": 1},
			"owner": {"type": "string"}
		}
	}`),
	"smtp": mustCompileSchema(`{
		"type": "object",
		"required": ["host", "port", "username", "password"],
		"properties": {
			"host": {"type": "string", "minLength": 1},
			"port": {"type": "integer", "minimum": 1, "maximum": 65535},
			"username": {"type": "string"},
			"password": {"type": "string"}
		}
	}`),
	"webhook": mustCompileSchema(`{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "format": "uri"},
			"secret": {"type": "string"}
		}
	}`),
}

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid platform schema: %v", err))
	}

	return schema
}

// Credential manages owner-scoped integration credential blobs.
type Credential struct {
	store  persistence.CredentialStore
	logger *slog.Logger
}

// NewCredential creates a new credential service.
func NewCredential(store persistence.CredentialStore, logger *slog.Logger) *Credential {
	return &Credential{store: store, logger: logger}
}

// CredentialRequest carries the mutable credential fields.
type CredentialRequest struct {
	Title    string
	Platform string
	Data     map[string]any
}

// Create validates the data against the platform schema and stores a new
// credential for the owner.
func (c *Credential) Create(ctx context.Context, ownerID string, req CredentialRequest) (*models.Credential, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwnerID
	}

	err := validatePlatformData(req.Platform, req.Data)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		OwnerID:  ownerID,
		Title:    req.Title,
		Platform: req.Platform,
		Data:     req.Data,
	}

	err = c.store.CreateCredential(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	return credential, nil
}

// Get returns the owner's credential, or ErrCredentialNotFound.
func (c *Credential) Get(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	credential, err := c.store.CredentialByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if credential == nil {
		return nil, ErrCredentialNotFound
	}

	return credential, nil
}

// List returns every credential owned by ownerID.
func (c *Credential) List(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwnerID
	}

	credentials, err := c.store.CredentialsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return credentials, nil
}

// Update revalidates the data and persists the mutable fields.
func (c *Credential) Update(ctx context.Context, ownerID, id string, req CredentialRequest) (*models.Credential, error) {
	err := validatePlatformData(req.Platform, req.Data)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		ID:       id,
		OwnerID:  ownerID,
		Title:    req.Title,
		Platform: req.Platform,
		Data:     req.Data,
	}

	err = c.store.UpdateCredential(ctx, credential)
	if err != nil {
		return nil, err
	}

	return c.Get(ctx, ownerID, id)
}

// Delete removes the owner's credential.
func (c *Credential) Delete(ctx context.Context, ownerID, id string) error {
	return c.store.DeleteCredential(ctx, ownerID, id)
}

func validatePlatformData(platform string, data map[string]any) error {
	schema, ok := platformSchemas[platform]
	if !ok {
		return NewValidationError(
			"validatePlatformData",
			"UNKNOWN_PLATFORM",
			fmt.Sprintf("unknown platform %q", platform),
			ErrUnknownPlatform,
		)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate credential data: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError(
			"validatePlatformData",
			"INVALID_CREDENTIAL_DATA",
			strings.Join(details, "; "),
			ErrInvalidCredentialData,
		)
	}

	return nil
}
