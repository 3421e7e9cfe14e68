// Package services implements the use cases of the graph persistence engine:
// graph CRUD behind a transaction boundary, authentication and credential
// management. It also provides standardized error types for those operations.
package services

import (
	"errors"
	"fmt"

	"github.com/fluxohq/fluxo/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest          = errors.New("invalid request")
	ErrEmptyOwnerID            = errors.New("owner ID cannot be empty")
	ErrWorkflowNameRequired    = errors.New("workflow name is required")
	ErrDuplicateNodeID         = errors.New("duplicate node id in request")
	ErrUnknownEdgeEndpoint     = errors.New("connection references a node outside the workflow")
	ErrSelfReferencingEdge     = errors.New("connection endpoints must differ")
	ErrNodesWithoutConnections = errors.New("nodes cannot be replaced without their connections")
	ErrUnknownPlatform         = errors.New("unknown credential platform")
	ErrInvalidCredentialData   = errors.New("credential data does not match the platform schema")

	// Authentication Errors (401 Unauthorized).
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Ownership Errors (403 Forbidden).
	ErrNotWorkflowOwner = errors.New("workflow belongs to another owner")

	// Not Found Errors (404), re-exported from the persistence layer.
	ErrWorkflowNotFound   = persistence.ErrWorkflowNotFound
	ErrCredentialNotFound = persistence.ErrCredentialNotFound
	ErrUserNotFound       = persistence.ErrUserNotFound

	// Conflicts (409), re-exported from the persistence layer.
	ErrWorkflowNameTaken = persistence.ErrWorkflowNameTaken
	ErrEmailTaken        = persistence.ErrEmailTaken
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrUnknownEdgeEndpoint) ||
		errors.Is(err, ErrSelfReferencingEdge) ||
		errors.Is(err, ErrNodesWithoutConnections) ||
		errors.Is(err, ErrUnknownPlatform) ||
		errors.Is(err, ErrInvalidCredentialData)
}

// IsAuthError checks if an error should return HTTP 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken)
}

// IsForbiddenError checks if an error should return HTTP 403. Ownership
// mismatches are deliberately distinguishable from absence.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrNotWorkflowOwner)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrCredentialNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNameTaken) ||
		errors.Is(err, ErrEmailTaken)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
