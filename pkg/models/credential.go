package models

import "time"

// Credential is an owner-scoped blob of third-party platform configuration.
// Data is stored as given; encryption of secret material is handled outside
// this service.
type Credential struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Title     string         `json:"title"    validate:"required,max=128"`
	Platform  string         `json:"platform" validate:"required,max=64"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
