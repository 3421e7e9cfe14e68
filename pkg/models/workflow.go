// Package models defines the persisted entities of the workflow graph:
// workflows, their nodes and connections, plus the surrounding user and
// credential records.
package models

import "time"

// Workflow is the root of a workflow graph. Name is unique across the whole
// system, not per owner. OwnerID always references an existing user; a
// workflow without an owner cannot exist.
type Workflow struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"    validate:"required,max=128"`
	Title     string    `json:"title"   validate:"required,max=32"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
