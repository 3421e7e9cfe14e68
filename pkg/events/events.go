// Package events defines event types and structures for workflow graph
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the channel all graph lifecycle events are published on.
const Topic = "fluxo.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent EventType = "workflow.created"
	WorkflowUpdatedEvent EventType = "workflow.updated"
	WorkflowDeletedEvent EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowCreated struct {
	BaseEvent

	WorkflowName    string `json:"workflow_name"`
	NodeCount       int    `json:"node_count"`
	ConnectionCount int    `json:"connection_count"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowUpdated struct {
	BaseEvent

	WorkflowName    string `json:"workflow_name"`
	NodesReplaced   bool   `json:"nodes_replaced"`
	EdgesReplaced   bool   `json:"edges_replaced"`
	NodeCount       int    `json:"node_count"`
	ConnectionCount int    `json:"connection_count"`
}

func (w WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

type WorkflowDeleted struct {
	BaseEvent

	WorkflowName string `json:"workflow_name"`
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
