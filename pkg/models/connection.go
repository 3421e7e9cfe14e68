package models

// Connection is a directed edge between two nodes of the same workflow.
// FromID and ToID reference Node identities; both endpoints must belong to
// WorkflowID. Self loops (FromID == ToID) are rejected at the service layer.
type Connection struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
}
