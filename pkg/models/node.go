package models

// Node is a positioned vertex of a workflow graph. Nodes have no lifecycle
// of their own: they are created and destroyed only as part of a graph
// replacement.
type Node struct {
	ID         string  `json:"id"`
	WorkflowID string  `json:"workflow_id"`
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`
}
