package models

// WorkflowGraph bundles a workflow with its full node and connection sets.
// It is the unit of consistency: readers never observe a graph whose nodes
// and connections come from different writes.
type WorkflowGraph struct {
	Workflow    *Workflow     `json:"workflow"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
}

// NodeIDs returns the set of node identities in the graph.
func (g *WorkflowGraph) NodeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		ids[node.ID] = struct{}{}
	}

	return ids
}
