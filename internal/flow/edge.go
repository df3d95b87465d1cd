package flow

// Edge connects a source node's output port to a target node's input
// port. Handles are the semantic port names from the node type's port
// table ("brep", "sheet", "in-2", ...).
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}
