// Package flow holds the canonical node/edge graph for the PathDesigner
// pipeline: the mutable store, the port addressing convention, and the
// memoized upstream subscriptions that node units read through.
package flow

import (
	"fmt"
)

// NodeType identifies the computation a node performs.
type NodeType string

const (
	NodeImport        NodeType = "import"        // STEP upload result holder
	NodeSheet         NodeType = "sheet"         // stock material definition
	NodePlacement     NodeType = "placement"     // part placement on stock
	NodeOperations    NodeType = "operations"    // machining operation detection
	NodePostProcessor NodeType = "postprocessor" // output machine settings
	NodeToolpath      NodeType = "toolpath"      // toolpath generation
	NodeExport        NodeType = "export"        // SBP/G-code emission
	NodeDam           NodeType = "dam"           // hold/release buffer
	NodeMerge         NodeType = "merge"         // dynamic fan-in aggregation
)

// NodeTypes lists all known node types in pipeline order.
var NodeTypes = []NodeType{
	NodeImport, NodeSheet, NodePlacement, NodeOperations,
	NodePostProcessor, NodeToolpath, NodeExport, NodeDam, NodeMerge,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single computational unit in the graph. Data is both the
// node's private editable state and its published output: downstream
// consumers read named fields out of it. Published fields are only ever
// written by the node itself (or, for pass-through nodes, copied verbatim
// from one upstream node), never by a downstream node.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// Clone returns a deep copy of the node. The copy shares no mutable
// state with the original, so holding it across store mutations is safe.
func (n Node) Clone() Node {
	c := n
	c.Data = CloneData(n.Data)
	return c
}

// CloneData deep-copies a published data map. Values are restricted to
// plain serializable types (maps, slices, strings, numbers, bools, nil);
// anything else is copied by assignment.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = inner
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = inner
		}
		return out
	default:
		return v
	}
}

// String implements fmt.Stringer for diagnostics.
func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Type, n.ID)
}
