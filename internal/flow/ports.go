package flow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PortKind is the declared data kind of a port. It is used for visual
// labeling only; the propagation protocol never inspects it.
type PortKind int

const (
	KindGeometry PortKind = iota
	KindSettings
	KindToolpath
	KindGeneric
)

func (k PortKind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindSettings:
		return "settings"
	case KindToolpath:
		return "toolpath"
	case KindGeneric:
		return "generic"
	default:
		return fmt.Sprintf("PortKind(%d)", int(k))
	}
}

// MarshalJSON emits the label form so API clients see "geometry"
// rather than an enum ordinal.
func (k PortKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// PortSide distinguishes input ports from output ports.
type PortSide int

const (
	SideIn PortSide = iota
	SideOut
)

func (s PortSide) String() string {
	if s == SideOut {
		return "out"
	}
	return "in"
}

func (s PortSide) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PortSpec declares one named attachment point on a node type.
// Index orders same-side ports and drives the layout uncrossing pass.
// Dynamic ports are numbered families ("<name>-0", "<name>-1", ...)
// supporting fan-in with automatic growth.
type PortSpec struct {
	Name    string   `json:"name"`
	Kind    PortKind `json:"kind"`
	Side    PortSide `json:"side"`
	Index   int      `json:"index"`
	Dynamic bool     `json:"dynamic,omitempty"`
}

// HandleID builds the stable handle string for a port on a node,
// e.g. "a91c2/brep".
func HandleID(nodeID, port string) string {
	return nodeID + "/" + port
}

// DynamicPort builds the i-th handle of a dynamic port family,
// e.g. DynamicPort("in", 2) == "in-2".
func DynamicPort(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

// ParseDynamicPort splits a dynamic handle into its prefix and slot
// number. It returns ok=false for fixed (unnumbered) handles.
func ParseDynamicPort(handle string) (prefix string, index int, ok bool) {
	cut := strings.LastIndexByte(handle, '-')
	if cut <= 0 || cut == len(handle)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(handle[cut+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return handle[:cut], n, true
}

// IsFixedPort reports whether a handle names a fixed (single-edge) port.
// A handle with a numeric suffix belongs to a dynamic family.
func IsFixedPort(handle string) bool {
	_, _, dynamic := ParseDynamicPort(handle)
	return !dynamic
}

// portTable declares the ports of every node type. Dynamic entries stand
// for the whole numbered family; their Index is the base index of slot 0.
var portTable = map[NodeType][]PortSpec{
	NodeImport: {
		{Name: "brep", Kind: KindGeometry, Side: SideOut, Index: 0},
	},
	NodeSheet: {
		{Name: "sheet", Kind: KindSettings, Side: SideOut, Index: 0},
	},
	NodePlacement: {
		{Name: "brep", Kind: KindGeometry, Side: SideIn, Index: 0},
		{Name: "sheet", Kind: KindSettings, Side: SideIn, Index: 1},
		{Name: "placement", Kind: KindGeometry, Side: SideOut, Index: 0},
	},
	NodeOperations: {
		{Name: "brep", Kind: KindGeometry, Side: SideIn, Index: 0},
		{Name: "operations", Kind: KindSettings, Side: SideOut, Index: 0},
	},
	NodePostProcessor: {
		{Name: "post", Kind: KindSettings, Side: SideOut, Index: 0},
	},
	NodeToolpath: {
		{Name: "operations", Kind: KindSettings, Side: SideIn, Index: 0},
		{Name: "toolpath", Kind: KindToolpath, Side: SideOut, Index: 0},
	},
	NodeExport: {
		{Name: "toolpath", Kind: KindToolpath, Side: SideIn, Index: 0},
		{Name: "post", Kind: KindSettings, Side: SideIn, Index: 1},
		{Name: "code", Kind: KindGeneric, Side: SideOut, Index: 0},
	},
	NodeDam: {
		{Name: "in", Kind: KindGeneric, Side: SideIn, Index: 0},
		{Name: "out", Kind: KindGeneric, Side: SideOut, Index: 0},
	},
	NodeMerge: {
		{Name: "in", Kind: KindGeometry, Side: SideIn, Index: 0, Dynamic: true},
		{Name: "brep", Kind: KindGeometry, Side: SideOut, Index: 0},
	},
}

// Ports returns the declared port specs of a node type. Dynamic families
// appear as a single entry; callers expand them per connection count.
func Ports(t NodeType) []PortSpec {
	return portTable[t]
}

// PortIndex resolves the ordering index of a concrete handle on a node
// type, expanding dynamic families ("in-2" gets base index + 2). It
// returns ok=false for handles the type does not declare.
func PortIndex(t NodeType, side PortSide, handle string) (int, bool) {
	prefix, slot, dynamic := ParseDynamicPort(handle)
	for _, spec := range portTable[t] {
		if spec.Side != side {
			continue
		}
		if spec.Dynamic && dynamic && spec.Name == prefix {
			return spec.Index + slot, true
		}
		if !spec.Dynamic && spec.Name == handle {
			return spec.Index, true
		}
	}
	return 0, false
}
