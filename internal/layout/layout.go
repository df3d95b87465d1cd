// Package layout computes positions for a node graph using a layered
// layout: longest-path rank assignment, neighbor-median ordering within
// ranks, and a port-order pass that removes avoidable edge crossings
// between same-rank siblings.
package layout

import (
	"fmt"
	"sort"
)

// Direction selects the flow axis. The rank coordinate advances along
// the flow axis; siblings spread along the perpendicular cross axis.
type Direction int

const (
	TopToBottom Direction = iota
	LeftToRight
)

func (d Direction) String() string {
	if d == LeftToRight {
		return "left-to-right"
	}
	return "top-to-bottom"
}

// ParseDirection maps a config string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "top-to-bottom", "vertical":
		return TopToBottom, nil
	case "left-to-right", "horizontal":
		return LeftToRight, nil
	}
	return TopToBottom, fmt.Errorf("unknown layout direction %q", s)
}

// Point is a node's top-left corner in canvas coordinates.
type Point struct {
	X float64
	Y float64
}

// Size is a node's rendered extent.
type Size struct {
	Width  float64
	Height float64
}

// Node is a layout input. Zero sizes fall back to the defaults in
// Options.
type Node struct {
	ID   string
	Size Size
}

// Edge is a precedence constraint from Source to Target. The port
// indices carry the declared order of same-side ports and drive the
// uncrossing pass.
type Edge struct {
	Source     string
	Target     string
	SourcePort int
	TargetPort int
}

// Options tunes spacing and direction.
type Options struct {
	Direction Direction
	// RankGap separates consecutive ranks along the flow axis.
	RankGap float64
	// NodeGap separates siblings along the cross axis.
	NodeGap float64
	// NodeWidth and NodeHeight substitute for zero-sized inputs.
	NodeWidth  float64
	NodeHeight float64
}

// DefaultOptions matches the editor's default node card dimensions.
func DefaultOptions() Options {
	return Options{
		Direction:  TopToBottom,
		RankGap:    80,
		NodeGap:    40,
		NodeWidth:  220,
		NodeHeight: 120,
	}
}

// Compute runs the full two-stage layout and returns a position for
// every node. It is a pure function: equal inputs produce identical
// output, and it never mutates its arguments. It fails on unknown edge
// endpoints and on cyclic graphs.
func Compute(nodes []Node, edges []Edge, opts Options) (map[string]Point, error) {
	if opts.RankGap <= 0 || opts.NodeGap <= 0 {
		def := DefaultOptions()
		if opts.RankGap <= 0 {
			opts.RankGap = def.RankGap
		}
		if opts.NodeGap <= 0 {
			opts.NodeGap = def.NodeGap
		}
	}
	if opts.NodeWidth <= 0 {
		opts.NodeWidth = DefaultOptions().NodeWidth
	}
	if opts.NodeHeight <= 0 {
		opts.NodeHeight = DefaultOptions().NodeHeight
	}

	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		if n.Size.Width <= 0 {
			n.Size.Width = opts.NodeWidth
		}
		if n.Size.Height <= 0 {
			n.Size.Height = opts.NodeHeight
		}
		byID[n.ID] = n
	}
	for _, e := range edges {
		if _, ok := byID[e.Source]; !ok {
			return nil, fmt.Errorf("edge source %s not in node set", e.Source)
		}
		if _, ok := byID[e.Target]; !ok {
			return nil, fmt.Errorf("edge target %s not in node set", e.Target)
		}
	}

	ranks, err := assignRanks(nodes, edges)
	if err != nil {
		return nil, err
	}
	layers := orderLayers(nodes, edges, ranks)

	positions := placeLayers(layers, byID, ranks, opts)
	Uncross(positions, edges, opts.Direction)
	return positions, nil
}

// placeLayers assigns coordinates from the ordered layers. The rank
// coordinate of a layer sits past the thickest node of every earlier
// layer; within a layer each node's cross coordinate advances by its
// own extent, with the whole layer centered on the cross axis.
func placeLayers(layers [][]string, byID map[string]Node, ranks map[string]int, opts Options) map[string]Point {
	rankExtent := make([]float64, len(layers))
	for r, layer := range layers {
		for _, id := range layer {
			if ext := flowExtent(byID[id].Size, opts.Direction); ext > rankExtent[r] {
				rankExtent[r] = ext
			}
		}
	}

	positions := make(map[string]Point, len(byID))
	rankCoord := 0.0
	for r, layer := range layers {
		total := 0.0
		for _, id := range layer {
			total += crossExtent(byID[id].Size, opts.Direction)
		}
		total += opts.NodeGap * float64(len(layer)-1)

		cursor := -total / 2
		for _, id := range layer {
			p := Point{}
			setFlow(&p, opts.Direction, rankCoord)
			setCross(&p, opts.Direction, cursor)
			positions[id] = p
			cursor += crossExtent(byID[id].Size, opts.Direction) + opts.NodeGap
		}
		rankCoord += rankExtent[r] + opts.RankGap
	}
	return positions
}

func flowExtent(s Size, d Direction) float64 {
	if d == LeftToRight {
		return s.Width
	}
	return s.Height
}

func crossExtent(s Size, d Direction) float64 {
	if d == LeftToRight {
		return s.Height
	}
	return s.Width
}

func flowCoord(p Point, d Direction) float64 {
	if d == LeftToRight {
		return p.X
	}
	return p.Y
}

func crossCoord(p Point, d Direction) float64 {
	if d == LeftToRight {
		return p.Y
	}
	return p.X
}

func setFlow(p *Point, d Direction, v float64) {
	if d == LeftToRight {
		p.X = v
	} else {
		p.Y = v
	}
}

func setCross(p *Point, d Direction, v float64) {
	if d == LeftToRight {
		p.Y = v
	} else {
		p.X = v
	}
}

// sortedIDs is used by error paths and tests that need a stable view
// of a node set.
func sortedIDs(m map[string]int) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
