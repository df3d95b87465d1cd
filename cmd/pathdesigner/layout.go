package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/chis/pathdesigner/internal/flow"
	"github.com/chis/pathdesigner/internal/layout"
	"github.com/chis/pathdesigner/internal/output"
)

// layoutFile is the graph document the layout subcommand accepts. It
// matches the wire shape of the graph endpoints, ignoring node data.
type layoutFile struct {
	Nodes []struct {
		ID   string        `json:"id"`
		Type flow.NodeType `json:"type"`
	} `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

// runLayout computes positions for a graph JSON file and writes them
// to stdout, without needing a running server.
func runLayout(args []string) {
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	direction := fs.String("direction", "top-to-bottom", "Flow direction: top-to-bottom or left-to-right")
	rankGap := fs.Float64("rank-gap", 0, "Gap between ranks (0 uses the default)")
	nodeGap := fs.Float64("node-gap", 0, "Gap between siblings (0 uses the default)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatalf("Usage: pathdesigner layout [flags] <graph.json>")
	}

	dir, err := layout.ParseDirection(*direction)
	if err != nil {
		log.Fatalf("Invalid direction: %v", err)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read graph file: %v", err)
	}
	var doc layoutFile
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Fatalf("Failed to parse graph file: %v", err)
	}

	nodes := make([]layout.Node, len(doc.Nodes))
	types := make(map[string]flow.NodeType, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = layout.Node{ID: n.ID}
		types[n.ID] = n.Type
	}
	edges := make([]layout.Edge, len(doc.Edges))
	for i, e := range doc.Edges {
		srcIdx, _ := flow.PortIndex(types[e.Source], flow.SideOut, e.SourceHandle)
		tgtIdx, _ := flow.PortIndex(types[e.Target], flow.SideIn, e.TargetHandle)
		edges[i] = layout.Edge{
			Source:     e.Source,
			Target:     e.Target,
			SourcePort: srcIdx,
			TargetPort: tgtIdx,
		}
	}

	opts := layout.DefaultOptions()
	opts.Direction = dir
	if *rankGap > 0 {
		opts.RankGap = *rankGap
	}
	if *nodeGap > 0 {
		opts.NodeGap = *nodeGap
	}

	positions, err := layout.Compute(nodes, edges, opts)
	if err != nil {
		log.Fatalf("Layout failed: %v", err)
	}

	out := make(map[string]flow.Position, len(positions))
	for id, p := range positions {
		out[id] = flow.Position{X: p.X, Y: p.Y}
	}
	if err := output.WriteJSONData(os.Stdout, out); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}
