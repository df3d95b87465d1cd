package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/chis/pathdesigner/cmd/pathdesigner/terminal"
)

// graphNode mirrors the API's node view, keeping only what the CLI
// renders.
type graphNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
}

type graphEdge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

type graphSnapshot struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

// runGraph prints the live node graph of a running server.
func runGraph(args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Base URL of the running server")
	fs.Parse(args)

	snapshot, err := fetchGraph(*addr)
	if err != nil {
		log.Fatalf("Failed to fetch graph: %v", err)
	}

	fmt.Println(terminal.TitleStyle.Render(fmt.Sprintf("Graph: %d nodes, %d edges", len(snapshot.Nodes), len(snapshot.Edges))))
	fmt.Println()

	nodes := snapshot.Nodes
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type < nodes[j].Type
		}
		return nodes[i].ID < nodes[j].ID
	})

	for _, n := range nodes {
		status, _ := n.Data["status"].(string)
		line := fmt.Sprintf("%s %s %s",
			terminal.StatusBadge(status),
			terminal.NodeTypeStyle.Render(n.Type),
			n.ID,
		)
		if msg, ok := n.Data["error"].(string); ok && msg != "" {
			line += " " + terminal.MutedStyle.Render(msg)
		}
		fmt.Println(line)
	}

	if len(snapshot.Edges) > 0 {
		fmt.Println()
		for _, e := range snapshot.Edges {
			fmt.Println(terminal.MutedStyle.Render(fmt.Sprintf("  %s.%s -> %s.%s",
				e.Source, e.SourceHandle, e.Target, e.TargetHandle)))
		}
	}
}

func fetchGraph(baseURL string) (graphSnapshot, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/graph")
	if err != nil {
		return graphSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphSnapshot{}, fmt.Errorf("server returned %s", resp.Status)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return graphSnapshot{}, err
	}
	if !envelope.Success {
		return graphSnapshot{}, fmt.Errorf("server error: %s", envelope.Error)
	}

	var snapshot graphSnapshot
	if err := json.Unmarshal(envelope.Data, &snapshot); err != nil {
		return graphSnapshot{}, err
	}
	return snapshot, nil
}
