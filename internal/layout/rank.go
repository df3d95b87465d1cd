package layout

import (
	"fmt"
	"strings"
)

// assignRanks computes a longest-path rank for every node using Kahn's
// algorithm: sources sit at rank 0 and each node lands one past its
// deepest predecessor. Returns an error when the edges contain a cycle,
// since no rank assignment exists then.
func assignRanks(nodes []Node, edges []Edge) (map[string]int, error) {
	inDegree := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range edges {
		succ[e.Source] = append(succ[e.Source], e.Target)
		inDegree[e.Target]++
	}

	ranks := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range succ[id] {
			if r := ranks[id] + 1; r > ranks[next] {
				ranks[next] = r
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(nodes) {
		remaining := make(map[string]int)
		for id, deg := range inDegree {
			if deg > 0 {
				remaining[id] = deg
			}
		}
		return nil, fmt.Errorf("graph contains a cycle through: %s",
			strings.Join(sortedIDs(remaining), ", "))
	}
	return ranks, nil
}

// maxRank returns the highest rank present, or -1 for an empty map.
func maxRank(ranks map[string]int) int {
	max := -1
	for _, r := range ranks {
		if r > max {
			max = r
		}
	}
	return max
}
