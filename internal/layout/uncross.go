package layout

import "sort"

// Uncross reorders same-rank siblings so that their cross-axis order
// matches the declared port order of the edges joining them to a shared
// endpoint. It runs once for edges sharing a target (fan-in) and once
// for edges sharing a source (fan-out). The set of cross coordinates in
// each group is preserved; only their assignment changes, so no rank
// coordinate ever moves.
func Uncross(positions map[string]Point, edges []Edge, dir Direction) {
	uncrossGroups(positions, groupEdges(edges, func(e Edge) string { return e.Target }),
		func(e Edge) string { return e.Source },
		func(e Edge) int { return e.TargetPort },
		dir)
	uncrossGroups(positions, groupEdges(edges, func(e Edge) string { return e.Source }),
		func(e Edge) string { return e.Target },
		func(e Edge) int { return e.SourcePort },
		dir)
}

// groupEdges buckets edges by the shared endpoint, keeping groups in
// first-appearance order so the pass is deterministic.
func groupEdges(edges []Edge, key func(Edge) string) [][]Edge {
	index := make(map[string]int)
	var groups [][]Edge
	for _, e := range edges {
		k := key(e)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], e)
	}
	return groups
}

func uncrossGroups(positions map[string]Point, groups [][]Edge, sibling func(Edge) string, port func(Edge) int, dir Direction) {
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		if !sameRankSiblings(positions, group, sibling, dir) {
			continue
		}

		sorted := make([]Edge, len(group))
		copy(sorted, group)
		sort.SliceStable(sorted, func(i, j int) bool {
			if port(sorted[i]) != port(sorted[j]) {
				return port(sorted[i]) < port(sorted[j])
			}
			return sibling(sorted[i]) < sibling(sorted[j])
		})

		coords := make([]float64, len(sorted))
		for i, e := range sorted {
			coords[i] = crossCoord(positions[sibling(e)], dir)
		}
		sort.Float64s(coords)

		for i, e := range sorted {
			p := positions[sibling(e)]
			setCross(&p, dir, coords[i])
			positions[sibling(e)] = p
		}
	}
}

// sameRankSiblings reports whether every sibling in the group sits at
// the same flow coordinate and appears exactly once. Reassigning cross
// coordinates across ranks, or giving one node two positions, would
// corrupt the layout, so such groups are left alone.
func sameRankSiblings(positions map[string]Point, group []Edge, sibling func(Edge) string, dir Direction) bool {
	seen := make(map[string]bool, len(group))
	flow := 0.0
	for i, e := range group {
		id := sibling(e)
		if seen[id] {
			return false
		}
		seen[id] = true
		p, ok := positions[id]
		if !ok {
			return false
		}
		if i == 0 {
			flow = flowCoord(p, dir)
		} else if flowCoord(p, dir) != flow {
			return false
		}
	}
	return true
}
