package layout

import "sort"

// orderSweeps is how many alternating down/up median passes the
// ordering stage runs. Small graphs converge well before this.
const orderSweeps = 4

// orderLayers arranges nodes into per-rank slices and reduces edge
// crossings with neighbor-median sweeps. The initial order within each
// rank is the input node order, so the result is fully determined by
// the arguments.
func orderLayers(nodes []Node, edges []Edge, ranks map[string]int) [][]string {
	layers := make([][]string, maxRank(ranks)+1)
	for _, n := range nodes {
		r := ranks[n.ID]
		layers[r] = append(layers[r], n.ID)
	}

	pred := make(map[string][]string)
	succ := make(map[string][]string)
	for _, e := range edges {
		pred[e.Target] = append(pred[e.Target], e.Source)
		succ[e.Source] = append(succ[e.Source], e.Target)
	}

	for sweep := 0; sweep < orderSweeps; sweep++ {
		if sweep%2 == 0 {
			for r := 1; r < len(layers); r++ {
				sortByMedian(layers[r], layers[r-1], pred)
			}
		} else {
			for r := len(layers) - 2; r >= 0; r-- {
				sortByMedian(layers[r], layers[r+1], succ)
			}
		}
	}
	return layers
}

// sortByMedian reorders layer by the median position of each node's
// neighbors in the adjacent layer. Nodes without neighbors keep their
// relative order, as does any tie; sort.SliceStable guarantees both.
func sortByMedian(layer, adjacent []string, neighbors map[string][]string) {
	slot := make(map[string]int, len(adjacent))
	for i, id := range adjacent {
		slot[id] = i
	}

	current := make(map[string]int, len(layer))
	for i, id := range layer {
		current[id] = i
	}

	median := func(id string) float64 {
		positions := make([]int, 0, len(neighbors[id]))
		for _, n := range neighbors[id] {
			if p, ok := slot[n]; ok {
				positions = append(positions, p)
			}
		}
		if len(positions) == 0 {
			// Keep unconnected nodes where they are.
			return float64(current[id])
		}
		sort.Ints(positions)
		mid := len(positions) / 2
		if len(positions)%2 == 1 {
			return float64(positions[mid])
		}
		return float64(positions[mid-1]+positions[mid]) / 2
	}

	keys := make(map[string]float64, len(layer))
	for _, id := range layer {
		keys[id] = median(id)
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return keys[layer[i]] < keys[layer[j]]
	})
}
