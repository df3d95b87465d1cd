package flow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/chis/pathdesigner/internal/events"
)

// Store is the single mutable source of truth for the graph: the canonical
// list of nodes and edges. All reads hand out copies; all writes go through
// the narrow mutation API below, which keeps the single-writer-per-node-slot
// discipline enforceable. A Store is safe for concurrent use.
//
// The Store publishes change notifications on the event bus; it never
// computes node values itself.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string // node ids in insertion order, for deterministic listing
	edges []Edge
	bus   *events.Bus
}

// NewStore creates an empty graph store. The bus may be nil when no
// observer needs change notifications (e.g. in tests).
func NewStore(bus *events.Bus) *Store {
	return &Store{
		nodes: make(map[string]*Node),
		bus:   bus,
	}
}

// AddNode creates a node of the given type at the given position with an
// empty published data map, and returns a copy of it.
func (s *Store) AddNode(t NodeType, pos Position) (Node, error) {
	if !t.Valid() {
		return Node{}, fmt.Errorf("unknown node type %q", t)
	}
	n := Node{
		ID:       uuid.NewString(),
		Type:     t,
		Position: pos,
		Data:     map[string]any{},
	}
	s.mu.Lock()
	s.nodes[n.ID] = &n
	s.order = append(s.order, n.ID)
	s.mu.Unlock()

	s.publish(events.EventNodesChanged, map[string]any{"node": n.ID, "op": "add"})
	return n.Clone(), nil
}

// AddNodeWithID inserts a fully specified node. It is used when restoring
// a saved project and in tests that need predictable ids.
func (s *Store) AddNodeWithID(n Node) error {
	if !n.Type.Valid() {
		return fmt.Errorf("unknown node type %q", n.Type)
	}
	if n.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	s.mu.Lock()
	if _, exists := s.nodes[n.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("node %s already exists", n.ID)
	}
	c := n.Clone()
	s.nodes[c.ID] = &c
	s.order = append(s.order, c.ID)
	s.mu.Unlock()

	s.publish(events.EventNodesChanged, map[string]any{"node": n.ID, "op": "add"})
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	delete(s.nodes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	edgesRemoved := false
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			edgesRemoved = true
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	s.mu.Unlock()

	s.publish(events.EventNodesChanged, map[string]any{"node": id, "op": "remove"})
	if edgesRemoved {
		s.publish(events.EventEdgesChanged, map[string]any{"node": id})
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// NodeCount returns the number of nodes in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// SetPosition moves a node on the canvas.
func (s *Store) SetPosition(id string, pos Position) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %s not found", id)
	}
	n.Position = pos
	s.mu.Unlock()
	return nil
}

// SetPositions applies a batch of computed positions (a layout result) in
// one pass and emits a single layout notification.
func (s *Store) SetPositions(positions map[string]Position) {
	s.mu.Lock()
	for id, pos := range positions {
		if n, ok := s.nodes[id]; ok {
			n.Position = pos
		}
	}
	s.mu.Unlock()
	s.publish(events.EventLayoutApplied, nil)
}

// UpdateNodeData merges the given fields into a node's published data map.
// Values are deep-copied in, so the caller keeps no live reference into the
// store. Returns true when any field actually changed; no notification is
// emitted for no-op writes.
//
// Only the node's own computation unit (or the user editing the node's
// local settings) may call this for a given id, never a downstream node.
func (s *Store) UpdateNodeData(id string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("node %s not found", id)
	}
	changed := false
	for k, v := range fields {
		old, had := n.Data[k]
		if had && ValueEqual(old, v) {
			continue
		}
		n.Data[k] = cloneValue(v)
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publish(events.EventNodeData, map[string]any{"node": id})
	}
	return changed, nil
}

// RemoveNodeData deletes fields from a node's published data map.
func (s *Store) RemoveNodeData(id string, keys ...string) (bool, error) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("node %s not found", id)
	}
	changed := false
	for _, k := range keys {
		if _, had := n.Data[k]; had {
			delete(n.Data, k)
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.publish(events.EventNodeData, map[string]any{"node": id})
	}
	return changed, nil
}

// Connect inserts an edge according to the connection policy:
//   - self-connections are rejected;
//   - cycle-forming edges are rejected;
//   - any existing edge at the exact (target, targetHandle) pair is
//     superseded, and a fixed source handle supersedes any existing edge at
//     the exact (source, sourceHandle) pair; last write wins and no
//     partial-connection state is possible;
//   - dynamic source handles (numeric suffix) are exempt from the removal
//     step on the source axis. Each numbered target slot is still exclusive,
//     only the family as a whole grows.
func (s *Store) Connect(source, sourceHandle, target, targetHandle string) (Edge, error) {
	if source == target {
		return Edge{}, fmt.Errorf("cannot connect node %s to itself", source)
	}

	s.mu.Lock()
	if _, ok := s.nodes[source]; !ok {
		s.mu.Unlock()
		return Edge{}, fmt.Errorf("source node %s not found", source)
	}
	if _, ok := s.nodes[target]; !ok {
		s.mu.Unlock()
		return Edge{}, fmt.Errorf("target node %s not found", target)
	}
	if s.pathExists(target, source) {
		s.mu.Unlock()
		return Edge{}, fmt.Errorf("edge %s -> %s would create a cycle", source, target)
	}

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Target == target && e.TargetHandle == targetHandle {
			continue
		}
		if IsFixedPort(sourceHandle) && e.Source == source && e.SourceHandle == sourceHandle {
			continue
		}
		kept = append(kept, e)
	}
	edge := Edge{
		ID:           uuid.NewString(),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
	s.edges = append(kept, edge)
	s.mu.Unlock()

	s.publish(events.EventEdgesChanged, map[string]any{"edge": edge.ID})
	return edge, nil
}

// Disconnect removes the edge with the given id.
func (s *Store) Disconnect(edgeID string) error {
	s.mu.Lock()
	found := false
	for i, e := range s.edges {
		if e.ID == edgeID {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("edge %s not found", edgeID)
	}
	s.publish(events.EventEdgesChanged, map[string]any{"edge": edgeID})
	return nil
}

// SetEdges replaces the whole edge list. Used when restoring a saved
// project; each edge is validated against the current node set.
func (s *Store) SetEdges(edges []Edge) error {
	s.mu.Lock()
	for _, e := range edges {
		if _, ok := s.nodes[e.Source]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("edge %s: source node %s not found", e.ID, e.Source)
		}
		if _, ok := s.nodes[e.Target]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("edge %s: target node %s not found", e.ID, e.Target)
		}
	}
	s.edges = append([]Edge(nil), edges...)
	s.mu.Unlock()

	s.publish(events.EventEdgesChanged, nil)
	return nil
}

// Edges returns a copy of all edges.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge(nil), s.edges...)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// EdgeInto resolves the unique edge terminating at (nodeID, handle).
func (s *Store) EdgeInto(nodeID, handle string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges {
		if e.Target == nodeID && e.TargetHandle == handle {
			return e, true
		}
	}
	return Edge{}, false
}

// EdgesIntoFamily returns all edges terminating at a dynamic port family
// ("prefix-0", "prefix-1", ...) of the given node, sorted by slot number.
func (s *Store) EdgesIntoFamily(nodeID, prefix string) []Edge {
	s.mu.RLock()
	var out []Edge
	for _, e := range s.edges {
		if e.Target != nodeID {
			continue
		}
		p, _, ok := ParseDynamicPort(e.TargetHandle)
		if ok && p == prefix {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		_, a, _ := ParseDynamicPort(out[i].TargetHandle)
		_, b, _ := ParseDynamicPort(out[j].TargetHandle)
		return a < b
	})
	return out
}

// pathExists reports whether target is reachable from from along edges.
// Callers must hold the lock.
func (s *Store) pathExists(from, to string) bool {
	if from == to {
		return true
	}
	// Iterative DFS; the graph is small and acyclic by construction.
	stack := []string{from}
	seen := map[string]bool{from: true}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range s.edges {
			if e.Source != cur || seen[e.Target] {
				continue
			}
			if e.Target == to {
				return true
			}
			seen[e.Target] = true
			stack = append(stack, e.Target)
		}
	}
	return false
}

func (s *Store) publish(eventType string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, Payload: payload})
}
