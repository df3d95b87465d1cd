package flow

// Extractor pulls a typed slice out of a producer node's published data.
// It must build its result from plain values only (no references into the
// source map survive, since the store hands out copies). Returning
// ok=false marks the producer's output as not-yet-usable, which the
// subscription treats the same as a missing edge.
type Extractor func(data map[string]any) (map[string]any, bool)

// WholeData is the pass-through extractor: it returns the producer's
// entire published data map. Used by nodes that copy an upstream value
// verbatim (Dam).
func WholeData(data map[string]any) (map[string]any, bool) {
	return data, true
}

// Fields returns an extractor that picks the named fields out of the
// producer's data. The extraction is usable once at least one of the
// fields is present.
func Fields(names ...string) Extractor {
	return func(data map[string]any) (map[string]any, bool) {
		out := make(map[string]any, len(names))
		found := false
		for _, name := range names {
			if v, ok := data[name]; ok {
				out[name] = v
				found = true
			}
		}
		return out, found
	}
}

// Subscription is a memoized read of a single upstream producer through a
// fixed input port. Poll re-resolves the connected edge and re-extracts;
// the consumer is told the value changed only when the extracted slice
// differs from the previous one under ShallowEqual, not when the
// producer's whole data blob changed.
type Subscription struct {
	store   *Store
	nodeID  string
	port    string
	extract Extractor

	last   map[string]any
	lastOK bool
	primed bool
}

// Subscribe creates a memoized subscription for (nodeID, port).
func Subscribe(store *Store, nodeID, port string, extract Extractor) *Subscription {
	return &Subscription{store: store, nodeID: nodeID, port: port, extract: extract}
}

// Poll resolves the current upstream value. ok is false when no edge is
// connected, the source node vanished, or the extractor rejected the
// producer's data. changed is true the first time Poll runs and whenever
// the (value, ok) pair differs from the previous poll.
func (s *Subscription) Poll() (value map[string]any, ok bool, changed bool) {
	value, ok = s.read()
	changed = !s.primed || ok != s.lastOK || (ok && !ShallowEqual(value, s.last))
	s.primed = true
	s.last = value
	s.lastOK = ok
	return value, ok, changed
}

// Current returns the memoized value from the last Poll.
func (s *Subscription) Current() (map[string]any, bool) {
	return s.last, s.lastOK
}

// Port returns the subscribed port name.
func (s *Subscription) Port() string { return s.port }

func (s *Subscription) read() (map[string]any, bool) {
	edge, ok := s.store.EdgeInto(s.nodeID, s.port)
	if !ok {
		return nil, false
	}
	src, ok := s.store.Node(edge.Source)
	if !ok {
		return nil, false
	}
	return s.extract(src.Data)
}

// ManySubscription is the fan-in counterpart of Subscription: it watches a
// dynamic port family ("prefix-0", "prefix-1", ...) and yields the
// compacted list of connected, extractable sources in port-index order;
// absent or unextractable slots leave no holes. Change detection is
// element-wise (SlicesEqual).
type ManySubscription struct {
	store   *Store
	nodeID  string
	prefix  string
	extract Extractor

	last   []map[string]any
	primed bool
}

// SubscribeMany creates a memoized fan-in subscription for the dynamic
// family (nodeID, prefix).
func SubscribeMany(store *Store, nodeID, prefix string, extract Extractor) *ManySubscription {
	return &ManySubscription{store: store, nodeID: nodeID, prefix: prefix, extract: extract}
}

// Poll resolves the current compacted input list and reports whether it
// differs from the previous poll.
func (s *ManySubscription) Poll() (values []map[string]any, changed bool) {
	values = s.read()
	changed = !s.primed || !SlicesEqual(values, s.last)
	s.primed = true
	s.last = values
	return values, changed
}

// Current returns the memoized list from the last Poll.
func (s *ManySubscription) Current() []map[string]any {
	return s.last
}

// Connected returns the number of edges currently bound to the family,
// including ones whose source is not yet extractable.
func (s *ManySubscription) Connected() int {
	return len(s.store.EdgesIntoFamily(s.nodeID, s.prefix))
}

func (s *ManySubscription) read() []map[string]any {
	edges := s.store.EdgesIntoFamily(s.nodeID, s.prefix)
	out := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		src, ok := s.store.Node(e.Source)
		if !ok {
			continue
		}
		v, ok := s.extract(src.Data)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return out
}
