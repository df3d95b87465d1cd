package nodes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
	"github.com/chis/pathdesigner/internal/layout"
	"github.com/chis/pathdesigner/internal/logging"
)

// Runtime owns the graph store and drives propagation. Every mutation
// enters through one of its methods, which apply the change and then
// re-evaluate units until the graph reaches a fixpoint. Async service
// results re-enter through the same lock, so unit code never sees
// concurrent evaluation.
type Runtime struct {
	mu         sync.Mutex
	store      *flow.Store
	service    Service
	panel      PanelController
	log        *logging.Logger
	layoutOpts layout.Options
	instances  map[string]*instance
	wg         sync.WaitGroup
}

// instance tracks per-node async state next to the unit. asyncSeq is
// bumped whenever a newer request supersedes an in-flight one; a
// completion with a stale sequence is dropped unseen.
type instance struct {
	unit     Unit
	asyncKey string
	asyncSeq uint64
}

// NewRuntime wires the store, service client, panel controller and
// layout defaults together. A nil panel falls back to NopPanel.
func NewRuntime(store *flow.Store, service Service, panel PanelController, log *logging.Logger, layoutOpts layout.Options) *Runtime {
	if panel == nil {
		panel = NopPanel{}
	}
	if log == nil {
		log = logging.Default()
	}
	return &Runtime{
		store:      store,
		service:    service,
		panel:      panel,
		log:        log.WithField("component", "runtime"),
		layoutOpts: layoutOpts,
		instances:  make(map[string]*instance),
	}
}

// Store exposes the underlying graph for read-only use (SSE payloads,
// persistence snapshots). Mutations must go through Runtime methods.
func (rt *Runtime) Store() *flow.Store {
	return rt.store
}

// Wait blocks until all in-flight service calls and their follow-up
// propagation have finished. Used on shutdown and in tests.
func (rt *Runtime) Wait() {
	rt.wg.Wait()
}

// AddNode creates a node, attaches its behavior and runs propagation
// so settings nodes publish their defaults immediately.
func (rt *Runtime) AddNode(t flow.NodeType, pos flow.Position) (flow.Node, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n, err := rt.store.AddNode(t, pos)
	if err != nil {
		return flow.Node{}, err
	}
	unit, err := newUnit(n, rt.store)
	if err != nil {
		rt.store.RemoveNode(n.ID)
		return flow.Node{}, err
	}
	rt.instances[n.ID] = &instance{unit: unit}
	rt.log.Debug("added %s node %s", t, n.ID)
	rt.propagateLocked()

	n, _ = rt.store.Node(n.ID)
	return n, nil
}

// RemoveNode deletes a node, its edges and its behavior. Any in-flight
// call for the node resolves into nothing.
func (rt *Runtime) RemoveNode(id string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.store.RemoveNode(id); err != nil {
		return err
	}
	delete(rt.instances, id)
	rt.panel.ClearDetail(id)
	rt.propagateLocked()
	return nil
}

// Connect wires source to target and propagates. Fixed-port supersede
// rules and cycle rejection live in the store.
func (rt *Runtime) Connect(source, sourceHandle, target, targetHandle string) (flow.Edge, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	e, err := rt.store.Connect(source, sourceHandle, target, targetHandle)
	if err != nil {
		return flow.Edge{}, err
	}
	rt.propagateLocked()
	return e, nil
}

// Disconnect removes an edge and propagates the now-absent inputs.
func (rt *Runtime) Disconnect(edgeID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.store.Disconnect(edgeID); err != nil {
		return err
	}
	rt.propagateLocked()
	return nil
}

// MoveNode updates a node position. Positions never affect data flow,
// so no propagation runs.
func (rt *Runtime) MoveNode(id string, pos flow.Position) error {
	return rt.store.SetPosition(id, pos)
}

// UpdateSettings writes user-editable fields into a node's data slot.
// Only the unit's declared settings keys are writable from outside;
// everything else is the node's own output.
func (rt *Runtime) UpdateSettings(id string, fields map[string]any) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, ok := rt.instances[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	allowed := make(map[string]bool)
	for _, k := range inst.unit.SettingsKeys() {
		allowed[k] = true
	}
	for k := range fields {
		if !allowed[k] {
			return fmt.Errorf("field %q is not editable on %s nodes", k, inst.unit.Type())
		}
	}

	if _, err := rt.store.UpdateNodeData(id, fields); err != nil {
		return err
	}
	rt.propagateLocked()
	return nil
}

// Release commits a Dam node's held upstream value downstream. It is a
// no-op unless the node is in the pending-update state.
func (rt *Runtime) Release(id string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, ok := rt.instances[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	dam, ok := inst.unit.(*damUnit)
	if !ok {
		return fmt.Errorf("node %s is not a dam node", id)
	}
	dam.release(&Eval{rt: rt, id: id})
	rt.propagateLocked()
	return nil
}

// Upload feeds a STEP file into an import node. Each upload is a fresh
// user action, so it always issues a new service call.
func (rt *Runtime) Upload(id, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, ok := rt.instances[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	if _, ok := inst.unit.(*importUnit); !ok {
		return fmt.Errorf("node %s is not an import node", id)
	}

	ec := &Eval{rt: rt, id: id}
	ec.Publish(map[string]any{"file_name": filename})
	ec.Async("upload:"+uuid.NewString(), func(ctx context.Context, svc Service) (map[string]any, error) {
		result, err := svc.UploadStep(ctx, filename, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return asFields(result)
	})
	rt.propagateLocked()
	return nil
}

// AutoNest asks the service to distribute the placement node's parts
// across its sheets and replaces the node's placements with the result.
func (rt *Runtime) AutoNest(id string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, ok := rt.instances[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	if _, ok := inst.unit.(*placementUnit); !ok {
		return fmt.Errorf("node %s is not a placement node", id)
	}

	n, _ := rt.store.Node(id)
	objects, err := decodeAs[[]cam.BrepObject](n.Data["objects"])
	if err != nil || len(objects) == 0 {
		return fmt.Errorf("node %s has no parts to nest", id)
	}
	materials, err := decodeAs[[]cam.SheetMaterial](n.Data["materials"])
	if err != nil || len(materials) == 0 {
		return fmt.Errorf("node %s has no sheets to nest onto", id)
	}
	req := cam.AutoNestRequest{
		Objects:      objects,
		Sheet:        cam.SheetSettings{Materials: materials},
		ToolDiameter: defaultToolDiameter,
		Clearance:    defaultNestClearance,
	}

	ec := &Eval{rt: rt, id: id}
	ec.Async("autonest:"+uuid.NewString(), func(ctx context.Context, svc Service) (map[string]any, error) {
		result, err := svc.AutoNest(ctx, req)
		if err != nil {
			return nil, err
		}
		return asFields(result)
	})
	rt.propagateLocked()
	return nil
}

// ValidatePlacements runs a synchronous bounds and collision check for
// a placement node. The result is returned to the caller and never
// published, so a failed check cannot disturb downstream nodes.
func (rt *Runtime) ValidatePlacements(ctx context.Context, id string) (cam.ValidatePlacementResponse, error) {
	rt.mu.Lock()
	n, ok := rt.store.Node(id)
	rt.mu.Unlock()
	if !ok {
		return cam.ValidatePlacementResponse{}, fmt.Errorf("node %s not found", id)
	}

	placements, err := decodeAs[[]cam.PlacementItem](n.Data["placements"])
	if err != nil {
		return cam.ValidatePlacementResponse{}, err
	}
	materials, err := decodeAs[[]cam.SheetMaterial](n.Data["materials"])
	if err != nil {
		return cam.ValidatePlacementResponse{}, err
	}
	objects, err := decodeAs[[]cam.BrepObject](n.Data["objects"])
	if err != nil {
		return cam.ValidatePlacementResponse{}, err
	}
	boxes := make(map[string]cam.BoundingBox, len(objects))
	for _, o := range objects {
		boxes[o.ObjectID] = o.BoundingBox
	}

	return rt.service.ValidatePlacement(ctx, cam.ValidatePlacementRequest{
		Placements:    placements,
		Sheet:         cam.SheetSettings{Materials: materials},
		BoundingBoxes: boxes,
	})
}

// ContourPreview slices one object of a node's current geometry into
// 2D loops. Like ValidatePlacements the verdict goes straight back to
// the caller and node state is untouched, so a preview never triggers
// downstream work.
func (rt *Runtime) ContourPreview(ctx context.Context, id, objectID string, toolDiameter float64, offsetSide string) (cam.ContourExtractResult, error) {
	rt.mu.Lock()
	n, ok := rt.store.Node(id)
	rt.mu.Unlock()
	if !ok {
		return cam.ContourExtractResult{}, fmt.Errorf("node %s not found", id)
	}

	fileID, _ := n.Data["file_id"].(string)
	if fileID == "" {
		return cam.ContourExtractResult{}, fmt.Errorf("node %s has no analyzed geometry", id)
	}
	known := false
	for _, oid := range objectIDs(n.Data["objects"]) {
		if oid == objectID {
			known = true
			break
		}
	}
	if !known {
		return cam.ContourExtractResult{}, fmt.Errorf("object %s not found on node %s", objectID, id)
	}

	if toolDiameter <= 0 {
		toolDiameter = defaultToolDiameter
	}
	if offsetSide == "" {
		offsetSide = "outside"
	}
	return rt.service.ExtractContours(ctx, cam.ContourExtractRequest{
		FileID:       fileID,
		ObjectID:     objectID,
		ToolDiameter: toolDiameter,
		OffsetSide:   offsetSide,
	})
}

// ValidateSettings runs server-side sanity checks on a settings block
// before the user commits it to an assignment.
func (rt *Runtime) ValidateSettings(ctx context.Context, settings cam.MachiningSettings) (cam.ValidateSettingsResponse, error) {
	return rt.service.ValidateSettings(ctx, settings)
}

// AutoLayout recomputes every node position with the layered layout
// and applies the result in one batch.
func (rt *Runtime) AutoLayout(dir layout.Direction) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	opts := rt.layoutOpts
	opts.Direction = dir

	nodes := rt.store.Nodes()
	lnodes := make([]layout.Node, len(nodes))
	types := make(map[string]flow.NodeType, len(nodes))
	for i, n := range nodes {
		lnodes[i] = layout.Node{ID: n.ID}
		types[n.ID] = n.Type
	}
	edges := rt.store.Edges()
	ledges := make([]layout.Edge, len(edges))
	for i, e := range edges {
		srcIdx, _ := flow.PortIndex(types[e.Source], flow.SideOut, e.SourceHandle)
		tgtIdx, _ := flow.PortIndex(types[e.Target], flow.SideIn, e.TargetHandle)
		ledges[i] = layout.Edge{
			Source:     e.Source,
			Target:     e.Target,
			SourcePort: srcIdx,
			TargetPort: tgtIdx,
		}
	}

	positions, err := layout.Compute(lnodes, ledges, opts)
	if err != nil {
		return err
	}
	batch := make(map[string]flow.Position, len(positions))
	for id, p := range positions {
		batch[id] = flow.Position{X: p.X, Y: p.Y}
	}
	rt.store.SetPositions(batch)
	return nil
}

// PortsFor expands a node's declared ports into the concrete set shown
// to clients. Merge nodes always expose one more input slot than they
// have connections, and never fewer than two.
func (rt *Runtime) PortsFor(n flow.Node) []flow.PortSpec {
	specs := flow.Ports(n.Type)
	expanded := make([]flow.PortSpec, 0, len(specs)+1)
	for _, spec := range specs {
		if !spec.Dynamic {
			expanded = append(expanded, spec)
			continue
		}
		total := len(rt.store.EdgesIntoFamily(n.ID, spec.Name)) + 1
		if total < 2 {
			total = 2
		}
		for i := 0; i < total; i++ {
			expanded = append(expanded, flow.PortSpec{
				Name:    flow.DynamicPort(spec.Name, i),
				Kind:    spec.Kind,
				Side:    spec.Side,
				Index:   spec.Index + i,
				Dynamic: true,
			})
		}
	}
	return expanded
}

// NodeView is the API-facing shape of a node: stored state plus the
// expanded port set.
type NodeView struct {
	ID       string          `json:"id"`
	Type     flow.NodeType   `json:"type"`
	Position flow.Position   `json:"position"`
	Data     map[string]any  `json:"data"`
	Ports    []flow.PortSpec `json:"ports"`
}

// GraphSnapshot is a consistent copy of the whole graph.
type GraphSnapshot struct {
	Nodes []NodeView  `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

// Graph returns the current graph with expanded ports.
func (rt *Runtime) Graph() GraphSnapshot {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	nodes := rt.store.Nodes()
	views := make([]NodeView, len(nodes))
	for i, n := range nodes {
		views[i] = NodeView{
			ID:       n.ID,
			Type:     n.Type,
			Position: n.Position,
			Data:     n.Data,
			Ports:    rt.PortsFor(n),
		}
	}
	return GraphSnapshot{Nodes: views, Edges: rt.store.Edges()}
}

// SettingsSnapshot extracts what a saved project keeps: topology,
// positions and editable settings. Computed outputs are dropped; they
// are rebuilt by propagation after a restore.
func (rt *Runtime) SettingsSnapshot() ([]flow.Node, []flow.Edge) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	nodes := rt.store.Nodes()
	out := make([]flow.Node, len(nodes))
	for i, n := range nodes {
		kept := map[string]any{}
		if inst, ok := rt.instances[n.ID]; ok {
			for _, k := range inst.unit.SettingsKeys() {
				if v, present := n.Data[k]; present {
					kept[k] = v
				}
			}
		}
		n.Data = kept
		out[i] = n
	}
	return out, rt.store.Edges()
}

// Restore replaces the whole graph with a saved topology. Existing
// nodes are dropped first; in-flight calls for them become stale.
func (rt *Runtime) Restore(nodes []flow.Node, edges []flow.Edge) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, n := range rt.store.Nodes() {
		rt.store.RemoveNode(n.ID)
		delete(rt.instances, n.ID)
		rt.panel.ClearDetail(n.ID)
	}

	for _, n := range nodes {
		if err := rt.store.AddNodeWithID(n); err != nil {
			return err
		}
		unit, err := newUnit(n, rt.store)
		if err != nil {
			return err
		}
		rt.instances[n.ID] = &instance{unit: unit}
	}
	if err := rt.store.SetEdges(edges); err != nil {
		return err
	}
	rt.log.Info("restored graph with %d nodes, %d edges", len(nodes), len(edges))
	rt.propagateLocked()
	return nil
}

// maxPropagationPasses bounds the fixpoint loop. One pass moves data
// one rank downstream, so node count plus slack always suffices for a
// DAG; the bound only matters if a unit misreports changes.
const maxPropagationPasses = 64

// propagateLocked evaluates every unit until no evaluation changes any
// published data. Callers must hold rt.mu.
func (rt *Runtime) propagateLocked() {
	passes := len(rt.instances) + 2
	if passes > maxPropagationPasses {
		passes = maxPropagationPasses
	}
	for i := 0; i < passes; i++ {
		changed := false
		for _, n := range rt.store.Nodes() {
			inst, ok := rt.instances[n.ID]
			if !ok {
				continue
			}
			if inst.unit.Evaluate(&Eval{rt: rt, id: n.ID}) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
	rt.log.Warn("propagation did not settle after %d passes", passes)
}
