package nodes

import "context"

// AsyncCall is a service request issued by a unit. It runs outside the
// runtime lock; the returned fields are published only if no newer
// request superseded it in the meantime.
type AsyncCall func(ctx context.Context, svc Service) (map[string]any, error)

// Eval is the surface a unit sees during evaluation. All methods write
// through the runtime, keeping the single-writer-per-slot rule: a unit
// can only touch the data of the node it belongs to.
type Eval struct {
	rt *Runtime
	id string
}

// Self returns the node's current published data.
func (e *Eval) Self() map[string]any {
	n, _ := e.rt.store.Node(e.id)
	return n.Data
}

// Publish merges fields into the node's data slot. The store detects
// per-field no-ops, so republishing an equal value costs nothing and
// wakes nobody.
func (e *Eval) Publish(fields map[string]any) bool {
	changed, err := e.rt.store.UpdateNodeData(e.id, fields)
	if err != nil {
		e.rt.log.Warn("publish on %s failed: %v", e.id, err)
		return false
	}
	return changed
}

// Remove clears fields from the node's data slot.
func (e *Eval) Remove(keys ...string) bool {
	if len(keys) == 0 {
		return false
	}
	changed, err := e.rt.store.RemoveNodeData(e.id, keys...)
	if err != nil {
		e.rt.log.Warn("remove on %s failed: %v", e.id, err)
		return false
	}
	return changed
}

// Fail records a node-local error. Downstream nodes keep whatever the
// node last published successfully.
func (e *Eval) Fail(msg string) bool {
	return e.Publish(map[string]any{FieldStatus: StatusError, FieldError: msg})
}

// Async issues a service call for the given request key. A key equal
// to the last issued one is redundant and skipped; a new key marks the
// node pending and supersedes any in-flight call, whose result will be
// dropped on arrival.
func (e *Eval) Async(key string, call AsyncCall) bool {
	inst, ok := e.rt.instances[e.id]
	if !ok {
		return false
	}
	if inst.asyncKey == key {
		return false
	}
	inst.asyncKey = key
	inst.asyncSeq++
	seq := inst.asyncSeq

	changed := e.Publish(map[string]any{FieldStatus: StatusPending})
	e.rt.wg.Add(1)
	go e.rt.runAsync(e.id, seq, call)
	return changed
}

// ResetAsync forgets the last request key and invalidates any call
// still in flight. Units use it when their input configuration leaves
// the territory the key describes, e.g. a Merge dropping below two
// sources.
func (e *Eval) ResetAsync() {
	if inst, ok := e.rt.instances[e.id]; ok {
		inst.asyncKey = ""
		inst.asyncSeq++
	}
}

// runAsync executes a call off the lock and folds its result back in.
func (rt *Runtime) runAsync(id string, seq uint64, call AsyncCall) {
	defer rt.wg.Done()

	fields, err := call(context.Background(), rt.service)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	inst, ok := rt.instances[id]
	if !ok || inst.asyncSeq != seq {
		// Node removed or a newer request took over.
		return
	}

	if err != nil {
		rt.store.UpdateNodeData(id, map[string]any{
			FieldStatus: StatusError,
			FieldError:  err.Error(),
		})
		rt.log.Warn("service call for node %s failed: %v", id, err)
	} else {
		fields[FieldStatus] = StatusReady
		rt.store.RemoveNodeData(id, FieldError)
		rt.store.UpdateNodeData(id, fields)
		rt.panel.ShowDetail(id, "result", fields)
	}
	rt.propagateLocked()
}
