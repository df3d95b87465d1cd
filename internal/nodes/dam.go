package nodes

import "github.com/chis/pathdesigner/internal/flow"

// Dam states published under FieldDamState.
const (
	FieldDamState = "dam_state"

	DamNoInput       = "no_input"
	DamUpToDate      = "up_to_date"
	DamPendingUpdate = "pending_update"
)

// damUnit is the graph's commit point: upstream churn only changes its
// state flag, while its published value moves exclusively on an
// explicit Release. Change detection compares canonical snapshots of
// the upstream value against the snapshot captured at the last
// release.
type damUnit struct {
	in       *flow.Subscription
	heldKeys []string
	released string
}

func newDamUnit(id string, store *flow.Store) *damUnit {
	return &damUnit{
		in: flow.Subscribe(store, id, "in", flow.WholeData),
	}
}

func (*damUnit) Type() flow.NodeType { return flow.NodeDam }

func (*damUnit) SettingsKeys() []string { return nil }

func (u *damUnit) Evaluate(ec *Eval) bool {
	v, ok, changed := u.in.Poll()
	if !changed {
		return false
	}

	if !ok {
		// Disconnecting resets everything, including release history.
		u.released = ""
		removed := ec.Remove(u.heldKeys...)
		u.heldKeys = nil
		return ec.Publish(map[string]any{FieldDamState: DamNoInput}) || removed
	}

	state := DamUpToDate
	if snapshot(v) != u.released {
		state = DamPendingUpdate
	}
	return ec.Publish(map[string]any{FieldDamState: state})
}

// release copies the current upstream value verbatim into the node's
// own data and records its snapshot. With no input or no pending
// update it does nothing.
func (u *damUnit) release(ec *Eval) {
	v, ok := u.in.Current()
	if !ok {
		return
	}
	cur := snapshot(v)
	if cur == u.released {
		return
	}

	ec.Remove(missingKeys(u.heldKeys, v)...)
	fields := make(map[string]any, len(v)+1)
	for k, val := range v {
		fields[k] = val
	}
	fields[FieldDamState] = DamUpToDate
	ec.Publish(fields)

	u.heldKeys = fieldKeys(v)
	u.released = cur
}
