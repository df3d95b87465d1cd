package nodes

import "github.com/chis/pathdesigner/internal/flow"

// importUnit brings STEP files into the graph. It has no inputs; the
// Upload action on the runtime issues the actual service call, and the
// analysis result (file_id, objects, object_count) becomes this node's
// published output.
type importUnit struct{}

func (*importUnit) Type() flow.NodeType { return flow.NodeImport }

func (*importUnit) SettingsKeys() []string { return nil }

func (*importUnit) Evaluate(ec *Eval) bool {
	if _, ok := ec.Self()[FieldStatus]; !ok {
		return ec.Publish(map[string]any{FieldStatus: StatusIdle})
	}
	return false
}
