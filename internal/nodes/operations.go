package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
)

// operationsUnit runs operation detection over the upstream geometry
// and keeps a per-operation assignment list the user can edit. The
// detection request key covers the file, the object set and the local
// tool settings, so any of those changing triggers exactly one new
// call.
//
// Fields the detection does not consume (materials, placements from an
// upstream placement stage) are copied through synchronously, so sheet
// and layout edits reach the toolpath stage without re-detecting.
type operationsUnit struct {
	brep *flow.Subscription
}

func newOperationsUnit(id string, store *flow.Store) *operationsUnit {
	return &operationsUnit{
		brep: flow.Subscribe(store, id, "brep",
			flow.Fields("file_id", "objects", "materials", "placements")),
	}
}

func (*operationsUnit) Type() flow.NodeType { return flow.NodeOperations }

func (*operationsUnit) SettingsKeys() []string {
	return []string{"tool_diameter", "offset_side", "assignments"}
}

func (u *operationsUnit) Evaluate(ec *Eval) bool {
	v, ok, _ := u.brep.Poll()
	if !ok {
		ec.ResetAsync()
		removed := ec.Remove("operations", "assignments", "objects", "materials", "placements")
		return ec.Publish(map[string]any{FieldStatus: StatusIdle}) || removed
	}

	fileID, _ := v["file_id"].(string)
	ids := objectIDs(v["objects"])
	if fileID == "" || len(ids) == 0 {
		ec.ResetAsync()
		return ec.Publish(map[string]any{FieldStatus: StatusIdle})
	}

	// The pass-through mirrors the current upstream snapshot exactly:
	// fields the new upstream lacks are dropped, so rewiring to a
	// chain without a placement stage cannot leave stale sheet data
	// behind.
	through := map[string]any{"objects": v["objects"]}
	changed := false
	for _, k := range []string{"materials", "placements"} {
		if v[k] != nil {
			through[k] = v[k]
		} else {
			changed = ec.Remove(k) || changed
		}
	}
	changed = ec.Publish(through) || changed

	self := ec.Self()
	toolDiameter := floatOr(self["tool_diameter"], defaultToolDiameter)
	offsetSide := stringOr(self["offset_side"], "outside")

	key := fmt.Sprintf("detect:%s:%s:%g:%s",
		fileID, strings.Join(ids, ","), toolDiameter, offsetSide)
	issued := ec.Async(key, func(ctx context.Context, svc Service) (map[string]any, error) {
		result, err := svc.DetectOperations(ctx, cam.DetectOperationsRequest{
			FileID:       fileID,
			ObjectIDs:    ids,
			ToolDiameter: toolDiameter,
			OffsetSide:   offsetSide,
		})
		if err != nil {
			return nil, err
		}
		fields, err := asFields(result)
		if err != nil {
			return nil, err
		}
		assignments, err := defaultAssignments(result.Operations)
		if err != nil {
			return nil, err
		}
		fields["assignments"] = assignments
		return fields, nil
	})
	return changed || issued
}

// defaultAssignments seeds one enabled assignment per detected
// operation, carrying the suggested settings and detection order.
func defaultAssignments(ops []cam.DetectedOperation) ([]any, error) {
	assignments := make([]cam.OperationAssignment, len(ops))
	for i, op := range ops {
		assignments[i] = cam.OperationAssignment{
			OperationID: op.OperationID,
			Enabled:     op.Enabled,
			Settings:    op.SuggestedSettings,
			Order:       i,
		}
	}
	return asList(assignments)
}

// objectIDs pulls the object_id of every entry in a published object
// list, skipping malformed entries.
func objectIDs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			if id, ok := m["object_id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
