package nodes

import "github.com/chis/pathdesigner/internal/flow"

// Defaults used when a node has no explicit machining parameters yet.
const (
	defaultToolDiameter  = 6.35
	defaultNestClearance = 5.0
)

// placementUnit positions imported parts on the stock sheets. It
// passes the upstream geometry and sheet set through for the toolpath
// node and maintains one placement entry per part, which the user can
// drag around or replace wholesale via auto-nesting.
type placementUnit struct {
	brep  *flow.Subscription
	sheet *flow.Subscription
}

func newPlacementUnit(id string, store *flow.Store) *placementUnit {
	return &placementUnit{
		brep:  flow.Subscribe(store, id, "brep", flow.Fields("file_id", "objects")),
		sheet: flow.Subscribe(store, id, "sheet", flow.Fields("materials")),
	}
}

func (*placementUnit) Type() flow.NodeType { return flow.NodePlacement }

func (*placementUnit) SettingsKeys() []string { return []string{"placements"} }

func (u *placementUnit) Evaluate(ec *Eval) bool {
	brepV, brepOK, brepChanged := u.brep.Poll()
	sheetV, sheetOK, sheetChanged := u.sheet.Poll()
	if !brepChanged && !sheetChanged {
		return false
	}

	if !brepOK || !sheetOK {
		removed := ec.Remove("file_id", "objects", "materials")
		return ec.Publish(map[string]any{FieldStatus: StatusIdle}) || removed
	}

	fields := map[string]any{
		"file_id":   brepV["file_id"],
		"objects":   brepV["objects"],
		"materials": sheetV["materials"],
		FieldStatus: StatusReady,
	}
	fields["placements"] = reconcilePlacements(
		ec.Self()["placements"], brepV["objects"], sheetV["materials"])
	return ec.Publish(fields)
}

// reconcilePlacements keeps the user's placements for parts that still
// exist, drops entries for removed parts and adds an origin placement
// on the first sheet for every new part. Order follows the upstream
// object list so the result is stable.
func reconcilePlacements(existing, objects, materials any) []any {
	byObject := make(map[string]any)
	if list, ok := existing.([]any); ok {
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				if id, ok := m["object_id"].(string); ok {
					byObject[id] = entry
				}
			}
		}
	}

	firstMaterial := ""
	if list, ok := materials.([]any); ok && len(list) > 0 {
		if m, ok := list[0].(map[string]any); ok {
			firstMaterial, _ = m["material_id"].(string)
		}
	}

	var out []any
	if list, ok := objects.([]any); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			id, ok := m["object_id"].(string)
			if !ok {
				continue
			}
			if kept, ok := byObject[id]; ok {
				out = append(out, kept)
				continue
			}
			out = append(out, map[string]any{
				"object_id":   id,
				"material_id": firstMaterial,
				"x_offset":    0.0,
				"y_offset":    0.0,
				"rotation":    0,
			})
		}
	}
	return out
}
