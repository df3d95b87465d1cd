package nodes

import (
	"context"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
)

// toolpathUnit plans cutting passes. It reads the operations node's
// detections and assignments together with the part layout the
// upstream chain passed through, and asks the service for a full pass
// plan whenever that combination changes. The assignments and sheet
// set are passed through for the export node.
type toolpathUnit struct {
	in *flow.Subscription
}

func newToolpathUnit(id string, store *flow.Store) *toolpathUnit {
	return &toolpathUnit{
		in: flow.Subscribe(store, id, "operations",
			flow.Fields("operations", "assignments", "objects", "materials", "placements")),
	}
}

func (*toolpathUnit) Type() flow.NodeType { return flow.NodeToolpath }

func (*toolpathUnit) SettingsKeys() []string { return nil }

func (u *toolpathUnit) Evaluate(ec *Eval) bool {
	v, ok, _ := u.in.Poll()
	if !ok || v["operations"] == nil {
		ec.ResetAsync()
		removed := ec.Remove("toolpaths", "stock_width", "stock_depth", "assignments", "materials")
		return ec.Publish(map[string]any{FieldStatus: StatusIdle}) || removed
	}

	key := "toolpath:" + snapshot(v)
	return ec.Async(key, func(ctx context.Context, svc Service) (map[string]any, error) {
		req, err := buildToolpathRequest(v)
		if err != nil {
			return nil, err
		}
		result, err := svc.GenerateToolpath(ctx, req)
		if err != nil {
			return nil, err
		}
		fields, err := asFields(result)
		if err != nil {
			return nil, err
		}
		// Passed through so the export node has everything it needs
		// on one port.
		fields["assignments"] = v["assignments"]
		fields["materials"] = v["materials"]
		return fields, nil
	})
}

func buildToolpathRequest(v map[string]any) (cam.ToolpathGenRequest, error) {
	assignments, err := decodeAs[[]cam.OperationAssignment](v["assignments"])
	if err != nil {
		return cam.ToolpathGenRequest{}, err
	}
	detected, err := decodeAs[[]cam.DetectedOperation](v["operations"])
	if err != nil {
		return cam.ToolpathGenRequest{}, err
	}
	materials, err := decodeAs[[]cam.SheetMaterial](v["materials"])
	if err != nil {
		return cam.ToolpathGenRequest{}, err
	}
	placements, err := decodeAs[[]cam.PlacementItem](v["placements"])
	if err != nil {
		return cam.ToolpathGenRequest{}, err
	}
	objects, err := decodeAs[[]cam.BrepObject](v["objects"])
	if err != nil {
		return cam.ToolpathGenRequest{}, err
	}

	origins := make(map[string][]float64, len(objects))
	boxes := make(map[string]cam.BoundingBox, len(objects))
	for _, o := range objects {
		if len(o.Origin.Position) >= 2 {
			origins[o.ObjectID] = o.Origin.Position[:2]
		}
		boxes[o.ObjectID] = o.BoundingBox
	}

	return cam.ToolpathGenRequest{
		Operations:         assignments,
		DetectedOperations: cam.OperationDetectResult{Operations: detected},
		Sheet:              cam.SheetSettings{Materials: materials},
		Placements:         placements,
		ObjectOrigins:      origins,
		BoundingBoxes:      boxes,
	}, nil
}
