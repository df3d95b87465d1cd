package nodes

import (
	"context"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
)

// exportUnit runs the post processor over a finished toolpath plan and
// publishes the resulting machine-code program.
type exportUnit struct {
	toolpath *flow.Subscription
	post     *flow.Subscription
}

func newExportUnit(id string, store *flow.Store) *exportUnit {
	return &exportUnit{
		toolpath: flow.Subscribe(store, id, "toolpath",
			flow.Fields("toolpaths", "stock_width", "stock_depth", "assignments", "materials")),
		post: flow.Subscribe(store, id, "post", flow.Fields(
			"machine_name", "output_format", "unit", "bed_size",
			"safe_z", "home_position", "tool_number", "warmup_pause")),
	}
}

func (*exportUnit) Type() flow.NodeType { return flow.NodeExport }

func (*exportUnit) SettingsKeys() []string { return nil }

func (u *exportUnit) Evaluate(ec *Eval) bool {
	tpV, tpOK, _ := u.toolpath.Poll()
	postV, postOK, _ := u.post.Poll()

	if !tpOK || !postOK {
		ec.ResetAsync()
		removed := ec.Remove("code", "filename", "format")
		return ec.Publish(map[string]any{FieldStatus: StatusIdle}) || removed
	}

	key := "export:" + snapshot(map[string]any{"tp": tpV, "post": postV})
	return ec.Async(key, func(ctx context.Context, svc Service) (map[string]any, error) {
		toolpathResult, err := decodeAs[cam.ToolpathGenResult](tpV)
		if err != nil {
			return nil, err
		}
		assignments, err := decodeAs[[]cam.OperationAssignment](tpV["assignments"])
		if err != nil {
			return nil, err
		}
		materials, err := decodeAs[[]cam.SheetMaterial](tpV["materials"])
		if err != nil {
			return nil, err
		}
		postProcessor, err := decodeAs[cam.PostProcessorSettings](postV)
		if err != nil {
			return nil, err
		}

		result, err := svc.GenerateCode(ctx, cam.CodeGenRequest{
			ToolpathResult: toolpathResult,
			Operations:     assignments,
			Sheet:          cam.SheetSettings{Materials: materials},
			PostProcessor:  postProcessor,
		})
		if err != nil {
			return nil, err
		}
		return asFields(result)
	})
}
