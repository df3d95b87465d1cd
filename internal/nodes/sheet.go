package nodes

import "github.com/chis/pathdesigner/internal/flow"

// sheetUnit declares the stock sheets available on the machine bed.
// It is a pure settings node: its output is whatever the user edits.
type sheetUnit struct{}

func (*sheetUnit) Type() flow.NodeType { return flow.NodeSheet }

func (*sheetUnit) SettingsKeys() []string { return []string{"materials"} }

func (*sheetUnit) Evaluate(ec *Eval) bool {
	if _, ok := ec.Self()["materials"]; ok {
		return false
	}
	return ec.Publish(map[string]any{
		"materials": []any{defaultSheetMaterial()},
		FieldStatus: StatusReady,
	})
}

// defaultSheetMaterial is a standard 600x400 mm 18 mm board, matching
// the service-side defaults.
func defaultSheetMaterial() map[string]any {
	return map[string]any{
		"material_id": "sheet-1",
		"label":       "Sheet 1",
		"width":       600.0,
		"depth":       400.0,
		"thickness":   18.0,
		"x_position":  0.0,
		"y_position":  0.0,
	}
}
