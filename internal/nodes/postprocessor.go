package nodes

import (
	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
)

// postProcessorUnit configures machine-code generation. Like the sheet
// node it only publishes settings; defaults appear on first evaluation
// and the user edits from there.
type postProcessorUnit struct{}

func (*postProcessorUnit) Type() flow.NodeType { return flow.NodePostProcessor }

func (*postProcessorUnit) SettingsKeys() []string {
	return []string{
		"machine_name", "output_format", "unit", "bed_size",
		"safe_z", "home_position", "tool_number", "warmup_pause",
	}
}

func (*postProcessorUnit) Evaluate(ec *Eval) bool {
	if _, ok := ec.Self()["machine_name"]; ok {
		return false
	}
	fields, err := asFields(cam.DefaultPostProcessorSettings())
	if err != nil {
		return ec.Fail(err.Error())
	}
	fields[FieldStatus] = StatusReady
	return ec.Publish(fields)
}
