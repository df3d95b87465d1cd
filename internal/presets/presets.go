// Package presets loads named machining presets from a YAML file.
// Each entry is flat: id, name and material plus the machining
// settings fields inline.
package presets

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chis/pathdesigner/internal/cam"
)

type presetsFile struct {
	Presets []map[string]any `yaml:"presets"`
}

// Load parses the presets file at path. A missing file yields the
// built-in defaults rather than an error; a malformed file is an error.
func Load(path string) ([]cam.PresetItem, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return Parse(data)
}

// Parse decodes presets from raw YAML.
func Parse(data []byte) ([]cam.PresetItem, error) {
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	items := make([]cam.PresetItem, 0, len(file.Presets))
	for i, entry := range file.Presets {
		item := cam.PresetItem{Material: "unknown"}
		if v, ok := entry["id"].(string); ok {
			item.ID = v
		}
		if v, ok := entry["name"].(string); ok {
			item.Name = v
		}
		if v, ok := entry["material"].(string); ok {
			item.Material = v
		}
		if item.ID == "" || item.Name == "" {
			return nil, fmt.Errorf("preset %d is missing id or name", i)
		}

		settings := make(map[string]any, len(entry))
		for k, v := range entry {
			switch k {
			case "id", "name", "material":
			default:
				settings[k] = v
			}
		}
		// Settings fields carry snake_case names, so route them
		// through JSON where the struct tags live.
		raw, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("preset %s has unserializable settings: %w", item.ID, err)
		}
		if err := json.Unmarshal(raw, &item.Settings); err != nil {
			return nil, fmt.Errorf("preset %s has invalid settings: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Defaults returns the built-in presets served when no file is
// configured.
func Defaults() []cam.PresetItem {
	return []cam.PresetItem{
		{
			ID:       "plywood-18mm",
			Name:     "Plywood 18mm",
			Material: "plywood",
			Settings: cam.MachiningSettings{
				OperationType: "contour",
				Tool:          cam.Tool{Diameter: 6.35, Type: "endmill", Flutes: 2},
				FeedRate:      cam.FeedRate{XY: 50, Z: 20},
				JogSpeed:      150,
				SpindleSpeed:  18000,
				DepthPerPass:  6,
				TotalDepth:    18.5,
				Direction:     "climb",
				OffsetSide:    "outside",
				Tabs:          cam.TabSettings{Enabled: true, Width: 8, Height: 4, Count: 4},
			},
		},
		{
			ID:       "mdf-12mm",
			Name:     "MDF 12mm",
			Material: "mdf",
			Settings: cam.MachiningSettings{
				OperationType: "contour",
				Tool:          cam.Tool{Diameter: 6.35, Type: "endmill", Flutes: 2},
				FeedRate:      cam.FeedRate{XY: 60, Z: 25},
				JogSpeed:      150,
				SpindleSpeed:  16000,
				DepthPerPass:  6,
				TotalDepth:    12.5,
				Direction:     "climb",
				OffsetSide:    "outside",
				Tabs:          cam.TabSettings{Enabled: true, Width: 8, Height: 3, Count: 4},
			},
		},
	}
}
