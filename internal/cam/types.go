// Package cam is the HTTP client for the CAM geometry service. The
// editor treats the service as a set of request/response contracts
// keyed by opaque identifiers (file ids, object ids, material ids) and
// never inspects geometry itself.
package cam

// BoundingBox is an axis-aligned extent in millimeters.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Origin describes where a solid's machining origin sits relative to
// its geometry.
type Origin struct {
	Position    []float64 `json:"position"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
}

// FacesAnalysis summarizes which sides of a solid carry features.
type FacesAnalysis struct {
	TopFeatures      bool `json:"top_features"`
	BottomFeatures   bool `json:"bottom_features"`
	FreeformSurfaces bool `json:"freeform_surfaces"`
}

// BrepObject is one analyzed solid from an uploaded STEP file.
type BrepObject struct {
	ObjectID      string        `json:"object_id"`
	FileName      string        `json:"file_name"`
	BoundingBox   BoundingBox   `json:"bounding_box"`
	Thickness     float64       `json:"thickness"`
	Origin        Origin        `json:"origin"`
	Unit          string        `json:"unit"`
	IsClosed      bool          `json:"is_closed"`
	IsPlanar      bool          `json:"is_planar"`
	MachiningType string        `json:"machining_type"`
	FacesAnalysis FacesAnalysis `json:"faces_analysis"`
	Outline       [][]float64   `json:"outline"`
}

// BrepImportResult is returned by upload-step and align-parts.
type BrepImportResult struct {
	FileID      string       `json:"file_id"`
	Objects     []BrepObject `json:"objects"`
	ObjectCount int          `json:"object_count"`
}

// Contour is a closed or open 2D loop in sheet coordinates.
type Contour struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Coords [][]float64 `json:"coords"`
	Closed bool        `json:"closed"`
}

// OffsetApplied records the tool-radius compensation used during
// contour extraction.
type OffsetApplied struct {
	Distance float64 `json:"distance"`
	Side     string  `json:"side"`
}

// ContourExtractRequest selects one object of an uploaded file.
type ContourExtractRequest struct {
	FileID       string  `json:"file_id"`
	ObjectID     string  `json:"object_id"`
	ToolDiameter float64 `json:"tool_diameter"`
	OffsetSide   string  `json:"offset_side"`
}

// ContourExtractResult carries the extracted loops for one object.
type ContourExtractResult struct {
	ObjectID      string        `json:"object_id"`
	SliceZ        float64       `json:"slice_z"`
	Thickness     float64       `json:"thickness"`
	Contours      []Contour     `json:"contours"`
	OffsetApplied OffsetApplied `json:"offset_applied"`
}

// SheetMaterial is one stock sheet on the machine bed.
type SheetMaterial struct {
	MaterialID string  `json:"material_id"`
	Label      string  `json:"label"`
	Width      float64 `json:"width"`
	Depth      float64 `json:"depth"`
	Thickness  float64 `json:"thickness"`
	XPosition  float64 `json:"x_position"`
	YPosition  float64 `json:"y_position"`
}

// SheetSettings groups the sheets available for placement.
type SheetSettings struct {
	Materials []SheetMaterial `json:"materials"`
}

// Tool describes the cutter used by an operation.
type Tool struct {
	Diameter float64 `json:"diameter"`
	Type     string  `json:"type"`
	Flutes   int     `json:"flutes"`
}

// FeedRate in mm/s, split by axis group.
type FeedRate struct {
	XY float64 `json:"xy"`
	Z  float64 `json:"z"`
}

// TabSettings controls holding tabs on through cuts.
type TabSettings struct {
	Enabled bool    `json:"enabled"`
	Height  float64 `json:"height"`
	Width   float64 `json:"width"`
	Count   int     `json:"count"`
}

// MachiningSettings is the full parameter set for one operation.
type MachiningSettings struct {
	OperationType string      `json:"operation_type"`
	Tool          Tool        `json:"tool"`
	FeedRate      FeedRate    `json:"feed_rate"`
	JogSpeed      float64     `json:"jog_speed"`
	SpindleSpeed  int         `json:"spindle_speed"`
	DepthPerPass  float64     `json:"depth_per_pass"`
	TotalDepth    float64     `json:"total_depth"`
	Direction     string      `json:"direction"`
	OffsetSide    string      `json:"offset_side"`
	Tabs          TabSettings `json:"tabs"`
}

// PresetItem is a named per-material settings preset.
type PresetItem struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Material string            `json:"material"`
	Settings MachiningSettings `json:"settings"`
}

// ValidateSettingsRequest wraps settings for server-side validation.
type ValidateSettingsRequest struct {
	Settings MachiningSettings `json:"settings"`
}

// ValidateSettingsResponse echoes the settings with any warnings.
type ValidateSettingsResponse struct {
	Valid    bool              `json:"valid"`
	Settings MachiningSettings `json:"settings"`
	Warnings []string          `json:"warnings"`
}

// OperationGeometry is the cut geometry of a detected operation.
type OperationGeometry struct {
	Contours      []Contour     `json:"contours"`
	OffsetApplied OffsetApplied `json:"offset_applied"`
	Depth         float64       `json:"depth"`
}

// DetectedOperation is one machining operation proposed by the service.
type DetectedOperation struct {
	OperationID       string            `json:"operation_id"`
	ObjectID          string            `json:"object_id"`
	OperationType     string            `json:"operation_type"`
	Geometry          OperationGeometry `json:"geometry"`
	SuggestedSettings MachiningSettings `json:"suggested_settings"`
	Enabled           bool              `json:"enabled"`
}

// DetectOperationsRequest selects which objects to analyze.
type DetectOperationsRequest struct {
	FileID       string   `json:"file_id"`
	ObjectIDs    []string `json:"object_ids"`
	ToolDiameter float64  `json:"tool_diameter"`
	OffsetSide   string   `json:"offset_side"`
}

// OperationDetectResult is the detect-operations payload.
type OperationDetectResult struct {
	Operations []DetectedOperation `json:"operations"`
}

// OperationAssignment binds a detected operation to a sheet with
// user-edited settings and an execution order.
type OperationAssignment struct {
	OperationID string            `json:"operation_id"`
	MaterialID  string            `json:"material_id"`
	Enabled     bool              `json:"enabled"`
	Settings    MachiningSettings `json:"settings"`
	Order       int               `json:"order"`
}

// PostProcessorSettings parametrize machine-code generation.
type PostProcessorSettings struct {
	MachineName  string    `json:"machine_name"`
	OutputFormat string    `json:"output_format"`
	Unit         string    `json:"unit"`
	BedSize      []float64 `json:"bed_size"`
	SafeZ        float64   `json:"safe_z"`
	HomePosition []float64 `json:"home_position"`
	ToolNumber   int       `json:"tool_number"`
	WarmupPause  int       `json:"warmup_pause"`
}

// DefaultPostProcessorSettings matches the service's defaults for a
// ShopBot PRS-alpha table.
func DefaultPostProcessorSettings() PostProcessorSettings {
	return PostProcessorSettings{
		MachineName:  "ShopBot PRS-alpha 96-48",
		OutputFormat: "sbp",
		Unit:         "mm",
		BedSize:      []float64{1220, 2440},
		SafeZ:        38,
		HomePosition: []float64{0, 0},
		ToolNumber:   3,
		WarmupPause:  2,
	}
}

// TabSegment marks a holding tab inside a toolpath pass.
type TabSegment struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	ZTab       float64 `json:"z_tab"`
}

// ToolpathPass is one depth pass of an operation.
type ToolpathPass struct {
	PassNumber int          `json:"pass_number"`
	ZDepth     float64      `json:"z_depth"`
	Path       [][]float64  `json:"path"`
	Tabs       []TabSegment `json:"tabs"`
}

// Toolpath is the full pass sequence for one operation.
type Toolpath struct {
	OperationID string         `json:"operation_id"`
	Passes      []ToolpathPass `json:"passes"`
}

// PlacementItem positions one object on a sheet.
type PlacementItem struct {
	ObjectID   string  `json:"object_id"`
	MaterialID string  `json:"material_id"`
	SheetID    string  `json:"sheet_id,omitempty"`
	XOffset    float64 `json:"x_offset"`
	YOffset    float64 `json:"y_offset"`
	Rotation   int     `json:"rotation"`
}

// ToolpathGenRequest bundles everything the service needs to plan
// passes: assignments, the detected geometry they refer to, sheet
// dimensions and part placements.
type ToolpathGenRequest struct {
	Operations         []OperationAssignment  `json:"operations"`
	DetectedOperations OperationDetectResult  `json:"detected_operations"`
	Sheet              SheetSettings          `json:"sheet"`
	Placements         []PlacementItem        `json:"placements"`
	ObjectOrigins      map[string][]float64   `json:"object_origins"`
	BoundingBoxes      map[string]BoundingBox `json:"bounding_boxes"`
}

// ToolpathGenResult is the generate-toolpath payload.
type ToolpathGenResult struct {
	Toolpaths  []Toolpath `json:"toolpaths"`
	SheetWidth *float64   `json:"stock_width,omitempty"`
	SheetDepth *float64   `json:"stock_depth,omitempty"`
}

// CodeGenRequest asks the post processor to emit machine code.
type CodeGenRequest struct {
	ToolpathResult ToolpathGenResult     `json:"toolpath_result"`
	Operations     []OperationAssignment `json:"operations"`
	Sheet          SheetSettings         `json:"sheet"`
	PostProcessor  PostProcessorSettings `json:"post_processor"`
}

// OutputResult is the generated program.
type OutputResult struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
}

// AlignPartsRequest merges the listed uploads into one aligned file.
// Callers sort the ids so equal sets produce equal requests.
type AlignPartsRequest struct {
	FileIDs []string `json:"file_ids"`
}

// AutoNestRequest asks for a bottom-left-fill distribution of parts
// across the available sheets.
type AutoNestRequest struct {
	Objects      []BrepObject  `json:"objects"`
	Sheet        SheetSettings `json:"sheet"`
	ToolDiameter float64       `json:"tool_diameter"`
	Clearance    float64       `json:"clearance"`
}

// AutoNestResult is the auto-nesting payload.
type AutoNestResult struct {
	Placements []PlacementItem `json:"placements"`
	SheetCount int             `json:"sheet_count"`
	Warnings   []string        `json:"warnings"`
}

// ValidatePlacementRequest checks placements against sheet bounds and
// part collisions.
type ValidatePlacementRequest struct {
	Placements    []PlacementItem        `json:"placements"`
	Sheet         SheetSettings          `json:"sheet"`
	BoundingBoxes map[string]BoundingBox `json:"bounding_boxes"`
}

// ValidatePlacementResponse lists any bound or collision warnings.
type ValidatePlacementResponse struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
}

// HealthStatus is the service liveness payload.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
