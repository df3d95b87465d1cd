// Package nodes implements the behavior of each editor node type and
// the runtime that propagates data changes between them. Every node
// reads upstream values through memoized subscriptions and writes only
// its own data slot; external geometry work goes through the Service
// interface and resolves asynchronously with stale-response guards.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/flow"
)

// Data field names shared by all node types.
const (
	FieldStatus = "status"
	FieldError  = "error"
)

// Node status values published under FieldStatus.
const (
	StatusIdle    = "idle"
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusError   = "error"
)

// Service is the slice of the CAM client the node units call. It is an
// interface so tests can count and stub calls.
type Service interface {
	UploadStep(ctx context.Context, filename string, content io.Reader) (cam.BrepImportResult, error)
	AlignParts(ctx context.Context, fileIDs []string) (cam.BrepImportResult, error)
	ExtractContours(ctx context.Context, req cam.ContourExtractRequest) (cam.ContourExtractResult, error)
	DetectOperations(ctx context.Context, req cam.DetectOperationsRequest) (cam.OperationDetectResult, error)
	ValidateSettings(ctx context.Context, settings cam.MachiningSettings) (cam.ValidateSettingsResponse, error)
	GenerateToolpath(ctx context.Context, req cam.ToolpathGenRequest) (cam.ToolpathGenResult, error)
	GenerateCode(ctx context.Context, req cam.CodeGenRequest) (cam.OutputResult, error)
	AutoNest(ctx context.Context, req cam.AutoNestRequest) (cam.AutoNestResult, error)
	ValidatePlacement(ctx context.Context, req cam.ValidatePlacementRequest) (cam.ValidatePlacementResponse, error)
}

// Unit is one node's behavior. Evaluate polls the unit's subscriptions
// and publishes derived fields; it reports whether anything it wrote
// actually changed, which drives the propagation loop to a fixpoint.
type Unit interface {
	Type() flow.NodeType
	// SettingsKeys lists the data fields a user may edit directly.
	// These are also the only fields persisted with a project.
	SettingsKeys() []string
	Evaluate(ec *Eval) bool
}

// newUnit builds the behavior for a freshly added or restored node.
func newUnit(n flow.Node, store *flow.Store) (Unit, error) {
	switch n.Type {
	case flow.NodeImport:
		return &importUnit{}, nil
	case flow.NodeSheet:
		return &sheetUnit{}, nil
	case flow.NodePlacement:
		return newPlacementUnit(n.ID, store), nil
	case flow.NodeOperations:
		return newOperationsUnit(n.ID, store), nil
	case flow.NodePostProcessor:
		return &postProcessorUnit{}, nil
	case flow.NodeToolpath:
		return newToolpathUnit(n.ID, store), nil
	case flow.NodeExport:
		return newExportUnit(n.ID, store), nil
	case flow.NodeDam:
		return newDamUnit(n.ID, store), nil
	case flow.NodeMerge:
		return newMergeUnit(n.ID, store), nil
	}
	return nil, fmt.Errorf("no behavior for node type %q", n.Type)
}

// asFields flattens a typed service payload into the plain map form
// node data requires. Round-tripping through JSON keeps published
// values free of live references into client structs.
func asFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %T: %w", v, err)
	}
	return fields, nil
}

// decodeAs rebuilds a typed value from published map data.
func decodeAs[T any](v any) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode into %T: %w", out, err)
	}
	return out, nil
}

// asList is asFields for slice-valued payloads.
func asList(v any) ([]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten %T: %w", v, err)
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to flatten %T: %w", v, err)
	}
	return list, nil
}

func floatOr(v any, def float64) float64 {
	if f, ok := v.(float64); ok && f > 0 {
		return f
	}
	return def
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// snapshot is the canonical serialization used for change detection in
// Dam and for async request keys. encoding/json writes map keys in
// sorted order, so structurally equal values produce equal strings.
func snapshot(m map[string]any) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("unserializable:%v", m)
	}
	return string(raw)
}

// fieldKeys returns the key set of a published value, for tracking
// which copied fields a pass-through node must later remove.
func fieldKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// missingKeys lists entries of prev that next no longer contains.
func missingKeys(prev []string, next map[string]any) []string {
	var gone []string
	for _, k := range prev {
		if _, ok := next[k]; !ok {
			gone = append(gone, k)
		}
	}
	return gone
}
