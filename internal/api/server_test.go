package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/events"
	"github.com/chis/pathdesigner/internal/flow"
	"github.com/chis/pathdesigner/internal/layout"
	"github.com/chis/pathdesigner/internal/logging"
	"github.com/chis/pathdesigner/internal/nodes"
	"github.com/chis/pathdesigner/internal/presets"
	"github.com/chis/pathdesigner/internal/storage"
)

// stubService answers CAM calls with canned payloads so handler tests
// never leave the process.
type stubService struct{}

func (stubService) UploadStep(_ context.Context, filename string, content io.Reader) (cam.BrepImportResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return cam.BrepImportResult{}, err
	}
	id := fmt.Sprintf("file-%s-%d", filename, len(data))
	return cam.BrepImportResult{
		FileID:      id,
		Objects:     []cam.BrepObject{{ObjectID: id + "-obj-0", FileName: filename, Thickness: 18}},
		ObjectCount: 1,
	}, nil
}

func (stubService) AlignParts(_ context.Context, fileIDs []string) (cam.BrepImportResult, error) {
	return cam.BrepImportResult{FileID: "merged-" + strings.Join(fileIDs, "+")}, nil
}

func (stubService) DetectOperations(_ context.Context, req cam.DetectOperationsRequest) (cam.OperationDetectResult, error) {
	ops := make([]cam.DetectedOperation, len(req.ObjectIDs))
	for i, id := range req.ObjectIDs {
		ops[i] = cam.DetectedOperation{OperationID: "op-" + id, ObjectID: id, Enabled: true}
	}
	return cam.OperationDetectResult{Operations: ops}, nil
}

func (stubService) ExtractContours(_ context.Context, req cam.ContourExtractRequest) (cam.ContourExtractResult, error) {
	return cam.ContourExtractResult{
		ObjectID:      req.ObjectID,
		Thickness:     18,
		Contours:      []cam.Contour{{ID: "c-0", Type: "outer", Closed: true}},
		OffsetApplied: cam.OffsetApplied{Distance: req.ToolDiameter / 2, Side: req.OffsetSide},
	}, nil
}

func (stubService) ValidateSettings(_ context.Context, settings cam.MachiningSettings) (cam.ValidateSettingsResponse, error) {
	resp := cam.ValidateSettingsResponse{Valid: true, Settings: settings}
	if settings.SpindleSpeed == 0 {
		resp.Valid = false
		resp.Warnings = []string{"spindle speed is unset"}
	}
	return resp, nil
}

func (stubService) GenerateToolpath(context.Context, cam.ToolpathGenRequest) (cam.ToolpathGenResult, error) {
	return cam.ToolpathGenResult{}, nil
}

func (stubService) GenerateCode(context.Context, cam.CodeGenRequest) (cam.OutputResult, error) {
	return cam.OutputResult{Code: "SB3\n", Filename: "out.sbp", Format: "sbp"}, nil
}

func (stubService) AutoNest(context.Context, cam.AutoNestRequest) (cam.AutoNestResult, error) {
	return cam.AutoNestResult{SheetCount: 1}, nil
}

func (stubService) ValidatePlacement(context.Context, cam.ValidatePlacementRequest) (cam.ValidatePlacementResponse, error) {
	return cam.ValidatePlacementResponse{Valid: true}, nil
}

func newTestServer(t *testing.T) (*Server, *nodes.Runtime) {
	t.Helper()

	log := logging.New()
	log.SetOutput(io.Discard)

	bus := events.NewBus()
	store := flow.NewStore(bus)
	rt := nodes.NewRuntime(store, stubService{}, nil, log, layout.DefaultOptions())

	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewServer(Config{
		ListenAddr: ":0",
		Runtime:    rt,
		Storage:    db,
		EventBus:   bus,
		Presets:    presets.Defaults(),
		Logger:     log,
	})
	return s, rt
}

// envelope mirrors the output.Response wire shape for decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func addNodeHTTP(t *testing.T, s *Server, nodeType string) string {
	t.Helper()

	rec, env := doJSON(t, s, http.MethodPost, "/api/nodes", map[string]any{
		"type":     nodeType,
		"position": map[string]float64{"x": 0, "y": 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add %s node: status %d body %s", nodeType, rec.Code, rec.Body.String())
	}
	var node flow.Node
	if err := json.Unmarshal(env.Data, &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	return node.ID
}

func uploadHTTP(t *testing.T, s *Server, rt *nodes.Runtime, nodeID, filename string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprintf(part, "ISO-10303-21; %s", filename)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/nodes/"+nodeID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: status %d body %s", rec.Code, rec.Body.String())
	}
	rt.Wait()
}

func graphHTTP(t *testing.T, s *Server) nodes.GraphSnapshot {
	t.Helper()

	rec, env := doJSON(t, s, http.MethodGet, "/api/graph", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get graph: status %d", rec.Code)
	}
	var g nodes.GraphSnapshot
	if err := json.Unmarshal(env.Data, &g); err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	return g
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got error %q", env.Error)
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", data["status"])
	}
}

func TestPresetsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodGet, "/api/presets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var items []cam.PresetItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode presets: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected built-in presets")
	}
}

func TestNodeLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	id := addNodeHTTP(t, s, "sheet")

	// Editable field goes through.
	rec, _ := doJSON(t, s, http.MethodPatch, "/api/nodes/"+id+"/settings", map[string]any{
		"materials": []map[string]any{{"material_id": "big-board", "width": 2440.0, "depth": 1220.0, "thickness": 18.0}},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update settings: status %d body %s", rec.Code, rec.Body.String())
	}

	// Output fields are not writable from outside.
	rec, env := doJSON(t, s, http.MethodPatch, "/api/nodes/"+id+"/settings", map[string]any{
		"status": "ready",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("writing output field: status %d, want 400", rec.Code)
	}
	if env.Success {
		t.Error("expected error envelope")
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/nodes/"+id+"/position", map[string]float64{"x": 300, "y": 40})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("move: status %d", rec.Code)
	}

	g := graphHTTP(t, s)
	if len(g.Nodes) != 1 {
		t.Fatalf("graph has %d nodes, want 1", len(g.Nodes))
	}
	if g.Nodes[0].Position.X != 300 {
		t.Errorf("position.x = %v, want 300", g.Nodes[0].Position.X)
	}
	materials, _ := g.Nodes[0].Data["materials"].([]any)
	if len(materials) != 1 {
		t.Fatalf("materials = %v", g.Nodes[0].Data["materials"])
	}
	if m, _ := materials[0].(map[string]any); m["material_id"] != "big-board" {
		t.Errorf("material = %v, want the edited board", materials[0])
	}

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/nodes/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if g := graphHTTP(t, s); len(g.Nodes) != 0 {
		t.Fatalf("graph still has %d nodes after delete", len(g.Nodes))
	}
}

func TestConnectAndCycleRejection(t *testing.T) {
	s, _ := newTestServer(t)

	dam1 := addNodeHTTP(t, s, "dam")
	dam2 := addNodeHTTP(t, s, "dam")

	rec, env := doJSON(t, s, http.MethodPost, "/api/edges", map[string]string{
		"source": dam1, "sourceHandle": "out",
		"target": dam2, "targetHandle": "in",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect: status %d body %s", rec.Code, rec.Body.String())
	}
	var edge flow.Edge
	if err := json.Unmarshal(env.Data, &edge); err != nil {
		t.Fatalf("decode edge: %v", err)
	}

	// Closing the loop must be refused.
	rec, _ = doJSON(t, s, http.MethodPost, "/api/edges", map[string]string{
		"source": dam2, "sourceHandle": "out",
		"target": dam1, "targetHandle": "in",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("cycle connect: status %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/edges/"+edge.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disconnect: status %d", rec.Code)
	}
	if g := graphHTTP(t, s); len(g.Edges) != 0 {
		t.Fatalf("graph still has %d edges", len(g.Edges))
	}
}

func TestUploadEndpoint(t *testing.T) {
	s, rt := newTestServer(t)

	imp := addNodeHTTP(t, s, "import")
	uploadHTTP(t, s, rt, imp, "bracket.step")

	g := graphHTTP(t, s)
	fileID, _ := g.Nodes[0].Data["file_id"].(string)
	if !strings.Contains(fileID, "bracket.step") {
		t.Errorf("file_id = %q, want it derived from the upload", fileID)
	}
	if g.Nodes[0].Data["status"] != "ready" {
		t.Errorf("status = %v, want ready", g.Nodes[0].Data["status"])
	}
}

func TestUploadMissingFileField(t *testing.T) {
	s, _ := newTestServer(t)

	imp := addNodeHTTP(t, s, "import")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "not-a-file")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/nodes/"+imp+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestContourPreviewEndpoint(t *testing.T) {
	s, rt := newTestServer(t)

	imp := addNodeHTTP(t, s, "import")
	uploadHTTP(t, s, rt, imp, "bracket.step")

	g := graphHTTP(t, s)
	objects, _ := g.Nodes[0].Data["objects"].([]any)
	if len(objects) == 0 {
		t.Fatal("no objects after upload")
	}
	obj, _ := objects[0].(map[string]any)
	objID, _ := obj["object_id"].(string)

	rec, env := doJSON(t, s, http.MethodPost, "/api/nodes/"+imp+"/contours", map[string]any{
		"object_id": objID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var result cam.ContourExtractResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ObjectID != objID {
		t.Errorf("object id = %s, want %s", result.ObjectID, objID)
	}
	if len(result.Contours) == 0 {
		t.Error("expected contours in the preview")
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/nodes/"+imp+"/contours", map[string]any{
		"object_id": "bogus",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown object: status = %d, want 404", rec.Code)
	}
}

func TestValidateSettingsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPost, "/api/settings/validate", cam.MachiningSettings{
		OperationType: "contour",
		SpindleSpeed:  12000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp cam.ValidateSettingsResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Errorf("valid settings flagged: %v", resp.Warnings)
	}

	// A failing check is still a 200; the verdict lives in the body.
	rec, env = doJSON(t, s, http.MethodPost, "/api/settings/validate", cam.MachiningSettings{
		OperationType: "contour",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid || len(resp.Warnings) == 0 {
		t.Errorf("expected warnings for incomplete settings, got %+v", resp)
	}
}

func TestRuntimeErrorsMapToNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPost, "/api/nodes/no-such-node/release", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Success {
		t.Error("expected error envelope")
	}
}

func TestAutoLayoutEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	imp := addNodeHTTP(t, s, "import")
	dam := addNodeHTTP(t, s, "dam")
	doJSON(t, s, http.MethodPost, "/api/edges", map[string]string{
		"source": imp, "sourceHandle": "brep",
		"target": dam, "targetHandle": "in",
	})

	rec, env := doJSON(t, s, http.MethodPost, "/api/layout", map[string]string{"direction": "left-to-right"})
	if rec.Code != http.StatusOK {
		t.Fatalf("layout: status %d body %s", rec.Code, rec.Body.String())
	}
	var g nodes.GraphSnapshot
	if err := json.Unmarshal(env.Data, &g); err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	positions := make(map[string]flow.Position)
	for _, n := range g.Nodes {
		positions[n.ID] = n.Position
	}
	if positions[dam].X <= positions[imp].X {
		t.Errorf("LR layout: dam at %v should sit right of import at %v", positions[dam], positions[imp])
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/layout", map[string]string{"direction": "sideways"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: status %d, want 400", rec.Code)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s, rt := newTestServer(t)

	imp := addNodeHTTP(t, s, "import")
	dam := addNodeHTTP(t, s, "dam")
	doJSON(t, s, http.MethodPost, "/api/edges", map[string]string{
		"source": imp, "sourceHandle": "brep",
		"target": dam, "targetHandle": "in",
	})
	uploadHTTP(t, s, rt, imp, "panel.step")

	// Save.
	rec, env := doJSON(t, s, http.MethodPost, "/api/projects", map[string]string{"name": "workbench"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d body %s", rec.Code, rec.Body.String())
	}
	var saved map[string]string
	if err := json.Unmarshal(env.Data, &saved); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	projectID := saved["id"]
	if projectID == "" {
		t.Fatal("save returned no project id")
	}

	// Listing shows it.
	rec, env = doJSON(t, s, http.MethodGet, "/api/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var summaries []storage.ProjectSummary
	if err := json.Unmarshal(env.Data, &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "workbench" || summaries[0].NodeCount != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}

	// Wipe the live graph, then load the project back.
	doJSON(t, s, http.MethodDelete, "/api/nodes/"+dam, nil)
	doJSON(t, s, http.MethodDelete, "/api/nodes/"+imp, nil)
	if g := graphHTTP(t, s); len(g.Nodes) != 0 {
		t.Fatal("expected empty graph before load")
	}

	rec, env = doJSON(t, s, http.MethodPost, "/api/projects/"+projectID+"/load", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load: status %d body %s", rec.Code, rec.Body.String())
	}
	rt.Wait()

	var g nodes.GraphSnapshot
	if err := json.Unmarshal(env.Data, &g); err != nil {
		t.Fatalf("decode loaded graph: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("loaded graph has %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}

	// Rename and delete.
	rec, _ = doJSON(t, s, http.MethodPatch, "/api/projects/"+projectID, map[string]string{"name": "bench v2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodDelete, "/api/projects/"+projectID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodGet, "/api/projects/"+projectID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestProjectNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/projects/missing/load", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("load missing: status %d, want 404", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodPatch, "/api/projects/missing", map[string]string{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("rename missing: status %d, want 404", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodDelete, "/api/projects/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/graph", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Error("allow-methods should include PATCH")
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "test-correlation-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "test-correlation-42" {
		t.Errorf("correlation id = %q, want echo", got)
	}

	// A missing id gets generated.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a generated correlation id")
	}
}
