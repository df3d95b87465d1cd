package nodes

import (
	"reflect"
	"strings"
	"testing"

	"github.com/chis/pathdesigner/internal/flow"
)

func TestMergeOfOneIsPassThrough(t *testing.T) {
	rt, svc := newTestRuntime(t)
	imp := mustAdd(t, rt, flow.NodeImport)
	merge := mustAdd(t, rt, flow.NodeMerge)

	mustUpload(t, rt, imp.ID, "bracket.step", "solid")
	mustConnect(t, rt, imp.ID, "brep", merge.ID, "in-0")
	rt.Wait()

	impData := nodeData(t, rt, imp.ID)
	mergeData := nodeData(t, rt, merge.ID)
	if !reflect.DeepEqual(mergeData, impData) {
		t.Errorf("merge of one is not a verbatim copy:\n got %v\nwant %v", mergeData, impData)
	}
	if svc.alignCalls != 0 {
		t.Errorf("merge of one issued %d align calls, want 0", svc.alignCalls)
	}

	// The copy tracks the source.
	mustUpload(t, rt, imp.ID, "revised.step", "solid-v2")
	if got, want := nodeData(t, rt, merge.ID)["file_id"], nodeData(t, rt, imp.ID)["file_id"]; got != want {
		t.Errorf("merge copy did not follow the source: %v != %v", got, want)
	}
}

func TestMergeAlignsTwoSourcesOnce(t *testing.T) {
	rt, svc := newTestRuntime(t)
	imp1 := mustAdd(t, rt, flow.NodeImport)
	imp2 := mustAdd(t, rt, flow.NodeImport)
	merge := mustAdd(t, rt, flow.NodeMerge)

	mustUpload(t, rt, imp1.ID, "left.step", "aa")
	mustUpload(t, rt, imp2.ID, "right.step", "bb")
	mustConnect(t, rt, imp1.ID, "brep", merge.ID, "in-0")
	mustConnect(t, rt, imp2.ID, "brep", merge.ID, "in-1")
	rt.Wait()

	data := nodeData(t, rt, merge.ID)
	if data[FieldStatus] != StatusReady {
		t.Fatalf("merge status = %v (error=%v)", data[FieldStatus], data[FieldError])
	}
	fileID, _ := data["file_id"].(string)
	if !strings.HasPrefix(fileID, "merged-") {
		t.Fatalf("merged file_id = %q", fileID)
	}
	if svc.alignCalls != 1 {
		t.Fatalf("align calls = %d, want 1", svc.alignCalls)
	}
	// The request carried the sorted id set.
	sent := svc.alignIDs[0]
	if len(sent) != 2 || sent[0] > sent[1] {
		t.Errorf("align ids not sorted: %v", sent)
	}

	// Moving a source to a different slot keeps the id set intact and
	// must not re-issue the call.
	mustConnect(t, rt, imp1.ID, "brep", merge.ID, "in-2")
	rt.Wait()
	if svc.alignCalls != 1 {
		t.Errorf("slot reshuffle re-issued align, calls = %d", svc.alignCalls)
	}
	if got := nodeData(t, rt, merge.ID)["file_id"]; got != fileID {
		t.Errorf("merged output changed on reshuffle: %v", got)
	}
}

func TestMergeWaitsForSourcesWithoutFiles(t *testing.T) {
	rt, svc := newTestRuntime(t)
	imp1 := mustAdd(t, rt, flow.NodeImport)
	imp2 := mustAdd(t, rt, flow.NodeImport)
	imp3 := mustAdd(t, rt, flow.NodeImport)
	merge := mustAdd(t, rt, flow.NodeMerge)

	mustUpload(t, rt, imp1.ID, "a.step", "aa")
	mustUpload(t, rt, imp2.ID, "b.step", "bb")
	mustConnect(t, rt, imp1.ID, "brep", merge.ID, "in-0")
	mustConnect(t, rt, imp2.ID, "brep", merge.ID, "in-1")
	rt.Wait()
	merged := nodeData(t, rt, merge.ID)["file_id"]

	// A third source with no upload yet parks the merge without
	// discarding the previous result or calling the service.
	mustConnect(t, rt, imp3.ID, "brep", merge.ID, "in-2")
	rt.Wait()
	data := nodeData(t, rt, merge.ID)
	if data[FieldStatus] != StatusIdle {
		t.Errorf("merge status with an empty source = %v, want idle", data[FieldStatus])
	}
	if data["file_id"] != merged {
		t.Errorf("previous merged output discarded: %v", data["file_id"])
	}
	if svc.alignCalls != 1 {
		t.Errorf("align calls = %d, want 1", svc.alignCalls)
	}

	mustUpload(t, rt, imp3.ID, "c.step", "cc")
	data = nodeData(t, rt, merge.ID)
	if data[FieldStatus] != StatusReady {
		t.Fatalf("merge status = %v (error=%v)", data[FieldStatus], data[FieldError])
	}
	if svc.alignCalls != 2 {
		t.Errorf("align calls = %d, want 2", svc.alignCalls)
	}
	if len(svc.alignIDs[1]) != 3 {
		t.Errorf("second align ids = %v, want 3 entries", svc.alignIDs[1])
	}
}

func TestMergeDropsStaleInFlightResponse(t *testing.T) {
	rt, svc := newTestRuntime(t)
	imp1 := mustAdd(t, rt, flow.NodeImport)
	imp2 := mustAdd(t, rt, flow.NodeImport)
	imp3 := mustAdd(t, rt, flow.NodeImport)
	merge := mustAdd(t, rt, flow.NodeMerge)

	mustUpload(t, rt, imp1.ID, "a.step", "aa")
	mustUpload(t, rt, imp2.ID, "b.step", "bb")
	mustUpload(t, rt, imp3.ID, "c.step", "cc")

	gate := make(chan struct{})
	svc.mu.Lock()
	svc.alignGate = gate
	svc.mu.Unlock()

	// First request (two sources) is held in flight while a third
	// source changes the key and issues a second request.
	mustConnect(t, rt, imp1.ID, "brep", merge.ID, "in-0")
	mustConnect(t, rt, imp2.ID, "brep", merge.ID, "in-1")
	mustConnect(t, rt, imp3.ID, "brep", merge.ID, "in-2")
	close(gate)
	rt.Wait()

	if svc.alignCalls != 2 {
		t.Fatalf("align calls = %d, want 2", svc.alignCalls)
	}
	// Whatever order the responses landed in, only the later-issued
	// request's result may be published.
	fileID, _ := nodeData(t, rt, merge.ID)["file_id"].(string)
	if !strings.Contains(fileID, "c.step") {
		t.Errorf("stale two-source response won: %q", fileID)
	}
}

func TestMergeErrorIsLocal(t *testing.T) {
	rt, svc := newTestRuntime(t)
	imp1 := mustAdd(t, rt, flow.NodeImport)
	imp2 := mustAdd(t, rt, flow.NodeImport)
	merge := mustAdd(t, rt, flow.NodeMerge)
	ops := mustAdd(t, rt, flow.NodeOperations)
	mustConnect(t, rt, merge.ID, "brep", ops.ID, "brep")

	svc.mu.Lock()
	svc.failAlign = true
	svc.mu.Unlock()

	// Wire first, upload second, so the merge never had a good result
	// to pass through.
	mustConnect(t, rt, imp1.ID, "brep", merge.ID, "in-0")
	mustConnect(t, rt, imp2.ID, "brep", merge.ID, "in-1")
	mustUpload(t, rt, imp1.ID, "a.step", "aa")
	mustUpload(t, rt, imp2.ID, "b.step", "bb")

	data := nodeData(t, rt, merge.ID)
	if data[FieldStatus] != StatusError {
		t.Fatalf("merge status = %v, want error", data[FieldStatus])
	}
	if msg, _ := data[FieldError].(string); !strings.Contains(msg, "No solids found") {
		t.Errorf("error message = %v", data[FieldError])
	}
	// The sources and the downstream consumer are unaffected.
	if got := nodeData(t, rt, imp1.ID)[FieldStatus]; got != StatusReady {
		t.Errorf("source status = %v", got)
	}
	if got := nodeData(t, rt, ops.ID)[FieldStatus]; got != StatusIdle {
		t.Errorf("downstream of a failed merge = %v, want idle", got)
	}
}
