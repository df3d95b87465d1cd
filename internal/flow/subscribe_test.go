package flow

import (
	"testing"
)

func TestSubscriptionMemoizesExtractedFields(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp", NodeImport)
	addNode(t, s, "ops", NodeOperations)
	if _, err := s.Connect("imp", "brep", "ops", "brep"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sub := Subscribe(s, "ops", "brep", Fields("file_id", "status"))

	// Nothing published yet.
	_, ok, changed := sub.Poll()
	if ok {
		t.Error("empty upstream data should not extract")
	}
	if !changed {
		t.Error("first poll always reports a change")
	}

	s.UpdateNodeData("imp", map[string]any{"file_id": "f1", "status": "ready", "object_count": 3})
	v, ok, changed := sub.Poll()
	if !ok || !changed {
		t.Fatalf("poll after publish: ok=%v changed=%v, want true/true", ok, changed)
	}
	if v["file_id"] != "f1" {
		t.Errorf("file_id = %v, want f1", v["file_id"])
	}
	if _, present := v["object_count"]; present {
		t.Error("extractor should strip fields it does not select")
	}

	// Changing an unselected field must not wake the subscriber even though
	// the store hands out a fresh map on every read.
	s.UpdateNodeData("imp", map[string]any{"object_count": 4})
	if _, _, changed := sub.Poll(); changed {
		t.Error("change to unselected field should be invisible")
	}

	s.UpdateNodeData("imp", map[string]any{"status": "error"})
	if _, _, changed := sub.Poll(); !changed {
		t.Error("change to selected field should be visible")
	}
}

func TestSubscriptionRepeatedPollsStable(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp", NodeImport)
	addNode(t, s, "ops", NodeOperations)
	s.Connect("imp", "brep", "ops", "brep")
	s.UpdateNodeData("imp", map[string]any{"file_id": "f1"})

	sub := Subscribe(s, "ops", "brep", WholeData)
	sub.Poll()
	for i := 0; i < 3; i++ {
		if _, _, changed := sub.Poll(); changed {
			t.Fatalf("poll %d reported a change with no writes", i)
		}
	}
}

func TestSubscriptionTracksRewiring(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp1", NodeImport)
	addNode(t, s, "imp2", NodeImport)
	addNode(t, s, "ops", NodeOperations)
	s.UpdateNodeData("imp1", map[string]any{"file_id": "f1"})
	s.UpdateNodeData("imp2", map[string]any{"file_id": "f2"})

	sub := Subscribe(s, "ops", "brep", Fields("file_id"))
	sub.Poll()

	s.Connect("imp1", "brep", "ops", "brep")
	v, ok, changed := sub.Poll()
	if !ok || !changed || v["file_id"] != "f1" {
		t.Fatalf("after first connect: ok=%v changed=%v v=%v", ok, changed, v)
	}

	// Reconnecting to another source supersedes the fixed port.
	s.Connect("imp2", "brep", "ops", "brep")
	v, _, changed = sub.Poll()
	if !changed || v["file_id"] != "f2" {
		t.Errorf("after rewire: changed=%v file_id=%v, want true/f2", changed, v["file_id"])
	}

	// Disconnect flips ok and reports one change, then settles.
	edge, _ := s.EdgeInto("ops", "brep")
	s.Disconnect(edge.ID)
	_, ok, changed = sub.Poll()
	if ok || !changed {
		t.Errorf("after disconnect: ok=%v changed=%v, want false/true", ok, changed)
	}
	if _, _, changed := sub.Poll(); changed {
		t.Error("settled disconnected state should not keep reporting changes")
	}
}

func TestSubscriptionCompositeValues(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp", NodeImport)
	addNode(t, s, "ops", NodeOperations)
	s.Connect("imp", "brep", "ops", "brep")

	sub := Subscribe(s, "ops", "brep", Fields("objects"))
	sub.Poll()

	objects := []any{map[string]any{"object_id": "o1"}}
	s.UpdateNodeData("imp", map[string]any{"objects": objects})
	if _, _, changed := sub.Poll(); !changed {
		t.Fatal("new slice value should report a change")
	}

	// Writing an equal slice is a store-level no-op, so the extracted
	// value stays stable even though slices are compared structurally.
	s.UpdateNodeData("imp", map[string]any{"objects": []any{map[string]any{"object_id": "o1"}}})
	if _, _, changed := sub.Poll(); changed {
		t.Error("structurally equal slice should not report a change")
	}

	s.UpdateNodeData("imp", map[string]any{"objects": []any{map[string]any{"object_id": "o2"}}})
	if _, _, changed := sub.Poll(); !changed {
		t.Error("different slice contents should report a change")
	}
}

func TestManySubscriptionCompactsSlots(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp1", NodeImport)
	addNode(t, s, "imp2", NodeImport)
	addNode(t, s, "imp3", NodeImport)
	addNode(t, s, "merge", NodeMerge)

	s.UpdateNodeData("imp1", map[string]any{"file_id": "f1"})
	s.UpdateNodeData("imp3", map[string]any{"file_id": "f3"})

	// Slots 0 and 2 connected, slot 1 empty; imp2 never publishes.
	s.Connect("imp1", "brep", "merge", "in-0")
	s.Connect("imp3", "brep", "merge", "in-2")

	sub := SubscribeMany(s, "merge", "in", Fields("file_id"))
	values, changed := sub.Poll()
	if !changed {
		t.Fatal("first poll always reports a change")
	}
	if len(values) != 2 {
		t.Fatalf("values = %d entries, want 2 (empty slot compacted)", len(values))
	}
	if values[0]["file_id"] != "f1" || values[1]["file_id"] != "f3" {
		t.Errorf("values out of slot order: %v", values)
	}
	if sub.Connected() != 2 {
		t.Errorf("Connected = %d, want 2", sub.Connected())
	}

	// A connected source with no extractable data is skipped too.
	s.Connect("imp2", "brep", "merge", "in-1")
	values, changed = sub.Poll()
	if changed {
		t.Error("unextractable slot should not change the fan-in value")
	}
	if sub.Connected() != 3 {
		t.Errorf("Connected = %d, want 3", sub.Connected())
	}

	s.UpdateNodeData("imp2", map[string]any{"file_id": "f2"})
	values, changed = sub.Poll()
	if !changed || len(values) != 3 {
		t.Fatalf("after imp2 publishes: changed=%v len=%d, want true/3", changed, len(values))
	}
	want := []string{"f1", "f2", "f3"}
	for i, w := range want {
		if values[i]["file_id"] != w {
			t.Errorf("values[%d].file_id = %v, want %s", i, values[i]["file_id"], w)
		}
	}
}

func TestManySubscriptionElementwiseEquality(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "imp1", NodeImport)
	addNode(t, s, "imp2", NodeImport)
	addNode(t, s, "merge", NodeMerge)

	s.UpdateNodeData("imp1", map[string]any{"file_id": "f1"})
	s.UpdateNodeData("imp2", map[string]any{"file_id": "f2"})
	s.Connect("imp1", "brep", "merge", "in-0")
	s.Connect("imp2", "brep", "merge", "in-1")

	sub := SubscribeMany(s, "merge", "in", Fields("file_id"))
	sub.Poll()

	// Upstream writes that do not touch extracted fields stay invisible
	// even though every read rebuilds the slice.
	s.UpdateNodeData("imp1", map[string]any{"status": "ready"})
	if _, changed := sub.Poll(); changed {
		t.Error("unselected upstream field should not change the fan-in value")
	}

	s.UpdateNodeData("imp2", map[string]any{"file_id": "f2b"})
	values, changed := sub.Poll()
	if !changed || values[1]["file_id"] != "f2b" {
		t.Errorf("element change missed: changed=%v values=%v", changed, values)
	}
}
