package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestSuccessResponse(t *testing.T) {
	resp := SuccessResponse(map[string]string{"key": "value"})
	if !resp.Success {
		t.Error("Expected Success to be true")
	}
	if resp.Error != "" {
		t.Errorf("Expected empty Error, got %q", resp.Error)
	}
	if resp.Timestamp == "" {
		t.Error("Expected Timestamp to be set")
	}
	if resp.Version != Version {
		t.Errorf("Version = %q, want %q", resp.Version, Version)
	}
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(errors.New("boom"))
	if resp.Success {
		t.Error("Expected Success to be false")
	}
	if resp.Error != "boom" {
		t.Errorf("Error = %q", resp.Error)
	}
	if resp.Data != nil {
		t.Errorf("Expected nil Data, got %v", resp.Data)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONData(&buf, map[string]int{"count": 3}); err != nil {
		t.Fatalf("WriteJSONData: %v", err)
	}

	var decoded Response
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Success {
		t.Error("Expected success envelope")
	}
	data, ok := decoded.Data.(map[string]any)
	if !ok || data["count"] != 3.0 {
		t.Errorf("Data = %v", decoded.Data)
	}
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONError(&buf, errors.New("bad input")); err != nil {
		t.Fatalf("WriteJSONError: %v", err)
	}

	var decoded Response
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Success || decoded.Error != "bad input" {
		t.Errorf("envelope = %+v", decoded)
	}
}
