package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Version is the application version, overridable at build time.
var Version = "dev"

// Response is a standardized JSON wrapper for all API and CLI output.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"` // RFC3339 format
	Version   string      `json:"version"`
}

// SuccessResponse creates a successful response with data.
func SuccessResponse(data interface{}) Response {
	return Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
	}
}

// ErrorResponse creates an error response.
func ErrorResponse(err error) Response {
	return Response{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
	}
}

// WriteJSON writes a Response as indented JSON to the given writer.
func WriteJSON(w io.Writer, response Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteJSONData wraps data in a success response and writes it.
func WriteJSONData(w io.Writer, data interface{}) error {
	return WriteJSON(w, SuccessResponse(data))
}

// WriteJSONError wraps an error in a response and writes it.
func WriteJSONError(w io.Writer, err error) error {
	return WriteJSON(w, ErrorResponse(err))
}
