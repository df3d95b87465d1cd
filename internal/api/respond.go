package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/output"
)

// RespondError writes an error response with the specified HTTP status
// code.
func RespondError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	output.WriteJSONError(w, err)
}

// RespondBadRequest writes a 400 Bad Request error response.
func RespondBadRequest(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusBadRequest, err)
}

// RespondNotFound writes a 404 Not Found error response.
func RespondNotFound(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusNotFound, err)
}

// RespondInternalError writes a 500 Internal Server Error response.
func RespondInternalError(w http.ResponseWriter, err error) {
	RespondError(w, http.StatusInternalServerError, err)
}

// RespondSuccess writes a 200 OK response with data.
func RespondSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	output.WriteJSONData(w, data)
}

// RespondNoContent writes a 204 No Content response.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondRuntimeError maps runtime errors to HTTP status codes: CAM
// service rejections keep their upstream status, unknown ids map to
// 404, everything else is a bad request.
func RespondRuntimeError(w http.ResponseWriter, err error) {
	var svcErr *cam.ServiceError
	switch {
	case errors.As(err, &svcErr):
		RespondError(w, svcErr.Status, err)
	case strings.Contains(err.Error(), "not found"):
		RespondNotFound(w, err)
	default:
		RespondBadRequest(w, err)
	}
}
