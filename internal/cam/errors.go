package cam

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ServiceError is a non-2xx answer from the CAM service. The message
// is meant for display next to the node that issued the call.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("cam service returned %d: %s", e.Status, e.Message)
}

// IsServiceError reports whether err originated as a service-side
// rejection rather than a transport failure.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// errorDetail is the service's error envelope.
type errorDetail struct {
	Detail string `json:"detail"`
}

// responseError drains a failed response into a ServiceError, falling
// back to the raw body when it is not the usual JSON envelope.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var detail errorDetail
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return &ServiceError{Status: resp.StatusCode, Message: detail.Detail}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ServiceError{Status: resp.StatusCode, Message: msg}
}
