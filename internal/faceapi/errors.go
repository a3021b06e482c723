package faceapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTimeout is returned when a call does not complete within the client
// timeout or the caller's deadline.
var ErrTimeout = errors.New("face service request timed out")

// ServiceError is a non-success response from the face service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("face service returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("face service returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound
}

// newServiceError decodes the {"error":{"code","message"}} body, falling back
// to the raw body text.
func newServiceError(status int, body []byte) *ServiceError {
	svcErr := &ServiceError{StatusCode: status}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Error.Code != "" || envelope.Error.Message != "") {
		svcErr.Code = envelope.Error.Code
		svcErr.Message = envelope.Error.Message
		return svcErr
	}
	svcErr.Message = strings.TrimSpace(string(body))
	if svcErr.Message == "" {
		svcErr.Message = http.StatusText(status)
	}
	return svcErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
