package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"

	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// Error is a connector failure interpreted against the taxonomy
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a classified error
func New(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Retriable is derived from the kind only
func (e *Error) Retriable() bool {
	return IsRetriable(e.Kind)
}

// StatusError is returned by connectors when a rail answers with a non-success status
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rail responded with status %d", e.StatusCode)
}

// Rail response bodies can echo claim content, so only a short code-like
// value from a known field is copied into details.
var (
	errorCodeFields  = []string{"code", "error_code", "errorCode", "reason_code"}
	errorCodePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
)

// errorCode extracts a machine-readable code from a JSON error body
func errorCode(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, name := range errorCodeFields {
		switch v := fields[name].(type) {
		case string:
			if errorCodePattern.MatchString(v) {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

// FromError interprets any connector failure. It never returns nil for a non-nil err.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		details := map[string]any{
			"status_code": statusErr.StatusCode,
			"body_bytes":  len(statusErr.Body),
		}
		if code := errorCode(statusErr.Body); code != "" {
			details["error_code"] = code
		}
		return New(Classify(statusErr.StatusCode, statusErr.Body), err.Error(), details)
	}

	// Blocked calls never reached the network; retrying cannot change the decision
	var blocked *gate.BlockedError
	if errors.As(err, &blocked) {
		return New(KindUnknown, err.Error(), map[string]any{
			"hostname": blocked.Decision.Hostname,
			"reason":   blocked.Decision.Reason,
			"blocked":  true,
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, err.Error(), nil)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(KindTimeout, err.Error(), nil)
		}
		return New(KindTransport, err.Error(), nil)
	}

	return New(KindUnknown, err.Error(), nil)
}
