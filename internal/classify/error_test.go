package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFromError(t *testing.T) {
	refused := &url.Error{Op: "Post", URL: "https://sandbox.payer.example/claims", Err: &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: errors.New("connection refused"),
	}}

	tests := []struct {
		name      string
		err       error
		kind      Kind
		retriable bool
	}{
		{
			name:      "status 400",
			err:       &StatusError{StatusCode: 400, Body: []byte("missing NPI")},
			kind:      KindValidation,
			retriable: false,
		},
		{
			name:      "wrapped status 503",
			err:       fmt.Errorf("submit claim: %w", &StatusError{StatusCode: 503}),
			kind:      KindTransport,
			retriable: true,
		},
		{
			name:      "context deadline",
			err:       fmt.Errorf("poll: %w", context.DeadlineExceeded),
			kind:      KindTimeout,
			retriable: true,
		},
		{
			name:      "net timeout",
			err:       &url.Error{Op: "Get", URL: "https://sandbox.payer.example", Err: timeoutErr{}},
			kind:      KindTimeout,
			retriable: true,
		},
		{
			name:      "connection refused",
			err:       refused,
			kind:      KindTransport,
			retriable: true,
		},
		{
			name:      "already classified",
			err:       fmt.Errorf("wrapped: %w", New(KindDuplicate, "claim exists", nil)),
			kind:      KindDuplicate,
			retriable: false,
		},
		{
			name: "gate block",
			err: &gate.BlockedError{Decision: gate.Decision{
				Hostname: "api.real-insurer.example",
				Reason:   "hostname not in allowlist",
			}},
			kind:      KindUnknown,
			retriable: false,
		},
		{
			name:      "anything else",
			err:       errors.New("boom"),
			kind:      KindUnknown,
			retriable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.retriable, got.Retriable())
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}

func TestFromError_StatusDetails(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "code field is kept",
			body:     `{"code":"NPI_INVALID","message":"NPI for Jane Doe, DOB 1980-02-01 is invalid"}`,
			wantCode: "NPI_INVALID",
		},
		{
			name:     "numeric code",
			body:     `{"error_code":4021}`,
			wantCode: "4021",
		},
		{
			name: "free text code is dropped",
			body: `{"code":"patient Jane Doe not eligible"}`,
		},
		{
			name: "plain text body",
			body: "member 12345 Jane Doe not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(&StatusError{StatusCode: 422, Body: []byte(tt.body)})
			require.NotNil(t, got)
			assert.Equal(t, KindPayerReject, got.Kind)
			assert.Equal(t, 422, got.Details["status_code"])
			assert.Equal(t, len(tt.body), got.Details["body_bytes"])
			assert.NotContains(t, got.Details, "body")

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, got.Details["error_code"])
			} else {
				assert.NotContains(t, got.Details, "error_code")
			}
			for _, v := range got.Details {
				assert.NotContains(t, fmt.Sprint(v), "Jane Doe")
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := New(KindRateLimit, "slow down", nil)
	assert.Equal(t, "RATE_LIMIT: slow down", err.Error())
}
