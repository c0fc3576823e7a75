package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   Kind
	}{
		{name: "bad request", statusCode: 400, expected: KindValidation},
		{name: "unauthorized", statusCode: 401, expected: KindAuth},
		{name: "forbidden", statusCode: 403, expected: KindAuth},
		{name: "not found", statusCode: 404, expected: KindPayerReject},
		{name: "conflict", statusCode: 409, expected: KindDuplicate},
		{name: "unprocessable", statusCode: 422, expected: KindPayerReject},
		{name: "too many requests", statusCode: 429, expected: KindRateLimit},
		{name: "internal error", statusCode: 500, expected: KindTransport},
		{name: "service unavailable", statusCode: 503, expected: KindTransport},
		{name: "ok is not an error status", statusCode: 200, expected: KindUnknown},
		{name: "redirect", statusCode: 302, expected: KindUnknown},
		{name: "zero", statusCode: 0, expected: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.statusCode, []byte(`{"error":"x"}`)))
		})
	}
}

func TestIsRetriable(t *testing.T) {
	retriable := map[Kind]bool{
		KindTransport: true,
		KindTimeout:   true,
		KindRateLimit: true,
	}

	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			assert.Equal(t, retriable[kind], IsRetriable(kind))
		})
	}
}

func TestClassify_RetriabilityOfCommonStatuses(t *testing.T) {
	assert.Equal(t, KindValidation, Classify(400, nil))
	assert.False(t, IsRetriable(KindValidation))

	assert.Equal(t, KindTransport, Classify(503, nil))
	assert.True(t, IsRetriable(KindTransport))
}
