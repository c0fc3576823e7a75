package rail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearinghouse_Submit(t *testing.T) {
	var received clearinghouseSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/claims", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "SUB01", r.Header.Get("X-Submitter-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"transaction_id":"TX-42","status":"received"}`))
	}))
	defer srv.Close()

	conn, err := NewClearinghouseConnector(Credentials{BaseURL: srv.URL, APIKey: "secret", SubmitterID: "SUB01"}, loopbackGate(t))
	require.NoError(t, err)

	res, err := conn.Submit(context.Background(), sampleClaim())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "TX-42", res.ExternalID)
	assert.Equal(t, domain.ClaimStatusSubmitted, res.Status)

	assert.Equal(t, "claim-1", received.ClaimControlNumber)
	assert.Equal(t, "2026-03-14", received.ServiceDate)
	assert.Equal(t, int64(15000), received.TotalChargeCents)
	require.Len(t, received.ServiceLines, 1)
	assert.Equal(t, "99213", received.ServiceLines[0].ProcedureCode)
}

func TestClearinghouse_SubmitErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   classify.Kind
	}{
		{name: "validation", status: http.StatusBadRequest, body: `{"error":"npi"}`, kind: classify.KindValidation},
		{name: "duplicate", status: http.StatusConflict, body: `{}`, kind: classify.KindDuplicate},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: ``, kind: classify.KindTransport},
		{name: "missing transaction id", status: http.StatusOK, body: `{"status":"received"}`, kind: classify.KindUnknown},
		{name: "garbage body", status: http.StatusOK, body: `<html>`, kind: classify.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conn, err := NewClearinghouseConnector(Credentials{BaseURL: srv.URL, APIKey: "k"}, loopbackGate(t))
			require.NoError(t, err)

			_, err = conn.Submit(context.Background(), sampleClaim())
			require.Error(t, err)
			assert.Equal(t, tt.kind, classify.FromError(err).Kind)
		})
	}
}

func TestClearinghouse_PollStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/claims/TX-42/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"paid"}`))
	}))
	defer srv.Close()

	conn, err := NewClearinghouseConnector(Credentials{BaseURL: srv.URL, APIKey: "k"}, loopbackGate(t))
	require.NoError(t, err)

	claim := sampleClaim()
	claim.Status = domain.ClaimStatusSubmitted
	claim.ExternalID = "TX-42"

	res, err := conn.PollStatus(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusPaid, res.Status)
	assert.Equal(t, "TX-42", res.ExternalID)
}

func TestClearinghouse_PollWithoutExternalID(t *testing.T) {
	conn, err := NewClearinghouseConnector(Credentials{BaseURL: "https://sandbox.ch.example", APIKey: "k"}, loopbackGate(t))
	require.NoError(t, err)

	_, err = conn.PollStatus(context.Background(), sampleClaim())
	require.Error(t, err)
	assert.Equal(t, classify.KindValidation, classify.FromError(err).Kind)
}

func TestClearinghouse_ProductionEndpointBlocked(t *testing.T) {
	g := gate.New(gate.Config{Mode: gate.ModeSandbox}, discardLogger())
	conn, err := NewClearinghouseConnector(Credentials{BaseURL: "https://api.real-insurer.example", APIKey: "k"}, g.Wrap(g.NewHTTPClient(0)))
	require.NoError(t, err)

	_, err = conn.Submit(context.Background(), sampleClaim())
	require.Error(t, err)

	var blocked *gate.BlockedError
	assert.True(t, errors.As(err, &blocked))
	assert.False(t, classify.FromError(err).Retriable())
}

func TestNewClearinghouseConnector_Validation(t *testing.T) {
	_, err := NewClearinghouseConnector(Credentials{APIKey: "k"}, nil)
	assert.Error(t, err)

	_, err = NewClearinghouseConnector(Credentials{BaseURL: "https://sandbox.ch.example"}, nil)
	assert.Error(t, err)
}
