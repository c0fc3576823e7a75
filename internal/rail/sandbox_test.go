package rail

import (
	"context"
	"strings"
	"testing"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_SubmitIsDeterministic(t *testing.T) {
	conn, err := NewSandboxConnector(Credentials{SubmitterID: "SUB"}, nil)
	require.NoError(t, err)

	first, err := conn.Submit(context.Background(), sampleClaim())
	require.NoError(t, err)
	second, err := conn.Submit(context.Background(), sampleClaim())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.ExternalID, "SBX-"))
	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, domain.ClaimStatusSubmitted, first.Status)
}

func TestSandbox_SubmitWithoutLines(t *testing.T) {
	conn, _ := NewSandboxConnector(Credentials{}, nil)
	claim := sampleClaim()
	claim.Lines = nil

	_, err := conn.Submit(context.Background(), claim)
	require.Error(t, err)
	assert.Equal(t, classify.KindValidation, classify.FromError(err).Kind)
}

func TestSandbox_PollAccepts(t *testing.T) {
	conn, _ := NewSandboxConnector(Credentials{}, nil)
	claim := sampleClaim()
	claim.Status = domain.ClaimStatusSubmitted
	claim.ExternalID = "SBX-1"

	res, err := conn.PollStatus(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusAccepted, res.Status)
}
