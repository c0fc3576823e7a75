package rail

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// loopbackGate allows httptest servers, which listen on 127.0.0.1
func loopbackGate(t *testing.T) *gate.Client {
	t.Helper()
	g := gate.New(gate.Config{Mode: gate.ModeSandbox, AllowedPrefixes: []string{"127.0.0.1"}}, discardLogger())
	return g.Wrap(g.NewHTTPClient(5 * time.Second))
}

func sampleClaim() domain.Claim {
	return domain.Claim{
		ID:               "claim-1",
		OrganizationID:   "org-1",
		PatientID:        "patient-1",
		ProviderNPI:      "1234567893",
		PayerID:          "PAYER01",
		Status:           domain.ClaimStatusReady,
		TotalChargeCents: 15000,
		ServiceDate:      time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		DiagnosisCodes:   []string{"J06.9"},
		Lines: []domain.ServiceLine{
			{ProcedureCode: "99213", Units: 1, ChargeCents: 15000},
		},
	}
}
