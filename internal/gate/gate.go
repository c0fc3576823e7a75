// Package gate is the network safety gate: the single choke point every
// outbound rail call passes through. It permits a call only when the
// destination hostname matches the sandbox allowlist, or when the process is
// explicitly configured to allow production domains. It fails closed.
package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/cuongbtq/claims-pipeline/internal/metrics"
)

// Mode is the operating posture of the gate
type Mode string

const (
	// ModeSandbox only allows hostnames matching the allowlist
	ModeSandbox Mode = "sandbox"
	// ModePermissive allows production domains
	ModePermissive Mode = "permissive"
)

// DefaultAllowedPrefixes is used when no allowlist is configured
var DefaultAllowedPrefixes = []string{"sandbox.", "test.", "mock.", "dev.", "staging."}

var (
	// ErrUnknownMode is returned by VerifyStartupPosture for an unrecognised mode
	ErrUnknownMode = errors.New("unknown gate mode")

	// ErrEmptyAllowlist is returned when sandbox mode has nothing to allow
	ErrEmptyAllowlist = errors.New("sandbox mode with an empty allowlist")
)

// Config holds the process-wide gate configuration, read once at startup.
// A nil AllowedPrefixes means the defaults; an empty non-nil slice is kept empty.
type Config struct {
	Mode            Mode
	AllowedPrefixes []string
}

// Decision is the outcome of a single outbound call check
type Decision struct {
	Hostname string `json:"hostname"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
}

// Gate decides whether outbound calls may proceed
type Gate struct {
	mode     Mode
	prefixes []string
	logger   *slog.Logger
}

// ParseMode normalizes a configured mode. Case and surrounding space are
// ignored and an empty value means sandbox. Unrecognised values are returned
// normalized so VerifyStartupPosture can reject them.
func ParseMode(s string) Mode {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	if mode == "" {
		return ModeSandbox
	}
	return mode
}

// New creates a gate. An empty mode is treated as sandbox.
func New(cfg Config, logger *slog.Logger) *Gate {
	mode := ParseMode(string(cfg.Mode))

	var prefixes []string
	if cfg.AllowedPrefixes == nil {
		prefixes = slices.Clone(DefaultAllowedPrefixes)
	} else {
		prefixes = make([]string, 0, len(cfg.AllowedPrefixes))
		for _, p := range cfg.AllowedPrefixes {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				prefixes = append(prefixes, p)
			}
		}
	}

	return &Gate{
		mode:     mode,
		prefixes: prefixes,
		logger:   logger,
	}
}

// Mode returns the normalized operating mode
func (g *Gate) Mode() Mode {
	return g.mode
}

// AllowedPrefixes returns a copy of the effective allowlist
func (g *Gate) AllowedPrefixes() []string {
	return slices.Clone(g.prefixes)
}

// Decide checks a hostname against the allowlist. Anything not explicitly
// permitted is blocked, including an unrecognised mode.
func (g *Gate) Decide(hostname string) Decision {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
	d := g.decide(host)
	d.Hostname = hostname

	metrics.GateDecisions.WithLabelValues(strconv.FormatBool(d.Allowed)).Inc()

	if d.Allowed {
		g.logger.Info("Outbound call allowed",
			slog.String("hostname", hostname),
			slog.String("reason", d.Reason),
		)
	} else {
		g.logger.Warn("Outbound call blocked",
			slog.String("hostname", hostname),
			slog.String("reason", d.Reason),
			slog.String("mode", string(g.mode)),
		)
	}

	return d
}

func (g *Gate) decide(host string) Decision {
	if host == "" {
		return Decision{Allowed: false, Reason: "empty hostname"}
	}

	switch g.mode {
	case ModePermissive:
		return Decision{Allowed: true, Reason: "permissive mode allows production domains"}
	case ModeSandbox:
	default:
		return Decision{Allowed: false, Reason: fmt.Sprintf("unknown gate mode %q", g.mode)}
	}

	for _, p := range g.prefixes {
		if strings.HasPrefix(host, p) {
			return Decision{Allowed: true, Reason: fmt.Sprintf("hostname matches allowlist prefix %q", p)}
		}
	}

	return Decision{Allowed: false, Reason: "hostname does not match any sandbox allowlist prefix"}
}

// VerifyStartupPosture runs once at process start. It returns an error when
// the configuration is ambiguous enough that startup must abort, and logs a
// warning for postures that are valid but worth a human's attention.
func (g *Gate) VerifyStartupPosture() error {
	switch g.mode {
	case ModeSandbox:
		if len(g.prefixes) == 0 {
			return fmt.Errorf("%w: every outbound call would be blocked", ErrEmptyAllowlist)
		}

		for _, p := range g.prefixes {
			if !slices.Contains(DefaultAllowedPrefixes, p) {
				g.logger.Warn("Gate allowlist contains a non-default entry",
					slog.String("prefix", p),
				)
			}
		}

		g.logger.Info("Network safety gate in sandbox mode",
			slog.Any("allowed_prefixes", g.prefixes),
		)
		return nil

	case ModePermissive:
		g.logger.Warn("Network safety gate in permissive mode: production domains are reachable",
			slog.Any("allowed_prefixes", g.prefixes),
		)
		return nil

	default:
		return fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownMode, g.mode, ModeSandbox, ModePermissive)
	}
}
