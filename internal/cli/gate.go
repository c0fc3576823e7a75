package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// ErrHostsBlocked is returned by gate check --strict when any host is blocked
var ErrHostsBlocked = errors.New("one or more hosts are blocked")

func newGateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Inspect the network safety gate",
	}

	var strict bool
	check := &cobra.Command{
		Use:   "check HOST...",
		Short: "Show whether outbound calls to each host would be allowed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}

			// decisions are printed, not logged
			g := gate.New(cfg.GatePolicy(), slog.New(slog.DiscardHandler))
			if err := g.VerifyStartupPosture(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			_, _ = fmt.Fprintf(w, "MODE\t%s\n", g.Mode())
			_, _ = fmt.Fprintf(w, "ALLOWLIST\t%s\n\n", strings.Join(g.AllowedPrefixes(), ","))
			_, _ = fmt.Fprintln(w, "HOST\tDECISION\tREASON")

			blocked := 0
			for _, host := range args {
				d := g.Decide(host)
				decision := "allow"
				if !d.Allowed {
					decision = "block"
					blocked++
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d.Hostname, decision, d.Reason)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if strict && blocked > 0 {
				return fmt.Errorf("%w: %d of %d", ErrHostsBlocked, blocked, len(args))
			}
			return nil
		},
	}
	check.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any host is blocked")

	cmd.AddCommand(check)
	return cmd
}
