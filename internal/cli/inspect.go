package cli

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/sentinel"
	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/serve"
	"github.com/zero-day-ai/sentinel/vuln"
)

func newInspectCmd() *cobra.Command {
	var (
		addr string
		cve  string
		noAI bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <id>",
		Short: "Show a record with AI remediation and related CVEs",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("inspect takes exactly one record ID")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cveID string
			if cve != "" {
				id, err := advisor.NormalizeCVEID(cve)
				if err != nil {
					return usageError{err}
				}
				cveID = id
			}

			conn, err := dial(addr)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(conn, nil, "gRPC connection")
			client := serve.NewClient(conn)

			record, err := client.GetVulnerability(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if noAI {
				return writeJSON(out, record)
			}

			lookup := advisor.NewLookup(client, record)
			lookup.LoadRemediation(ctx)
			lookup.LoadRelatedCVEs(ctx)
			if cveID != "" {
				lookup.ToggleCVE(ctx, cveID)
			}
			lookup.Wait()

			return writeJSON(out, struct {
				Record vuln.Vulnerability  `json:"record"`
				AI     advisor.LookupState `json:"ai"`
			}{record, lookup.State()})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&addr, "addr", "a", defaultAddr, "server address")
	f.StringVar(&cve, "cve", "", "also fetch details for this CVE ID")
	f.BoolVar(&noAI, "no-ai", false, "skip AI lookups")
	return cmd
}
