package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/sentinel"
	"github.com/zero-day-ai/sentinel/query"
	"github.com/zero-day-ai/sentinel/serve"
	"github.com/zero-day-ai/sentinel/vuln"
)

func newListCmd() *cobra.Command {
	var (
		addr     string
		severity string
		status   string
		text     string
		sortKey  string
		expr     string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vulnerabilities from a running server",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := query.Options{Text: text, Sort: query.SortKey(sortKey), Expr: expr}
			if severity != "" {
				s, err := vuln.ParseSeverity(severity)
				if err != nil {
					return usagef("invalid --severity: %w", err)
				}
				opts.Severity = s
			}
			if status != "" {
				s, err := vuln.ParseStatus(status)
				if err != nil {
					return usagef("invalid --status: %w", err)
				}
				opts.Status = s
			}
			if err := opts.Validate(); err != nil {
				return usageError{err}
			}

			conn, err := dial(addr)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(conn, nil, "gRPC connection")

			resp, err := serve.NewClient(conn).ListVulnerabilities(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, resp)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tSTATUS\tENDPOINT\tTYPE\tASSIGNEE")
			for _, v := range resp.Records {
				assignee := v.Assignee
				if assignee == "" {
					assignee = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
					v.ID, v.Severity, v.Status, v.Endpoint.Method, v.Endpoint.Path, v.Type, assignee)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d records\n", len(resp.Records), resp.Total)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&addr, "addr", "a", defaultAddr, "server address")
	f.StringVarP(&severity, "severity", "s", "", "only this severity")
	f.StringVar(&status, "status", "", "only this status")
	f.StringVarP(&text, "text", "t", "", "case-insensitive text search")
	f.StringVar(&sortKey, "sort", "", "sort order: "+joinSortKeys())
	f.StringVar(&expr, "expr", "", "CEL filter expression")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print dashboard counts from a running server",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := dial(addr)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(conn, nil, "gRPC connection")

			summary, err := serve.NewClient(conn).GetSummary(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", defaultAddr, "server address")
	return cmd
}

func joinSortKeys() string {
	keys := query.AllSortKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
