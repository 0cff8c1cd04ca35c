package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/sentinel"
	"github.com/zero-day-ai/sentinel/registry"
)

func newPeersCmd(env Env) *cobra.Command {
	var (
		cfgPath string
		role    string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List instances in the service registry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role != registry.RoleAPI && role != registry.RoleWorker {
				return usagef("invalid --role %q", role)
			}

			app, err := openApp(env, cfgPath)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(app, app.Logger(), "sentinel app")

			instances, err := app.Discover(cmd.Context(), role)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, instances)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tENDPOINT\tVERSION\tSTARTED")
			for _, in := range instances {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.InstanceID, in.Endpoint, in.Version, in.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	addConfigFlag(cmd, &cfgPath)
	cmd.Flags().StringVarP(&role, "role", "r", registry.RoleAPI, "instance role: api or worker")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
