package cli

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/sentinel"
)

func newServeCmd(env Env) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(env, cfgPath)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(app, app.Logger(), "sentinel app")
			return app.Serve(cmd.Context())
		},
	}
	addConfigFlag(cmd, &cfgPath)
	return cmd
}

func newWorkerCmd(env Env) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a scan worker against the Redis queue",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(env, cfgPath)
			if err != nil {
				return err
			}
			defer sentinel.CloseWithLog(app, app.Logger(), "sentinel app")
			return app.RunWorker(cmd.Context())
		},
	}
	addConfigFlag(cmd, &cfgPath)
	return cmd
}
