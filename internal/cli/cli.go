// Package cli implements the sentinel command.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/zero-day-ai/sentinel"
	"github.com/zero-day-ai/sentinel/config"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitUsage         = 2
	ExitConfiguration = 3
	ExitNetwork       = 4
)

const defaultAddr = "localhost:50051"

// Env is the process environment a command runs in.
type Env struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Version string

	// Options are passed to sentinel.New by serve, worker and peers.
	Options []sentinel.Option
}

// Run executes the command in args and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}

	root := newRootCmd(env)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func newRootCmd(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "API security scanning dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.PrintErr(cmd.UsageString())
				return usagef("no command given")
			}
			return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newServeCmd(env),
		newWorkerCmd(env),
		newListCmd(),
		newSummaryCmd(),
		newInspectCmd(),
		newPeersCmd(env),
		newVersionCmd(env),
	)
	return root
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	}
	switch sentinel.KindOf(err) {
	case sentinel.KindConfiguration:
		return ExitConfiguration
	case sentinel.KindNetwork:
		return ExitNetwork
	}
	return ExitError
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "path to sentinel.yaml or a directory containing it")
}

// loadConfig reads path, or starts from the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.ApplyEnv(os.LookupEnv)
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, sentinel.NewConfigurationError("cli.loadConfig", err).WithContext(map[string]any{"path": path})
	}
	return cfg, nil
}

func openApp(env Env, path string) (*sentinel.App, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	opts := append([]sentinel.Option{
		sentinel.WithOutput(env.Stderr),
		sentinel.WithVersion(env.Version),
	}, env.Options...)
	return sentinel.New(cfg, opts...)
}


// dial connects to a running server. The connection is lazy; errors surface
// on the first call.
func dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, sentinel.NewNetworkError("cli.dial", err).WithContext(map[string]any{"addr": addr})
	}
	return conn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
