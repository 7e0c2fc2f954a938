package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// exitUsage is returned for invalid flag combinations.
const exitUsage = 2

// cliError carries a non-default exit code.
type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return cliError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintf(os.Stderr, "error: %v\n", ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	otel     bool
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "nlqeval",
		Short:         "Score natural-language-to-query completions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.otel, "otel", false, "enable OpenTelemetry tracing and metrics")

	root.AddCommand(newImportCommand(g))
	root.AddCommand(newPromptsCommand(g))
	root.AddCommand(newCriticPromptsCommand(g))
	root.AddCommand(newScoreCommand(g))
	root.AddCommand(newServeCommand(g))
	return root
}
