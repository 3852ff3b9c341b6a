//go:build !lambda

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"craft-optimizer/internal/config"
)

// rootOptions holds the flags every command shares.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
	Trace      bool

	cfg           config.Config
	log           *slog.Logger
	shutdownTrace func(context.Context) error
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "craftopt",
		Short: "Find crafting rotations with the highest guaranteed quality",
		Long: `craftopt searches action sequences that finish a craft and maximize its
quality, exhaustively and with admissible pruning, so the rotation it reports
is optimal unless the search was cut short.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.shutdownTrace != nil {
				return opts.shutdownTrace(context.Background())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log search progress to stderr")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "print OpenTelemetry spans to stderr")

	cmd.AddCommand(newSolveCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newActionsCommand(opts))
	return cmd
}

func (o *rootOptions) setup() error {
	o.cfg = config.DefaultConfig()
	if o.ConfigPath != "" {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		o.log = slog.New(slog.NewTextHandler(os.Stderr, hopts))
	} else {
		o.log = slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	slog.SetDefault(o.log)

	if o.Trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(tp)
		o.shutdownTrace = tp.Shutdown
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
