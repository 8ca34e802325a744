// Command tracebridge runs a small instrumented workload through the
// OpenTelemetry bridge and reports the resulting trace.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deepaksharma/otel-tracing-bridge/internal/bridge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// envPrefix namespaces the environment variables read by the bridge config
const envPrefix = "tracebridge"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := defaultOptions()

	var (
		includeLocation bool
		includeThreads  bool
		includeLevel    bool
	)

	cmd := &cobra.Command{
		Use:   "tracebridge",
		Short: "Emit a sample trace through the OpenTelemetry bridge",
		Long: `Runs a short instrumented workload: an OpenTelemetry root span, a
"send request" span created through the instrument registry, and an error
event inside it. The spans are exported to stdout, an OTLP endpoint, or an
in-process collector pipeline.

Bridge options are read from TRACEBRIDGE_* environment variables first;
flags that are set explicitly take precedence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridge.LoadConfig(envPrefix)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("include-location") {
				cfg = cfg.WithLocation(includeLocation)
			}
			if flags.Changed("include-threads") {
				cfg = cfg.WithThreads(includeThreads)
			}
			if flags.Changed("include-level") {
				cfg = cfg.WithLevel(includeLevel)
			}
			opts.bridge = cfg

			logger, err := newLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), opts, cmd.OutOrStdout(), logger)
		},
	}

	defaults := bridge.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&opts.exporter, "exporter", opts.exporter, "span exporter: stdout, otlp or pipeline")
	f.StringVar(&opts.endpoint, "otlp-endpoint", opts.endpoint, "OTLP gRPC endpoint used by the otlp exporter")
	f.BoolVar(&opts.insecure, "otlp-insecure", opts.insecure, "disable TLS for the OTLP connection")
	f.StringVar(&opts.serviceName, "service-name", opts.serviceName, "service.name resource attribute")
	f.BoolVar(&includeLocation, "include-location", defaults.IncludeLocation, "attach code.filepath, code.namespace and code.lineno")
	f.BoolVar(&includeThreads, "include-threads", defaults.IncludeThreads, "attach thread.id and thread.name")
	f.BoolVar(&includeLevel, "include-level", defaults.IncludeLevel, "attach the span level")
	f.BoolVarP(&opts.verbose, "verbose", "v", opts.verbose, "enable debug logging")

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// contextOrBackground guards against commands executed without a context
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
