package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	config "github.com/hanpama/gqlwrap/internal/config"
	eventbus "github.com/hanpama/gqlwrap/internal/eventbus"
	executor "github.com/hanpama/gqlwrap/internal/executor"
	introspection "github.com/hanpama/gqlwrap/internal/introspection"
	otel "github.com/hanpama/gqlwrap/internal/otel"
	schema "github.com/hanpama/gqlwrap/internal/schema"
	server "github.com/hanpama/gqlwrap/internal/server"
	wrap "github.com/hanpama/gqlwrap/internal/wrap"
)

var version = "v0.0.0-dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	root := &cobra.Command{
		Use:           "gqlwrap",
		Short:         "GraphQL gateway that wraps and reshapes remote schemas",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "gqlwrap.yaml", "gateway configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	root.AddCommand(
		serveCmd,
		&cobra.Command{
			Use:   "print-schema",
			Short: "Print the SDL of the gateway schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				s, err := gatewaySchema(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), schema.Render(s))
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version of gqlwrap",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "gqlwrap", version)
			},
		},
	)
	return root
}

// gatewaySchema wraps every configured subschema and merges the results.
func gatewaySchema(ctx context.Context, cfg *config.Config) (*schema.Schema, error) {
	subs, err := config.BuildSubschemas(ctx, cfg)
	if err != nil {
		return nil, err
	}
	wrapped := make([]*schema.Schema, 0, len(subs))
	for _, sub := range subs {
		s, err := wrap.Schema(sub)
		if err != nil {
			return nil, fmt.Errorf("wrap %s: %w", sub.Name, err)
		}
		wrapped = append(wrapped, s)
	}
	return wrap.Merge(wrapped...)
}

func newHandler(ctx context.Context, cfg *config.Config) (*server.Handler, error) {
	s, err := gatewaySchema(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if *cfg.Server.Introspection {
		s = introspection.Extend(s)
	}

	opts := []server.Option{
		server.WithTimeout(cfg.ServerTimeout()),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithGraphiQL(*cfg.Server.GraphiQL),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if len(cfg.Server.ForwardHeaders) > 0 {
		opts = append(opts, server.WithForwardHeaders(cfg.Server.ForwardHeaders...))
	}
	return server.New(executor.NewResolverRuntime(), s, opts...)
}

func serve(ctx context.Context, cfg *config.Config) error {
	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Opentelemetry.Endpoint, cfg.Opentelemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	h, err := newHandler(ctx, cfg)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("GraphQL gateway listening", "addr", cfg.Server.Addr, "subschemas", len(cfg.Subschemas))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
