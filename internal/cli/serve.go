package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/ordertrail/internal/api"
	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/config"
	"github.com/roach88/ordertrail/internal/logging"
	"github.com/roach88/ordertrail/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve change logs over HTTP",
		Long: `Serve change logs over HTTP.

Settings come from the YAML file given by --config, then ORDERTRAIL_*
environment variables. Routes:
  GET /v1/receptions/:reception/changelog
  GET /v1/receptions
  GET /healthz
  GET /metrics

Examples:
  ordertrail serve --config ./ordertrail.yaml
  ORDERTRAIL_ADDR=:9000 ordertrail serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	level := logging.ParseLevel(cfg.Log.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.Init(os.Stderr, cfg.Log.Format, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cl, err := newServeHandler(ctx, cfg, logger)
	defer cl.Close()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	return nil
}

// newServeHandler wires stores, masters, metrics and the sink into the
// HTTP router. The returned closers are valid even on error.
func newServeHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gin.Engine, closers, error) {
	var cl closers

	rows, receptions, err := openRows(ctx, cfg, logger, &cl)
	if err != nil {
		return nil, cl, WrapExitError(ExitCommandError, "failed to open row store", err)
	}
	masters, err := openMasters(cfg.Masters, &cl)
	if err != nil {
		return nil, cl, WrapExitError(ExitCommandError, "failed to open masters", err)
	}

	reg := metrics.NewRegistry()
	svc := &changelog.Service{
		Rows:     rows,
		Masters:  masters,
		Sink:     openSink(cfg.Kafka, reg, &cl),
		Logger:   logger,
		Recorder: reg,
	}

	gin.SetMode(gin.ReleaseMode)
	return api.NewServer(logger, svc, receptions, reg).Router(), cl, nil
}
