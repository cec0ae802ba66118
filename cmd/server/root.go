package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/whist-client/internal/config"
	"github.com/DoyleJ11/whist-client/internal/httpapi"
	"github.com/DoyleJ11/whist-client/internal/hub"
	"github.com/DoyleJ11/whist-client/internal/logging"
)

var (
	cfgFile  string
	addr     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "In-memory Whist development server",
	Long: `server runs the Whist room routes and the room stream in memory, with a
stand-in for the GitHub device flow. State is lost on exit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if addr != "" {
			cfg.DevServer.Addr = addr
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, cleanup, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, cleanup()) }()

		return serve(cmd.Context(), cfg.DevServer.Addr, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides dev_server.addr)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
}

func serve(ctx context.Context, addr string, logger *zap.Logger) error {
	h := hub.NewHub(ctx, logger)

	// Build the router *with* the hub injected
	opts := httpapi.DefaultOptions()
	opts.Logger = logger
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.SetupRoutes(h, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
