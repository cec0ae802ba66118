package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/api"
	"github.com/DoyleJ11/whist-client/internal/config"
	"github.com/DoyleJ11/whist-client/internal/logging"
	"github.com/DoyleJ11/whist-client/internal/session"
)

var (
	// Global flags
	cfgFile   string
	serverURL string
	logLevel  string

	// Shared state set during PersistentPreRun
	cfg     *config.Config
	logger  *zap.Logger
	cleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "whistctl",
	Short: "Headless Whist client",
	Long: `whistctl drives the Whist client session from the terminal: it checks a
server, logs in, finds or resumes a room and prints the room stream.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, cleanup, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cleanup == nil {
			return nil
		}
		return cleanup()
	},
}

// sessionConfig turns the loaded configuration into what a session needs.
func sessionConfig() (session.Config, error) {
	req, err := api.NewRequirement(cfg.Requirement.Game, cfg.Requirement.Core, cfg.Requirement.Server)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Requirement:    req,
		GitHubURL:      cfg.GitHub.BaseURL,
		GitHubClientID: cfg.GitHub.ClientID,
		RequestTimeout: cfg.RequestTimeout,
		DialTimeout:    cfg.DialTimeout,
		Logger:         logger,
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default whist.yaml or $WHIST_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Whist server URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
