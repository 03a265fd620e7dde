package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/config"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
)

var (
	cfgFile  string
	jsonOut  bool
	verbose  bool
	device   string
	location string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ktv-casting",
	Short: "Cast a KTV room's song queue to a DLNA renderer",
	Long: `ktv-casting follows a remote KTV room and keeps a DLNA renderer on the
local network playing whatever song the room has selected, advancing the
queue when a song finishes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.ktv-castingrc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "renderer name or UDN")
	rootCmd.PersistentFlags().StringVar(&location, "location", "", "renderer descriptor URL, skips discovery")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}

	logger, err = logging.New(cfg.Log, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, apperr.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
