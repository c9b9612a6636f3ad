package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sova-tungnv/web-ai/internal/config"
	"github.com/sova-tungnv/web-ai/internal/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "handpipe",
	Short:         "Hand gesture pipeline for camera-driven drag and drop",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `handpipe reads frames from a camera, runs MediaPipe hand (and optionally
face) landmark detection on them and interprets the hand as a pointer:
pinch to drag, fist to freeze, two fingers held to switch modes.

Events are streamed to the browser UI over a websocket.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default ~/.handpipe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads the configuration and applies its log level. --verbose
// overrides the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if verbose {
		logger.SetVerbose(true)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
