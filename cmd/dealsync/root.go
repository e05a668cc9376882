package main

import (
	"log/slog"
	"os"

	"github.com/hyperengineering/dealsync/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "dealsync",
	Short:        "DealSync - Deal Mutation & Ownership Synchronization Engine",
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger configures the default slog logger from config.
func initLogger(cfg *config.Config) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
