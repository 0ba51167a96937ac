package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/app"
	"github.com/ignite/announce/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"

	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "announcectl",
	Short:         "announcectl - operate the announce campaign engine",
	Long:          `announcectl runs migrations, dispatches campaigns, imports contacts and inspects reports and the sandbox outbox.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("announcectl %s (built %s)\n", version, buildTime)
	},
}

var errNoDatabase = errors.New("DATABASE_URL is not configured")

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(sandboxCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromEnv(configFile)
}

// openApp builds the services against the configured database. Commands
// that read or write campaign data refuse to run on the in-memory store.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errNoDatabase
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
