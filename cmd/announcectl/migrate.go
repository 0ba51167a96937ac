package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errNoDatabase
	}

	db, err := postgres.Open(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := postgres.Migrate(cmd.Context(), db)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Printf("  %-30s %s\n", r.File, status)
	}
	if err != nil {
		return err
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
