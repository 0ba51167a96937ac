// Package postgres implements the service repositories on PostgreSQL
// through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationResult reports one applied file.
type MigrationResult struct {
	File string
	Err  error
}

// Migrate applies every embedded migration in name order, each in its own
// transaction. The DDL is idempotent so reruns are safe. It returns the
// per-file outcome and the first error.
func Migrate(ctx context.Context, db *sql.DB) ([]MigrationResult, error) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	var (
		results  []MigrationResult
		firstErr error
	)
	for _, f := range files {
		data, err := migrations.ReadFile(f)
		if err != nil {
			return results, fmt.Errorf("read %s: %w", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		res := MigrationResult{File: strings.TrimPrefix(f, "migrations/"), Err: apply(ctx, db, string(data))}
		if res.Err != nil {
			log.Printf("[Migrate] %s: %v", res.File, res.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("migration %s: %w", res.File, res.Err)
			}
		}
		results = append(results, res)
	}
	return results, firstErr
}

func apply(ctx context.Context, db *sql.DB, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return db, nil
}
