package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var openDB = func(url string) (*sql.DB, error) {
	return sql.Open("postgres", url)
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbURL, dir string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back SQL migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbURL, "database-url", os.Getenv("DB_URL"), "postgres connection URL (default $DB_URL)")
	root.PersistentFlags().StringVar(&dir, "dir", "./migrations", "directory holding *.sql migrations")

	withDB := func(mode string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if dbURL == "" {
				return errors.New("DB_URL not set in environment")
			}
			db, err := openDB(dbURL)
			if err != nil {
				return fmt.Errorf("failed to connect db: %w", err)
			}
			defer db.Close()
			return run(db, mode, dir, cmd.OutOrStdout())
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every migration not yet recorded in schema_migrations",
			Args:  cobra.NoArgs,
			RunE:  withDB("up"),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recently applied migration",
			Args:  cobra.NoArgs,
			RunE:  withDB("down"),
		},
	)
	return root
}

func run(db *sql.DB, mode, migrationsDir string, out io.Writer) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	sort.Strings(files)

	switch mode {
	case "up":
		return runMigrationsUp(db, files, out)
	case "down":
		return runMigrationsDown(db, files, out)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up' or 'down')", mode)
	}
}

func runMigrationsUp(db *sql.DB, files []string, out io.Writer) error {
	applied := 0
	for _, file := range files {
		version := filepath.Base(file)

		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			fmt.Fprintf(out, "skip   %s (already applied)\n", version)
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		upSQL := extractMigrationPart(string(content), "Up")
		fmt.Fprintf(out, "apply  %s\n", version)

		// The migration and its version row commit together.
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration failed (%s): %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
		applied++
	}
	fmt.Fprintf(out, "%d new migration(s) applied\n", applied)
	return nil
}

func runMigrationsDown(db *sql.DB, files []string, out io.Writer) error {
	var lastVersion string
	err := db.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&lastVersion)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Fprintln(out, "no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	filePath := ""
	for _, f := range files {
		if filepath.Base(f) == lastVersion {
			filePath = f
			break
		}
	}
	if filePath == "" {
		return fmt.Errorf("migration file not found for version: %s", lastVersion)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	downSQL := extractMigrationPart(string(content), "Down")
	fmt.Fprintf(out, "revert %s\n", lastVersion)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollback %s: %w", lastVersion, err)
	}
	if _, err := tx.Exec(downSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rollback failed (%s): %w", filePath, err)
	}
	if _, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = $1`, lastVersion); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	return tx.Commit()
}

// extractMigrationPart returns the lines between "-- +migrate <section>" and
// the next marker.
func extractMigrationPart(content string, section string) string {
	lines := strings.Split(content, "\n")
	var part strings.Builder
	var inPart bool

	for _, line := range lines {
		if strings.Contains(line, "-- +migrate "+section) {
			inPart = true
			continue
		}
		if inPart && strings.HasPrefix(line, "-- +migrate") {
			break
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
