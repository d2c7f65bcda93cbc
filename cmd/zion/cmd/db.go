package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/storage"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database schema commands",
	Long:  `Commands for applying, rolling back and inspecting schema migrations of the SQL backends.`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: withMigrator(func(ctx context.Context, m storage.Migrator) error {
		if err := m.Up(ctx); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	}),
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return withMigrator(func(ctx context.Context, m storage.Migrator) error {
			if err := m.Down(ctx, steps); err != nil {
				return err
			}
			fmt.Printf("Rolled back %d migration(s)\n", steps)
			return nil
		})(cmd, args)
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: withMigrator(func(ctx context.Context, m storage.Migrator) error {
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
		for _, s := range status {
			fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Description)
		}
		return w.Flush()
	}),
}

func init() {
	dbRollbackCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

// withMigrator connects the configured database and runs fn with its migrator.
func withMigrator(fn func(ctx context.Context, m storage.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !cfg.Database.Enabled {
			return fmt.Errorf("database is disabled; set database.enabled")
		}

		cm := storage.NewConnectionManager(&cfg.Database)
		repo, err := cm.Connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = cm.Close() }()

		migratable, ok := repo.(storage.Migratable)
		if !ok {
			return fmt.Errorf("%s backend has no schema migrations", cm.Type())
		}
		return fn(ctx, migratable.Migrator())
	}
}
