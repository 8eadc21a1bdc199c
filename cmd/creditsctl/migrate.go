package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/db"
	"github.com/craiverse/credits-service/internal/migration"
)

func migrateCmd(cfg *config.Config) *cobra.Command {
	var (
		path   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "./migrations", "migration directory")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Connect(cmd.Context(), cfg.GetDSN(), db.DefaultPoolConfig())
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer database.Close()

			mcfg := migration.CLIConfig(path)
			mcfg.DryRun = dryRun
			runner, err := migration.NewRunner(database, mcfg)
			if err != nil {
				return err
			}

			results, err := runner.RunUp(cmd.Context())
			for _, r := range results {
				mark := "✅"
				if !r.Success {
					mark = "❌"
				}
				fmt.Printf("%s %d %s (%s)\n", mark, r.Version, r.Name, r.ExecutionTime)
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No pending migrations")
			}
			return nil
		},
	}
	upCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Connect(cmd.Context(), cfg.GetDSN(), db.DefaultPoolConfig())
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer database.Close()

			runner, err := migration.NewRunner(database, migration.CLIConfig(path))
			if err != nil {
				return err
			}

			status, err := runner.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
			for _, m := range status.Migrations {
				state, appliedAt := "pending", "-"
				if m.Applied {
					state = "applied"
					if m.Dirty {
						state = "modified"
					}
					appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Version, m.Name, state, appliedAt)
			}
			_ = w.Flush()

			fmt.Printf("\n%d applied, %d pending, health: %s\n", status.AppliedCount, status.PendingCount, status.SystemHealth)
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}
