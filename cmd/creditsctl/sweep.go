package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/db"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/repository"
	"github.com/craiverse/credits-service/internal/repository/sqlite"
	"github.com/craiverse/credits-service/internal/services"
)

func sweepCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired idempotency records and old rate limit entries once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Connect(cmd.Context(), cfg.GetDSN(), db.DefaultPoolConfig())
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer database.Close()

			var store interfaces.RateLimitStore = repository.NewRateLimitRepository(database)
			if cfg.RateLimitStore == "sqlite" {
				sqliteStore, err := sqlite.Open(cfg.RateLimitSQLitePath)
				if err != nil {
					return err
				}
				defer sqliteStore.Close()
				store = sqliteStore
			}

			idempotency := services.NewIdempotencyService(repository.NewIdempotencyRepository(database), cfg.IdempotencyTTL)
			limiter := services.NewRateLimitService(store, config.DefaultBilling().RateLimits)

			sweeper := services.NewSweeper(cfg.SweepInterval,
				services.SweepTask{Name: "idempotency_records", Run: idempotency.Sweep},
				services.SweepTask{Name: "rate_limit_entries", Run: limiter.Cleanup},
			)

			removed := sweeper.RunOnce(cmd.Context())
			names := make([]string, 0, len(removed))
			for name := range removed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%-22s %d rows deleted\n", name, removed[name])
			}
			return nil
		},
	}
}
