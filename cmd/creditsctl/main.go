package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/logger"
)

var Version = "dev"

func main() {
	// .env dosyasını yükle
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)

	rootCmd := &cobra.Command{
		Use:           "creditsctl",
		Short:         "Operations tool for the CRAIverse credits service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd(cfg))
	rootCmd.AddCommand(sweepCmd(cfg))
	rootCmd.AddCommand(tokenCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
