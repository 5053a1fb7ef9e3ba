package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/research-evidence-backend/internal/app"
)

var (
	version = "dev"

	configFile string
	envFile    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:          "evidence",
		Short:        "Research evidence comparison service",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newRecalculateCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file (when present), then viper.
func loadConfig() (app.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return app.Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	v, err := app.NewViper(configFile)
	if err != nil {
		return app.Config{}, err
	}
	return app.LoadConfig(v)
}

func newApp(ctx context.Context, migrate bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, migrate)
}
