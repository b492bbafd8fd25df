// Package commands implements the docflow CLI, which runs the enrichment
// pipeline outside Cloud Functions.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/docenrich/internal/app"
	"github.com/Lllllllleong/docenrich/internal/config"
)

var (
	envFile string
	cfg     *config.Config

	// newApp builds the backends for process and status.
	newApp = app.New
)

var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Run and inspect document enrichment executions",
	Long: `docflow drives uploaded documents through metadata extraction, thumbnail
generation, text detection, result parsing and persistence, using the same
backends as the deployed functions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
