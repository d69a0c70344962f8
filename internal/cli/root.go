package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

type globalFlags struct {
	configPath string
	port       string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	configDefault := os.Getenv("CONFIG_PATH")
	if configDefault == "" {
		configDefault = defaultConfigPath
	}

	cmd := &cobra.Command{
		Use:          "quiz-service",
		Short:        "Scenario quiz engine: tiered quizzes with timers, progress sync and scoring",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", configDefault, "path to YAML config")
	cmd.PersistentFlags().StringVar(&flags.port, "port", os.Getenv("PORT"), "port to listen on (overrides config)")

	cmd.AddCommand(
		NewStartCmd(&flags.configPath, &flags.port),
		NewMigrateCmd(&flags.configPath),
		NewPlayCmd(&flags.configPath),
	)
	return cmd
}
