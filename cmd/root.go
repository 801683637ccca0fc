package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/chinook-concierge/pkg/config"
	logx "github.com/tanpawarit/chinook-concierge/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Chinook music-store concierge",
	Long: `concierge routes customer messages to a customer-account agent and a
music-catalog agent backed by the Chinook database.`,
	Example: `
# Chat in the terminal
concierge chat --env .env

# Continue a turn that stopped half-way
concierge chat --session 6f1c... --resume

# Serve the HTTP API
concierge serve

# Review pending customer updates
concierge approvals list --status pending
concierge approvals resolve <id> --approve --reviewer dana
  `,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)
		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return fmt.Errorf("load log config: %w", err)
		}
		logx.Init(*logCfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (defaults to ./.env when present)")

	rootCmd.AddCommand(
		chatCmd,
		serveCmd,
		approvalsCmd,
		migrateCmd,
	)
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
