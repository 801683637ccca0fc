package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/chinook-concierge/internal/server"
	configx "github.com/tanpawarit/chinook-concierge/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the concierge HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srvCfg, err := configx.New[server.Config]("SERVER")
		if err != nil {
			return fmt.Errorf("load server config: %w", err)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return server.New(a.orchestrator, a.approvals, a.registry).ListenAndServe(ctx, *srvCfg)
	},
}
