package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/chinook-concierge/pkg/config"
	"github.com/tanpawarit/chinook-concierge/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply checkpoint and approval migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbCfg, err := configx.New[database.Config]("DATABASE")
		if err != nil {
			return fmt.Errorf("load database config: %w", err)
		}
		dbCfg.AutoMigrate = false

		db, err := database.Open(cmd.Context(), *dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info().Str("driver", dbCfg.Driver).Msg("migrations applied")
		return nil
	},
}
