package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending meta-schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()

		dbCfg := database.FromGlobalConfig(cfg)
		if dbCfg.MigrationsPath == "" {
			dbCfg.MigrationsPath = "migrations"
		}

		if err := database.Migrate(dbCfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Println("migrations applied")
		return nil
	},
}
