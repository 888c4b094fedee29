package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/logger"
)

var provisionDatabaseName string

var provisionCmd = &cobra.Command{
	Use:   "provision <tenant-name>",
	Short: "Create a tenant and its initial database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProvision(cmd.Context(), args[0], provisionDatabaseName)
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionDatabaseName, "database", "main", "name of the tenant's initial database")
}

func runProvision(ctx context.Context, tenantName, databaseName string) error {
	cfg := config.FromEnv()
	log := logger.New("gridbase", version)

	db, err := database.New(ctx, database.FromGlobalConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	created, err := catalog.NewService(db, log).ProvisionTenant(ctx, tenantName, databaseName)
	if err != nil {
		return fmt.Errorf("provisioning failed: %w", err)
	}

	fmt.Printf("tenant %s provisioned: database %s (%s)\n", created.TenantID, created.Name, created.ID)
	return nil
}
