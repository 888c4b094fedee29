package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gridbase",
	Short: "Multi-tenant dynamic-table data engine",
	Long: `gridbase stores user-defined tables as sparse rows and cells,
compiles filter requests into SQL, caches filter results with
invalidation on write, and scopes every operation to the caller's
table and column permissions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; the environment may be set elsewhere.
		_ = godotenv.Load()
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(provisionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
