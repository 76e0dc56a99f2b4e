package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/cmd/cardrail/commands"
	"github.com/cardrail/cardrail/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cardrail",
	Short: "Cardrail - digital business cards with bulk wallet and email jobs",
	Long: `Cardrail - multi-tenant digital business card service.

Companies onboard employee cards, sync them to phone wallets in bulk, and
email every holder their share link. Bulk operations run as background jobs
drained in batches by a dispatcher.

Available commands:
  serve    - Start the API server with background job processing
  bulk     - Inspect and drive bulk jobs
  company  - Manage companies
  import   - Onboard cards from a CSV file
  db       - Database operations
  config   - Show and edit configuration
  version  - Show version information

Examples:
  cardrail serve                     # API server + dispatcher
  cardrail bulk run --kind wallet    # One processing pass, then exit
  cardrail bulk ls --company <id>    # List a company's jobs
  cardrail import <company-id> employees.csv`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.BulkCmd)
	rootCmd.AddCommand(commands.CompanyCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
