package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
)

// DbCmd groups database operations
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Cardrail database",
	Long: `Manage the Cardrail database.

Examples:
  cardrail db migrate   # Apply pending schema migrations
  cardrail db stats     # Show row counts and job status breakdown`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase migrates as part of opening
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Println("Database schema is up to date")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var companies, cards, jobs, items int
	row := database.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM cards),
			(SELECT COUNT(*) FROM bulk_jobs),
			(SELECT COUNT(*) FROM bulk_job_items)
	`)
	if err := row.Scan(&companies, &cards, &jobs, &items); err != nil {
		return errors.Wrap(err, "failed to query row counts")
	}

	fmt.Println("Database Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Database Path: %s\n", cfg.Database.Path)
	fmt.Printf("Companies:     %d\n", companies)
	fmt.Printf("Cards:         %d\n", cards)
	fmt.Printf("Bulk Jobs:     %d\n", jobs)
	fmt.Printf("Job Items:     %d\n", items)

	rows, err := database.Query(`
		SELECT kind, status, COUNT(*) FROM bulk_jobs GROUP BY kind, status ORDER BY kind, status
	`)
	if err != nil {
		return errors.Wrap(err, "failed to query job breakdown")
	}
	defer rows.Close()

	fmt.Println("\nJobs by kind and status:")
	printed := false
	for rows.Next() {
		var kind, status string
		var count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return errors.Wrap(err, "failed to scan job breakdown")
		}
		fmt.Printf("  %-12s %-11s %d\n", kind, status, count)
		printed = true
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error iterating job breakdown")
	}
	if !printed {
		fmt.Println("  (none)")
	}
	return nil
}
