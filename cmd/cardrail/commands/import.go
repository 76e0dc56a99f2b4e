package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/company"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
)

// ImportCmd onboards cards from a CSV file
var ImportCmd = &cobra.Command{
	Use:   "import <company-id> <file.csv>",
	Short: "Onboard cards from a CSV file",
	Long: `Onboard employee cards from a CSV file.

The CSV needs a header row with at least full_name and email columns; phone
and job_title are optional. Rows that fail validation are skipped and
reported without aborting the import.

Example:
  cardrail import 4f1c... employees.csv --sync-wallet`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var importSyncWalletFlag bool

func init() {
	ImportCmd.Flags().BoolVar(&importSyncWalletFlag, "sync-wallet", false,
		"Enqueue a bulk wallet job for the imported cards")
}

func runImport(cmd *cobra.Command, args []string) error {
	companyID, path := args[0], args[1]

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := company.NewStore(database).Get(companyID); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	result, err := card.NewStore(database).ImportCSV(companyID, f, logger.Logger)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d cards (%d skipped)\n", result.Created, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Printf("  skipped: %s\n", msg)
	}

	if !importSyncWalletFlag || len(result.CardIDs) == 0 {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	stuckAfter := time.Duration(cfg.Bulk.StuckAfterMinutes) * time.Minute

	job, err := bulk.Enqueue(bulk.NewStore(database), companyID, bulk.KindWalletSync,
		result.CardIDs, time.Now(), stuckAfter)
	if err != nil {
		return errors.Wrap(err, "import succeeded but wallet job could not be enqueued")
	}
	fmt.Printf("Enqueued wallet job %s for %d cards\n", job.ID, job.TotalItems)
	return nil
}
