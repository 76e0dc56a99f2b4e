package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
)

// BulkCmd groups bulk job operations
var BulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Inspect and drive bulk jobs",
	Long: `Inspect and drive bulk jobs.

Examples:
  cardrail bulk run --kind wallet   # One wallet processing pass, then exit
  cardrail bulk run --kind email    # One email processing pass, then exit
  cardrail bulk ls --company <id>   # List a company's jobs
  cardrail bulk show <job-id>       # Job details with per-item outcomes
  cardrail bulk cleanup             # Remove terminal jobs past retention`,
}

var bulkRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one processing pass for a job kind",
	Long: `Run a single processing tick: claim the oldest eligible job of the
given kind, drain one batch of its items, and exit. Suitable for cron-style
operation without the long-running dispatcher.`,
	RunE: runBulkRun,
}

var bulkLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List a company's bulk jobs",
	RunE:  runBulkLs,
}

var bulkShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job with its per-item outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runBulkShow,
}

var bulkCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove terminal jobs older than the retention window",
	RunE:  runBulkCleanup,
}

var (
	bulkKindFlag    string
	bulkCompanyFlag string
	bulkLimitFlag   int
)

func init() {
	BulkCmd.AddCommand(bulkRunCmd)
	BulkCmd.AddCommand(bulkLsCmd)
	BulkCmd.AddCommand(bulkShowCmd)
	BulkCmd.AddCommand(bulkCleanupCmd)

	bulkRunCmd.Flags().StringVar(&bulkKindFlag, "kind", "", "Job kind: wallet or email (required)")
	bulkRunCmd.MarkFlagRequired("kind")

	bulkLsCmd.Flags().StringVar(&bulkCompanyFlag, "company", "", "Company ID (required)")
	bulkLsCmd.Flags().StringVar(&bulkKindFlag, "kind", "", "Filter by kind: wallet or email")
	bulkLsCmd.Flags().IntVar(&bulkLimitFlag, "limit", 20, "Maximum jobs to list")
	bulkLsCmd.MarkFlagRequired("company")
}

// kindFromFlag maps the CLI spelling onto the stored kind name
func kindFromFlag(flag string) (bulk.KindName, error) {
	switch flag {
	case "wallet":
		return bulk.KindWalletSync, nil
	case "email":
		return bulk.KindEmail, nil
	default:
		return "", errors.Newf("unknown kind %q (use wallet or email)", flag)
	}
}

func runBulkRun(cmd *cobra.Command, args []string) error {
	kindName, err := kindFromFlag(bulkKindFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	emitter := bulk.NewEmitter()
	dispatcher, err := buildDispatcher(cmd.Context(), cfg, database, emitter)
	if err != nil {
		return err
	}
	processor, ok := dispatcher.ProcessorFor(kindName)
	if !ok {
		return errors.Newf("no processor configured for kind %s", kindName)
	}

	logger.Infow("Running one processing pass", logger.FieldKind, kindName)
	if err := processor.Tick(cmd.Context()); err != nil {
		return errors.Wrap(err, "processing pass failed")
	}
	logger.Infow("Processing pass complete", logger.FieldKind, kindName)
	return nil
}

func runBulkLs(cmd *cobra.Command, args []string) error {
	var kind *bulk.KindName
	if bulkKindFlag != "" {
		k, err := kindFromFlag(bulkKindFlag)
		if err != nil {
			return err
		}
		kind = &k
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	jobs, err := bulk.NewStore(database).ListJobs(bulkCompanyFlag, kind, bulkLimitFlag)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No bulk jobs found")
		return nil
	}

	fmt.Printf("%-36s  %-11s  %-10s  %9s  %s\n", "ID", "KIND", "STATUS", "PROGRESS", "CREATED")
	for _, job := range jobs {
		fmt.Printf("%-36s  %-11s  %-10s  %4d/%-4d  %s\n",
			job.ID, job.Kind, job.Status,
			job.ProcessedItems, job.TotalItems,
			job.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runBulkShow(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := bulk.NewStore(database)
	job, err := store.GetJob(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job:       %s\n", job.ID)
	fmt.Printf("Company:   %s\n", job.CompanyID)
	fmt.Printf("Kind:      %s\n", job.Kind)
	fmt.Printf("Status:    %s\n", job.Status)
	fmt.Printf("Progress:  %d/%d (%.0f%%)\n", job.ProcessedItems, job.TotalItems, job.Percentage())
	if job.LastProcessedAt != nil {
		fmt.Printf("Heartbeat: %s\n", job.LastProcessedAt.Format(time.RFC3339))
	}
	if job.Reason != "" {
		fmt.Printf("Reason:    %s\n", job.Reason)
	}

	items, err := store.ListItems(job.ID)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-4s  %-36s  %-8s  %s\n", "SEQ", "CARD", "STATUS", "REASON")
	for _, item := range items {
		fmt.Printf("%-4d  %-36s  %-8s  %s\n", item.Seq, item.CardID, item.Status, item.Reason)
	}
	return nil
}

func runBulkCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	retention := time.Duration(cfg.Bulk.RetentionDays) * 24 * time.Hour
	removed, err := bulk.NewStore(database).CleanupOldJobs(time.Now(), retention)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d terminal jobs older than %d days\n", removed, cfg.Bulk.RetentionDays)
	return nil
}
