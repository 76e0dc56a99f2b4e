package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
	"github.com/cardrail/cardrail/mail"
	"github.com/cardrail/cardrail/server"
	"github.com/cardrail/cardrail/wallet"
)

// ServeCmd starts the API server with background bulk processing
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cardrail API server",
	Long: `Start the Cardrail API server with the bulk job dispatcher.

The dispatcher runs one processing loop per job kind: wallet syncs and card
emails are drained in batches on their configured intervals. Job progress is
streamed to dashboard clients over /ws/jobs.`,
	RunE: runServe,
}

var serveNoDispatchFlag bool

func init() {
	ServeCmd.Flags().BoolVar(&serveNoDispatchFlag, "no-dispatch", false,
		"Serve the API without background job processing")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	var dispatcher *bulk.Dispatcher
	if !serveNoDispatchFlag {
		dispatcher, err = buildDispatcher(cmd.Context(), cfg, database, emitter)
		if err != nil {
			return err
		}
		dispatcher.Start()
		defer dispatcher.Stop()
	}

	if path := config.ProjectConfigPath(); path != "" {
		watcher, err := config.NewWatcher(path)
		if err != nil {
			logger.Warnw("Failed to watch config file", "path", path, "error", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(next *config.Config) error {
				if next.Bulk != cfg.Bulk {
					logger.Warnw("Bulk settings changed on disk, restart to apply them")
				}
				return nil
			})
		}
	}

	srv := server.New(cfg, database, emitter, dispatcher, logger.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Infow("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildDispatcher wires the per-kind processors from configuration. A
// missing wallet provider disables wallet processing rather than failing
// startup; enqueued wallet jobs simply wait for it to be configured.
func buildDispatcher(ctx context.Context, cfg *config.Config, database *sql.DB, emitter *bulk.Emitter) (*bulk.Dispatcher, error) {
	jobs := bulk.NewStore(database)
	cards := card.NewStore(database)
	stuckAfter := time.Duration(cfg.Bulk.StuckAfterMinutes) * time.Minute

	dispatcher := bulk.NewDispatcher(ctx, logger.Logger)

	if cfg.Wallet.BaseURL != "" {
		builder, err := wallet.NewClient(cfg.Wallet, logger.Logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build wallet client")
		}
		walletKind := bulk.NewWalletKind(cards, builder, cfg.Bulk.WalletBatchSize, logger.Logger)
		walletProc := bulk.NewProcessor(jobs, walletKind, stuckAfter, logger.Logger, bulk.WithEmitter(emitter))
		dispatcher.Register(walletProc, time.Duration(cfg.Bulk.WalletIntervalSeconds)*time.Second)
	} else {
		logger.Warnw("Wallet provider not configured, wallet jobs will not be processed")
	}

	sender, err := mail.NewSender(cfg.Mail, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build mail sender")
	}
	emailKind := bulk.NewEmailKind(cards, sender,
		cfg.Bulk.EmailBatchSize,
		time.Duration(cfg.Bulk.InactiveAfterMinutes)*time.Minute,
		logger.Logger)
	emailProc := bulk.NewProcessor(jobs, emailKind, stuckAfter, logger.Logger, bulk.WithEmitter(emitter))
	dispatcher.Register(emailProc, time.Duration(cfg.Bulk.EmailIntervalSeconds)*time.Second)

	return dispatcher, nil
}
