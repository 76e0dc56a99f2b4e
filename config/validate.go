package config

import "github.com/cardrail/cardrail/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 8717)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Batch sizes must allow progress
	if c.Bulk.WalletBatchSize <= 0 {
		return errors.Newf("bulk.wallet_batch_size must be > 0, got %d", c.Bulk.WalletBatchSize)
	}
	if c.Bulk.EmailBatchSize <= 0 {
		return errors.Newf("bulk.email_batch_size must be > 0, got %d", c.Bulk.EmailBatchSize)
	}

	// Dispatcher intervals: 0 = no periodic ticking (cron-driven one-shots), negative = invalid
	if c.Bulk.WalletIntervalSeconds < 0 {
		return errors.Newf("bulk.wallet_interval_seconds must be >= 0, got %d", c.Bulk.WalletIntervalSeconds)
	}
	if c.Bulk.EmailIntervalSeconds < 0 {
		return errors.Newf("bulk.email_interval_seconds must be >= 0, got %d", c.Bulk.EmailIntervalSeconds)
	}

	// The reclaim threshold must be positive, and a job must become stuck
	// before it can expire
	if c.Bulk.StuckAfterMinutes <= 0 {
		return errors.Newf("bulk.stuck_after_minutes must be > 0, got %d", c.Bulk.StuckAfterMinutes)
	}
	if c.Bulk.InactiveAfterMinutes <= c.Bulk.StuckAfterMinutes {
		return errors.Newf("bulk.inactive_after_minutes (%d) must exceed bulk.stuck_after_minutes (%d)",
			c.Bulk.InactiveAfterMinutes, c.Bulk.StuckAfterMinutes)
	}

	if c.Wallet.TimeoutSeconds <= 0 {
		return errors.Newf("wallet.timeout_seconds must be > 0, got %d", c.Wallet.TimeoutSeconds)
	}
	if c.Wallet.MaxRequestsPerMinute <= 0 {
		return errors.Newf("wallet.requests_per_minute must be > 0, got %d", c.Wallet.MaxRequestsPerMinute)
	}

	if !c.Mail.DryRun && c.Mail.SMTPHost == "" {
		return errors.New("mail.smtp_host cannot be empty when mail.dry_run is false")
	}

	return nil
}
