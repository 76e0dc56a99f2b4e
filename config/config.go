// Package config holds the Cardrail configuration: typed structs loaded via
// Viper from cardrail.toml, environment variables, and built-in defaults.
package config

// Config represents the core Cardrail configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Bulk     BulkConfig     `mapstructure:"bulk" toml:"bulk"`
	Wallet   WalletConfig   `mapstructure:"wallet" toml:"wallet"`
	Mail     MailConfig     `mapstructure:"mail" toml:"mail"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig configures the Cardrail API server
type ServerConfig struct {
	Port           *int     `mapstructure:"port" toml:"port"` // nil = default 8717, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort = 8717
)

// BulkConfig configures the bulk job processing subsystem (core infrastructure)
type BulkConfig struct {
	// Batch sizes per job kind. Wallet pass builds are expensive external
	// calls, email sends are cheap, hence the asymmetry.
	WalletBatchSize int `mapstructure:"wallet_batch_size" toml:"wallet_batch_size"` // items per tick (default: 10)
	EmailBatchSize  int `mapstructure:"email_batch_size" toml:"email_batch_size"`   // items per tick (default: 50)

	// Dispatcher tick intervals
	WalletIntervalSeconds int `mapstructure:"wallet_interval_seconds" toml:"wallet_interval_seconds"` // default: 60
	EmailIntervalSeconds  int `mapstructure:"email_interval_seconds" toml:"email_interval_seconds"`   // default: 60

	// Liveness thresholds
	StuckAfterMinutes    int `mapstructure:"stuck_after_minutes" toml:"stuck_after_minutes"`       // reclaim threshold (default: 10)
	InactiveAfterMinutes int `mapstructure:"inactive_after_minutes" toml:"inactive_after_minutes"` // email expiry threshold (default: 30)

	// Retention for terminal jobs
	RetentionDays int `mapstructure:"retention_days" toml:"retention_days"` // default: 30
}

// WalletConfig configures the wallet pass API collaborator
type WalletConfig struct {
	BaseURL              string `mapstructure:"base_url" toml:"base_url"`
	APIKey               string `mapstructure:"api_key" toml:"api_key"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`         // per pass build (default: 30)
	MaxRequestsPerMinute int    `mapstructure:"requests_per_minute" toml:"requests_per_minute"` // rate limit toward the pass API (default: 60)
	AllowPrivateHosts    bool   `mapstructure:"allow_private_hosts" toml:"allow_private_hosts"` // permit private-IP base URLs (dev only)
}

// MailConfig configures outbound card emails
type MailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host" toml:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" toml:"smtp_port"`
	Username     string `mapstructure:"username" toml:"username"`
	Password     string `mapstructure:"password" toml:"password"`
	FromAddress  string `mapstructure:"from_address" toml:"from_address"`
	ShareBaseURL string `mapstructure:"share_base_url" toml:"share_base_url"` // public base for card links in emails
	DryRun       bool   `mapstructure:"dry_run" toml:"dry_run"`               // log instead of send (dev default)
}
