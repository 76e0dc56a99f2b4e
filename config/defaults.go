package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "cardrail.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	// Bulk job processing defaults
	v.SetDefault("bulk.wallet_batch_size", 10) // pass builds are slow external calls
	v.SetDefault("bulk.email_batch_size", 50)
	v.SetDefault("bulk.wallet_interval_seconds", 60)
	v.SetDefault("bulk.email_interval_seconds", 60)
	v.SetDefault("bulk.stuck_after_minutes", 10)
	v.SetDefault("bulk.inactive_after_minutes", 30)
	v.SetDefault("bulk.retention_days", 30)

	// Wallet pass API defaults
	v.SetDefault("wallet.timeout_seconds", 30)
	v.SetDefault("wallet.requests_per_minute", 60)
	v.SetDefault("wallet.allow_private_hosts", false)

	// Mail defaults
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from_address", "cards@cardrail.app")
	v.SetDefault("mail.share_base_url", "http://localhost:8717")
	v.SetDefault("mail.dry_run", true)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("wallet.api_key", "CARDRAIL_WALLET_API_KEY")
	v.BindEnv("mail.username", "CARDRAIL_MAIL_USERNAME")
	v.BindEnv("mail.password", "CARDRAIL_MAIL_PASSWORD")
}
