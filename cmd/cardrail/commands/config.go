package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
)

// ConfigCmd groups configuration operations
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Show and edit Cardrail configuration.

Configuration is read from cardrail.toml (searched upward from the working
directory), CARDRAIL_* environment variables, and built-in defaults.

Examples:
  cardrail config show   # Effective configuration as TOML
  cardrail config init   # Write the effective configuration to cardrail.toml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to cardrail.toml",
	RunE:  runConfigInit,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if path := config.ProjectConfigPath(); path != "" {
		fmt.Printf("# loaded from %s\n", path)
	} else {
		fmt.Println("# defaults and environment only (no cardrail.toml found)")
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to render configuration")
	}
	fmt.Print(string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	path := "cardrail.toml"
	if existing := config.ProjectConfigPath(); existing != "" {
		path = existing
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
