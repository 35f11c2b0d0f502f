package app

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config contains global runtime configuration.
type Config struct {
	Workspace     string
	ExtensionsDir string
	LogLevel      string
	Prompt        string
	TUI           bool
	BootChecks    bool
	NoBanner      bool
	ScanTimeout   time.Duration
	ScanWorkers   int
}

// LoadConfigFromViper builds Config from Viper-bound flags, env and config file.
func LoadConfigFromViper() (Config, error) {
	cfg := Config{
		Workspace:     viper.GetString("workspace"),
		ExtensionsDir: viper.GetString("extensions_dir"),
		LogLevel:      viper.GetString("log_level"),
		Prompt:        viper.GetString("prompt"),
		TUI:           viper.GetBool("tui"),
		BootChecks:    viper.GetBool("boot_checks"),
		NoBanner:      viper.GetBool("no_banner"),
		ScanTimeout:   viper.GetDuration("scan.timeout"),
		ScanWorkers:   viper.GetInt("scan.workers"),
	}
	return cfg, cfg.Validate()
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace cannot be empty")
	}
	if c.ExtensionsDir == "" {
		return fmt.Errorf("extensions directory cannot be empty")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive, got %s", c.ScanTimeout)
	}
	if c.ScanWorkers <= 0 {
		return fmt.Errorf("scan workers must be positive, got %d", c.ScanWorkers)
	}
	return nil
}
