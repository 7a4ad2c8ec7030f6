// Package config loads the application configuration: store location, AWS
// defaults, notification topics, budget limits, and the policy document
// source. Policy documents themselves (thresholds, exclusion tags, safety
// switches) live in internal/policy; this file covers only how the binary
// reaches its collaborators.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/finops-kit/costgov/internal/notify"
)

// Config is the top-level application configuration, loaded from
// ~/.config/costgov/config.yaml (or an explicit --config path) with
// COSTGOV_* environment overrides.
type Config struct {
	// StorePath is the SQLite database file location.
	StorePath string `mapstructure:"store_path"`

	AWS     AWSConfig     `mapstructure:"aws"`
	Topics  TopicsConfig  `mapstructure:"topics"`
	Budget  BudgetConfig  `mapstructure:"budget"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Policy  PolicyConfig  `mapstructure:"policy"`
}

// AWSConfig holds AWS defaults used when flags are not provided.
type AWSConfig struct {
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`
}

// TopicsConfig maps notification topics to SNS topic ARNs. Empty ARNs
// fall back to log-only notifications.
type TopicsConfig struct {
	Anomaly    string `mapstructure:"anomaly"`
	Compliance string `mapstructure:"compliance"`
	Budget     string `mapstructure:"budget"`
	Cleanup    string `mapstructure:"cleanup"`
}

// Configured reports whether at least one topic ARN is set.
func (t TopicsConfig) Configured() bool {
	return t.Anomaly != "" || t.Compliance != "" || t.Budget != "" || t.Cleanup != ""
}

// ARNs returns the topic -> ARN map consumed by the SNS notifier.
func (t TopicsConfig) ARNs() map[notify.Topic]string {
	return map[notify.Topic]string{
		notify.TopicAnomaly:    t.Anomaly,
		notify.TopicCompliance: t.Compliance,
		notify.TopicBudget:     t.Budget,
		notify.TopicCleanup:    t.Cleanup,
	}
}

// BudgetConfig holds the spend ceilings in USD. Zero disables the check.
type BudgetConfig struct {
	DailyLimit   float64 `mapstructure:"daily_limit"`
	MonthlyLimit float64 `mapstructure:"monthly_limit"`
}

// ArchiveConfig points at the S3 location for cycle summaries and
// reports. An empty bucket disables archival.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PolicyConfig selects the policy document source. Dir wins over
// SSMPrefix; with neither set the built-in defaults apply.
type PolicyConfig struct {
	// Dir reads <dir>/<name>.yaml documents from disk.
	Dir string `mapstructure:"dir"`
	// SSMPrefix reads documents from SSM Parameter Store under this prefix.
	SSMPrefix string `mapstructure:"ssm_prefix"`
}

// Load reads the configuration. path may be empty, in which case the
// default search locations apply; a missing config file is not an error
// and yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("store_path", "costgov.db")
	v.SetDefault("archive.prefix", "costgov")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/costgov")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COSTGOV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
