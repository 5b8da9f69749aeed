package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ImporterConfig struct {
	Sources        []string      `mapstructure:"sources"`
	BatchSize      int           `mapstructure:"batch_size"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	ImportSchedule string        `mapstructure:"import_schedule"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

func (config ImporterConfig) validate() error {
	var errs []error

	if len(config.Sources) == 0 {
		errs = append(errs, fmt.Errorf("missing variable: importer sources"))
	}
	if config.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be greater than zero"))
	}
	if config.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max_attempts must be greater than zero"))
	}
	if config.ImportSchedule == "" {
		errs = append(errs, fmt.Errorf("missing variable: import_schedule"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config ImporterConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("importer.batch_size", "IMPORT_BATCH_SIZE"); err != nil {
		return err
	}

	if err := viper.BindEnv("importer.fetch_timeout", "IMPORT_FETCH_TIMEOUT"); err != nil {
		return err
	}

	if err := viper.BindEnv("importer.max_attempts", "IMPORT_MAX_ATTEMPTS"); err != nil {
		return err
	}

	return viper.BindEnv("importer.import_schedule", "IMPORT_SCHEDULE")
}
