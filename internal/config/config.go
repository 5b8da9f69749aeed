package config

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	DB       DBConfig       `mapstructure:"db"`
	Importer ImporterConfig `mapstructure:"importer"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

var configFile = "./configs/config.yaml"

func Get() *Config {

	if value, ok := os.LookupEnv("CONFIG_PATH"); ok {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	viper.SetConfigFile(file)
	viper.AutomaticEnv()

	setDefaults()

	if err := bindEnvironmentVariables(); err != nil {
		return nil, err
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Config{}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("importer.batch_size", 100)
	viper.SetDefault("importer.fetch_timeout", "30s")
	viper.SetDefault("importer.max_attempts", 3)
	viper.SetDefault("importer.retry_backoff", "2s")
	viper.SetDefault("importer.stale_after", "1h")
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.items_per_second", 100)
	viper.SetDefault("queue.backend", "memory")
}

func bindEnvironmentVariables() error {
	var errs []error

	db, logger, importer, queue := DBConfig{}, LoggerConfig{}, ImporterConfig{}, QueueConfig{}

	if err := db.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := logger.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := importer.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("ImporterConfig: %w", err))
	}

	if err := queue.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("QueueConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.Importer.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ImporterConfig: %w", err))
	}

	if err := config.Queue.validate(); err != nil {
		errs = append(errs, fmt.Errorf("QueueConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
