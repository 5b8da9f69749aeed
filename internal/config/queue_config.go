package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type QueueConfig struct {
	Backend        string  `mapstructure:"backend"` // "memory" or "nsq"
	Concurrency    int     `mapstructure:"concurrency"`
	ItemsPerSecond float32 `mapstructure:"items_per_second"`
	NsqdAddress    string  `mapstructure:"nsqd_address"`
	Topic          string  `mapstructure:"topic"`
	Channel        string  `mapstructure:"channel"`
}

func (config QueueConfig) validate() error {

	if config.Backend != "memory" && config.Backend != "nsq" {
		return fmt.Errorf("unknown queue backend: %s", config.Backend)
	}

	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than zero")
	}

	if config.Backend == "nsq" && config.NsqdAddress == "" {
		return fmt.Errorf("missing variable: nsqd_address")
	}

	return nil
}

func (config QueueConfig) bindEnvironmentVariables() error {

	if err := viper.BindEnv("queue.backend", "QUEUE_BACKEND"); err != nil {
		return err
	}

	if err := viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY"); err != nil {
		return err
	}

	return viper.BindEnv("queue.nsqd_address", "NSQD_ADDRESS")
}
