package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

const validConfig = `
logger:
  log_level: INFO
  app_name: joblisting
  output_file: ./logs/errors.log

db:
  connection_string: test.db

importer:
  sources:
    - https://jobs.example.org/feed.xml
  import_schedule: "0 */6 * * *"

queue:
  topic: job.import
  channel: importer
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func Test_LoadConfig_ShouldApplyDefaults(t *testing.T) {

	assert := assert.New(t)
	viper.Reset()

	config, err := loadConfig(writeConfig(t, validConfig))
	assert.NoError(err)

	assert.Equal([]string{"https://jobs.example.org/feed.xml"}, config.Importer.Sources)
	assert.Equal(100, config.Importer.BatchSize)
	assert.Equal(30*time.Second, config.Importer.FetchTimeout)
	assert.Equal(3, config.Importer.MaxAttempts)
	assert.Equal(2*time.Second, config.Importer.RetryBackoff)
	assert.Equal(time.Hour, config.Importer.StaleAfter)

	assert.Equal("memory", config.Queue.Backend)
	assert.Equal(10, config.Queue.Concurrency)
	assert.Equal(float32(100), config.Queue.ItemsPerSecond)
}

func Test_LoadConfig_ShouldPreferEnvironmentOverFile(t *testing.T) {

	assert := assert.New(t)
	viper.Reset()

	t.Setenv("IMPORT_BATCH_SIZE", "25")
	t.Setenv("QUEUE_CONCURRENCY", "4")

	config, err := loadConfig(writeConfig(t, validConfig))
	assert.NoError(err)

	assert.Equal(25, config.Importer.BatchSize)
	assert.Equal(4, config.Queue.Concurrency)
}

func Test_LoadConfig_WithoutSources_ShouldFail(t *testing.T) {

	viper.Reset()

	noSources := `
logger:
  log_level: INFO
  app_name: joblisting
  output_file: ./logs/errors.log

db:
  connection_string: test.db

importer:
  import_schedule: "0 */6 * * *"
`
	_, err := loadConfig(writeConfig(t, noSources))
	assert.ErrorContains(t, err, "sources")
}

func Test_LoadConfig_WithUnknownQueueBackend_ShouldFail(t *testing.T) {

	viper.Reset()

	unknownBackend := validConfig + `
  backend: carrier-pigeon
`
	_, err := loadConfig(writeConfig(t, unknownBackend))
	assert.ErrorContains(t, err, "queue backend")
}

func Test_LoadConfig_NsqBackendWithoutAddress_ShouldFail(t *testing.T) {

	viper.Reset()

	t.Setenv("QUEUE_BACKEND", "nsq")

	_, err := loadConfig(writeConfig(t, validConfig))
	assert.ErrorContains(t, err, "nsqd_address")
}

func Test_LoadConfig_MissingFile_ShouldFail(t *testing.T) {

	viper.Reset()

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
