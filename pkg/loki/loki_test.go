package loki

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockLogger struct{}

func (m *mockLogger) Error(msg string, args ...any) {
}

func Test_ConfigValidation(t *testing.T) {
	cfg := Config{}
	_, err := New(context.Background(), cfg, &mockLogger{})
	assert.Error(t, err)

	cfg.Url = "http://loki.local/loki/api/v1/push"
	pusher, err := New(context.Background(), cfg, &mockLogger{})
	assert.NoError(t, err)
	assert.Equal(t, cfg.Url, pusher.config.Url)
	assert.Equal(t, 1000, pusher.config.BatchMaxSize)
	assert.Equal(t, 5*time.Second, pusher.config.BatchMaxWait)
	assert.Equal(t, map[string]string{}, pusher.config.Labels)
	pusher.Stop()
}
