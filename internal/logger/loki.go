package logger

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/Vatsal-Thapliyal/joblisting/internal/config"
	"github.com/Vatsal-Thapliyal/joblisting/pkg/loki"
	log "github.com/sirupsen/logrus"
)

type logrusAdapter struct {
}

func (l *logrusAdapter) Error(msg string, args ...any) {
	log.WithFields(log.Fields{"args": args, "source": "loki"}).Error(msg)
}

type lokiHook struct {
	pusher *loki.Pusher
}

func (h *lokiHook) Fire(entry *log.Entry) error {

	if entry.Data["source"] == "loki" {
		return nil
	}

	caller := ""
	if entry.Caller != nil {
		caller = filepath.Base(entry.Caller.Function) + ":" + strconv.Itoa(entry.Caller.Line)
	}

	return h.pusher.Push(loki.LogEntry{
		Level:   entry.Level.String(),
		Message: entry.Message,
		Caller:  caller,
	})
}

func (h *lokiHook) Levels() []log.Level {
	return log.AllLevels
}

func addLokiHook(cfg config.LoggerConfig) error {

	pusher, err := loki.New(context.Background(), loki.Config{
		Url:      cfg.LokiURL,
		Username: cfg.LokiUser,
		Password: cfg.LokiPassword,
		Labels:   map[string]string{"app": cfg.AppName},
	}, &logrusAdapter{})

	if err != nil {
		return err
	}

	log.AddHook(&lokiHook{pusher: pusher})
	log.Info("Loki logging enabled")
	return nil
}
