package main

import (
	"os/signal"
	"syscall"

	"context"

	"github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"
	"github.com/Vatsal-Thapliyal/joblisting/internal/config"
	"github.com/Vatsal-Thapliyal/joblisting/internal/importer"
	"github.com/Vatsal-Thapliyal/joblisting/internal/logger"
	"github.com/Vatsal-Thapliyal/joblisting/internal/metrics"
	"github.com/Vatsal-Thapliyal/joblisting/internal/queue"
	"github.com/Vatsal-Thapliyal/joblisting/internal/repositories"
	"github.com/Vatsal-Thapliyal/joblisting/internal/services"
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

func newQueue(cfg *config.Config) (queue.Queue, error) {

	options := queue.Options{
		Concurrency:    cfg.Queue.Concurrency,
		MaxAttempts:    cfg.Importer.MaxAttempts,
		Backoff:        cfg.Importer.RetryBackoff,
		ItemsPerSecond: cfg.Queue.ItemsPerSecond,
	}

	if cfg.Queue.Backend == "nsq" {
		return queue.NewNSQ(cfg.Queue.NsqdAddress, cfg.Queue.Topic, cfg.Queue.Channel, options)
	}
	return queue.NewMemory(options), nil
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer()

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	if err = dbContext.Migrate(); err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	jobs := repositories.NewJobsRepository(dbContext.DB)
	runs := repositories.NewRunsRepository(dbContext.DB)

	bus := EventBus.New()
	if _, err = services.NewRunReporter(bus); err != nil {
		log.Fatalf("can't create run reporter: %v", err)
	}

	tracker := importer.NewRunTracker(runs, bus)

	importQueue, err := newQueue(cfg)
	if err != nil {
		log.Fatalf("can't create import queue: %v", err)
	}

	worker := importer.NewWorker(jobs, tracker, cfg.Importer.MaxAttempts, cfg.Importer.RetryBackoff)
	if err = importQueue.Consume(worker.Handle); err != nil {
		log.Fatalf("can't start queue consumer: %v", err)
	}

	feedClient := feeds.NewClient()
	feedClient.SetTimeout(cfg.Importer.FetchTimeout)

	service := importer.NewService(feedClient, tracker, importQueue, cfg.Importer.Sources, cfg.Importer.BatchSize)

	scheduler, err := services.NewImportScheduler(service, cfg.Importer.ImportSchedule)
	if err != nil {
		log.Fatalf("can't create import scheduler: %v", err)
	}
	defer scheduler.Stop()

	staleReporter, err := services.NewStaleRunReporter(runs, cfg.Importer.StaleAfter)
	if err != nil {
		log.Fatalf("can't create stale run reporter: %v", err)
	}
	defer staleReporter.Stop()

	go service.RunAll(ctx)

	<-ctx.Done()

	log.Info("Shutting down services...")
	importQueue.Stop()
	log.Info("Services stopped.")
}
