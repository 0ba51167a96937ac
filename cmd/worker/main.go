package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/announce/internal/app"
	"github.com/ignite/announce/internal/config"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/tracking"
	"github.com/ignite/announce/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	log.Println("Starting announce dispatch worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if cfg.Redis.URL == "" {
		log.Fatal("REDIS_URL is required: the worker reads jobs from the shared Redis queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	pool := worker.NewDispatchPool(a.Jobs, a.Dispatch, a.Locks, cfg.Dispatch.Workers)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start dispatch pool: %v", err)
	}
	log.Printf("Dispatch pool started with %d workers", cfg.Dispatch.Workers)

	var scheduler *worker.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = worker.NewScheduler(a.CampaignRepo, a.Campaigns, a.Jobs, cfg.Scheduler.Spec, cfg.Dispatch.StaleAfter())
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		log.Printf("Scheduler started (%s)", cfg.Scheduler.Spec)
	}

	var consumer *tracking.Consumer
	if cfg.SQS.Enabled {
		sqsClient, err := app.NewSQSClient(ctx, cfg.SQS.Region)
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		consumer = tracking.NewConsumer(sqsClient, cfg.SQS.QueueURL, a.Events)
		consumer.Start(ctx)
		log.Printf("Tracking consumer started on %s", cfg.SQS.QueueURL)
	}

	// Queue depth gauge and heartbeat.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.Jobs.Len(ctx)
				if err != nil {
					log.Printf("Worker heartbeat: queue length: %v", err)
					continue
				}
				metrics.SetQueueDepth(n)
				s := pool.Stats()
				log.Printf("Worker heartbeat - queued=%d processed=%d", n, s.Processed)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	if scheduler != nil {
		scheduler.Stop()
	}
	if consumer != nil {
		consumer.Stop()
	}
	cancel()
	pool.Stop()

	log.Println("Worker stopped")
}
