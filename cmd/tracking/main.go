package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/announce/internal/app"
	"github.com/ignite/announce/internal/config"
	"github.com/ignite/announce/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	// With SQS enabled, events are published and stored by the worker's
	// consumer; otherwise they are written directly.
	ing := a.Ingest
	var pub *tracking.Publisher
	if cfg.SQS.Enabled {
		sqsClient, err := app.NewSQSClient(ctx, cfg.SQS.Region)
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		pub = tracking.NewPublisher(sqsClient, cfg.SQS.QueueURL)
		ing = a.WithSink(pub)
		log.Printf("tracking events published to %s", cfg.SQS.QueueURL)
	}

	handler := tracking.NewHandler(ing, tracking.Config{
		FallbackURL:      cfg.Tracking.FallbackURL,
		WebhookSecret:    cfg.Tracking.WebhookSecret,
		OrganizationName: cfg.Render.OrganizationName,
	}, a.Metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Tracking.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if pub != nil {
		pub.Wait()
	}
}
