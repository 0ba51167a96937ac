package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/announce/internal/api"
	"github.com/ignite/announce/internal/app"
	"github.com/ignite/announce/internal/config"
	"github.com/ignite/announce/internal/tracking"
	"github.com/ignite/announce/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is already in use: %v\n"+
			"  Hint: Run 'lsof -i %s' to find the blocking process", addr, err, addr)
	}
	ln.Close()
	return nil
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	log.Println("Starting announce admin server...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	handlers := api.NewHandlers(api.Deps{
		Campaigns: a.Campaigns,
		Contacts:  a.Contacts,
		Dispatch:  a.Dispatch,
		Analytics: a.Analytics,
		Locks:     a.Locks,
	})
	router := api.SetupRoutes(handlers, api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		Orgs:           api.NewOrgContextProvider(cfg.Server.DevMode, cfg.Server.DefaultOrgID),
		Health:         api.NewHealthChecker(a.DB, a.UniversalRedis(), a.Jobs),
		MetricsHandler: a.Metrics.Handler(),
	})
	servers := []*http.Server{newHTTPServer(addr, router)}

	// Without Redis the job queue lives in this process, so the workers
	// and the tracking endpoints have to run here too.
	var (
		pool      *worker.DispatchPool
		scheduler *worker.Scheduler
	)
	singleProcess := a.Redis == nil
	if singleProcess {
		log.Println("REDIS_URL not set: running dispatch workers and tracking in-process")
		pool = worker.NewDispatchPool(a.Jobs, a.Dispatch, a.Locks, cfg.Dispatch.Workers)
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("Failed to start dispatch pool: %v", err)
		}

		trackingHandler := tracking.NewHandler(a.Ingest, tracking.Config{
			FallbackURL:      cfg.Tracking.FallbackURL,
			WebhookSecret:    cfg.Tracking.WebhookSecret,
			OrganizationName: cfg.Render.OrganizationName,
		}, nil)
		trackingAddr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Tracking.Port)
		servers = append(servers, newHTTPServer(trackingAddr, trackingHandler.Routes()))
	}
	if cfg.Scheduler.Enabled || singleProcess {
		scheduler = worker.NewScheduler(a.CampaignRepo, a.Campaigns, a.Jobs, cfg.Scheduler.Spec, cfg.Dispatch.StaleAfter())
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Printf("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		}(srv)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	if pool != nil {
		pool.Stop()
	}

	log.Println("Server stopped")
}
