// Package app assembles the services shared by the announce binaries from
// configuration. PostgreSQL and Redis are optional: without them the
// in-memory repositories and queue are used, which suits local runs and
// the sandbox provider.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/announce/internal/config"
	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/linktrack"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/pkg/distlock"
	"github.com/ignite/announce/internal/pkg/logger"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/ratelimit"
	"github.com/ignite/announce/internal/render"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/repository/postgres"
	"github.com/ignite/announce/internal/sending"
	"github.com/ignite/announce/internal/service/analytics"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/contact"
	"github.com/ignite/announce/internal/service/dispatch"
	"github.com/ignite/announce/internal/service/ingest"
	"github.com/ignite/announce/internal/storage"
	"github.com/ignite/announce/internal/worker"
)

type campaignStore interface {
	campaign.Repository
	worker.CampaignLister
}

type eventStore interface {
	dispatch.EventStore
	analytics.EventReader
}

type linkStore interface {
	linktrack.LinkStore
	ingest.LinkRepository
	analytics.LinkReader
}

type feedbackStore interface {
	ingest.FeedbackRepository
	analytics.FeedbackReader
}

// App holds the wired services. Fields for optional backends are nil when
// the backend is not configured.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics

	Jobs    queue.Queue
	Cancels queue.CancelFlags
	Locks   distlock.Factory
	Objects storage.ObjectStore
	Sender  sending.Sender
	Sandbox *sending.SandboxSender

	CampaignRepo campaignStore
	links        linkStore
	feedback     feedbackStore
	Campaigns    *campaign.Service
	Contacts     *contact.Service
	Dispatch     *dispatch.Service
	Analytics    *analytics.Service
	Ingest       *ingest.Service
	// Events is the direct event sink: the event log plus the campaign
	// counters.
	Events *ingest.StoreSink

	closers []func() error
}

// New connects the configured backends and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	a := &App{Config: cfg, Metrics: metrics.New()}
	metrics.SetGlobal(a.Metrics)

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
		a.DB = db
		a.closers = append(a.closers, db.Close)
		log.Println("[app] PostgreSQL connected")
	} else {
		log.Println("[app] DATABASE_URL not set, using in-memory repositories")
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		a.closers = append(a.closers, client.Close)
		log.Println("[app] Redis connected")
	}
	return nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	var (
		campaigns campaignStore
		contacts  contact.Repository
		events    eventStore
		links     linkStore
		feedback  feedbackStore
	)
	if a.DB != nil {
		campaigns = postgres.NewCampaignRepo(a.DB)
		contacts = postgres.NewContactRepo(a.DB)
		events = postgres.NewEventRepo(a.DB)
		links = postgres.NewLinkRepo(a.DB)
		feedback = postgres.NewFeedbackRepo(a.DB)
	} else {
		mc := memory.NewCampaignRepo()
		campaigns = mc
		contacts = memory.NewContactRepo()
		events = memory.NewEventRepo(mc)
		links = memory.NewLinkRepo()
		feedback = memory.NewFeedbackRepo()
	}
	a.CampaignRepo = campaigns
	a.links = links
	a.feedback = feedback

	if a.Redis != nil {
		a.Jobs = queue.NewRedisQueue(a.Redis)
		a.Cancels = queue.NewRedisCancelFlags(a.Redis, cfg.Dispatch.CancelTTL())
		a.Locks = distlock.NewFactory(a.Redis, a.DB, cfg.Dispatch.LockTTL())
	} else {
		a.Jobs = queue.NewMemoryQueue(1000)
		a.Cancels = queue.NewMemoryCancelFlags()
		a.Locks = distlock.NewFactory(nil, a.DB, cfg.Dispatch.LockTTL())
	}

	objects, err := newObjectStore(ctx, cfg.S3)
	if err != nil {
		return err
	}
	a.Objects = objects

	if err := a.buildSender(ctx); err != nil {
		return err
	}

	var getter contact.ObjectGetter
	if objects != nil {
		getter = objects
	}
	contactSvc := contact.NewService(contacts, getter)
	a.Contacts = contactSvc
	a.Campaigns = campaign.NewService(campaigns, contactSvc, a.Jobs, a.Cancels)

	a.Dispatch = dispatch.NewService(dispatch.Deps{
		Campaigns: campaigns,
		Audience:  contactSvc,
		Events:    events,
		Links:     links,
		Sender:    a.Sender,
		Tracker:   linktrack.New(cfg.Tracking.BaseURL, cfg.Tracking.Secret),
		Cancels:   a.Cancels,
	}, dispatch.Config{
		BaseURL:        cfg.Tracking.BaseURL,
		UnsubscribeURL: cfg.Render.UnsubscribeURL,
		FromName:       cfg.Provider.FromName,
		FromEmail:      cfg.Provider.FromEmail,
		BatchSize:      cfg.Dispatch.BatchSize,
		PacingDelay:    cfg.Dispatch.PacingDelay(),
		Footer: render.Footer{
			OrganizationName: cfg.Render.OrganizationName,
			CreditText:       cfg.Render.CreditText,
			UnsubscribeURL:   cfg.Render.UnsubscribeURL,
			UnsubscribeText:  cfg.Render.UnsubscribeText,
		},
		Labels: render.Labels{
			FollowUs:  cfg.Render.FollowUsLabel,
			NPSPrompt: cfg.Render.NPSPrompt,
		},
	})

	a.Analytics = analytics.NewService(analytics.Deps{
		Campaigns:    campaigns,
		Events:       events,
		Links:        links,
		Feedback:     feedback,
		Objects:      objects,
		ReportPrefix: cfg.S3.ReportPrefix,
	})

	a.Events = ingest.NewStoreSink(events, campaigns)
	a.Ingest = ingest.NewService(a.Events, links, feedback)
	return nil
}

// UniversalRedis returns the Redis client, or a nil interface when Redis
// is not configured.
func (a *App) UniversalRedis() redis.UniversalClient {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

// WithSink returns an ingest service that writes events to sink instead
// of the store, sharing the link and feedback repositories.
func (a *App) WithSink(sink ingest.EventSink) *ingest.Service {
	return ingest.NewService(sink, a.links, a.feedback)
}

func (a *App) buildSender(ctx context.Context) error {
	cfg := a.Config.Provider
	var (
		sender   sending.Sender
		provider domain.Provider
	)
	switch cfg.Kind {
	case "resend":
		sender = sending.NewResendSender(cfg.Resend.APIKey, cfg.Resend.BaseURL, cfg.Resend.MaxRetries, &http.Client{Timeout: cfg.Resend.Timeout()})
		provider = domain.ProviderResend
	case "ses":
		client, err := sending.NewSESClient(ctx, cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey)
		if err != nil {
			return err
		}
		sender = sending.NewSESSender(client, cfg.SES.ConfigurationSet)
		provider = domain.ProviderSES
	case "sandbox":
		sb, err := a.OpenSandbox()
		if err != nil {
			return err
		}
		a.Sandbox = sb
		a.Sender = sb
		log.Printf("[app] sandbox provider, messages captured in %s", a.Config.Sandbox.Path)
		return nil
	default:
		return fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}

	if a.Redis == nil {
		log.Printf("[app] WARNING: REDIS_URL not set, %s sends are not rate limited", provider)
		a.Sender = sender
		return nil
	}
	limits := make(map[string]ratelimit.Limit, len(cfg.Limits))
	for name, l := range cfg.Limits {
		limits[name] = ratelimit.Limit{PerSecond: l.PerSecond, PerMinute: l.PerMinute, PerDay: l.PerDay}
	}
	a.Sender = sending.NewThrottled(sender, ratelimit.New(a.Redis, limits), provider)
	log.Printf("[app] %s provider with rate limiting", provider)
	return nil
}

// OpenSandbox opens the sandbox capture database, creating its directory.
// The sandbox is closed with the app.
func (a *App) OpenSandbox() (*sending.SandboxSender, error) {
	if a.Sandbox != nil {
		return a.Sandbox, nil
	}
	path := a.Config.Sandbox.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	sb, err := sending.OpenSandbox(path)
	if err != nil {
		return nil, err
	}
	a.Sandbox = sb
	a.closers = append(a.closers, sb.Close)
	return sb, nil
}

// NewSQSClient builds an SQS client from the default credential chain.
func NewSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func newObjectStore(ctx context.Context, cfg config.S3Config) (storage.ObjectStore, error) {
	switch {
	case cfg.Bucket != "":
		s, err := storage.NewS3StoreFromEnv(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, err
		}
		log.Printf("[app] object storage: s3://%s", cfg.Bucket)
		return s, nil
	case cfg.LocalDir != "":
		s, err := storage.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		log.Printf("[app] object storage: %s", cfg.LocalDir)
		return s, nil
	}
	return nil, nil
}

// Close releases every backend in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
