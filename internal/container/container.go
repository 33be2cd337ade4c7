package container

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"carwow/catalog/internal/classifier"
	"carwow/catalog/internal/client"
	"carwow/catalog/internal/config"
	"carwow/catalog/internal/enrich"
	"carwow/catalog/internal/extractor"
	"carwow/catalog/internal/proxy"
	"carwow/catalog/internal/queue"
	"carwow/catalog/internal/repository"
	"carwow/catalog/internal/service"
	"carwow/catalog/internal/sheet"
	"carwow/catalog/internal/state"
	"carwow/catalog/internal/translate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Client       client.SiteClient
	Discovery    client.Discovery
	Repository   repository.VehicleRepository // nil when the database sink is disabled
	Queue        queue.Queue                  // nil without Redis
	StateManager state.StateManager
	Translator   *enrich.MemoTranslator // nil when translation is disabled

	Service *service.Service

	db     *pgxpool.Pool
	redis  *redis.Client
	tracer *sdktrace.TracerProvider // nil when tracing is disabled
}

// New creates a new container with all dependencies initialized. Optional backends that are
// disabled in cfg are left out.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config:       cfg,
		StateManager: state.NewNoopStateManager(),
	}

	if cfg.Trace.Enabled {
		tp, err := newTracerProvider(cfg.Trace, os.Stderr)
		if err != nil {
			return nil, err
		}
		container.tracer = tp
		log.Info("✅ Tracing enabled, spans are written to stderr")
	}

	var proxySupplier proxy.ProxySupplier
	if len(cfg.Site.Proxies) > 0 {
		var err error
		proxySupplier, err = proxy.NewProxySupplier(ctx, cfg.Site.Proxies, cfg.Site.BaseURL)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
		}
		if proxySupplier.Len() == 0 {
			log.Warnf("⚠️ None of the %d configured proxies work, connecting directly", len(cfg.Site.Proxies))
		}
	}

	throttle := client.NewThrottle(
		time.Duration(cfg.Site.MinDelayMillis)*time.Millisecond,
		time.Duration(cfg.Site.JitterMillis)*time.Millisecond,
	)
	container.Client = client.NewSiteClient(cfg.Site, throttle, proxySupplier)
	container.Discovery = client.NewDiscovery(container.Client, cfg.Site.Makers)

	var (
		rateCache enrich.RateCache
		quota     translate.QuotaStore
	)
	if cfg.Redis.Enabled {
		if err := container.connectRedis(ctx); err != nil {
			container.Close()
			return nil, err
		}
		rateCache = state.NewRateCache(container.redis)
		quota = state.NewQuotaStore(container.redis)
	}

	var sinks []service.Sink
	if cfg.Database.Enabled {
		if err := container.connectDatabase(ctx); err != nil {
			container.Close()
			return nil, err
		}
		sinks = append(sinks, container.Repository)
	}
	if cfg.Sheet.Enabled {
		sink, err := newSheetSink(ctx, cfg.Sheet)
		if err != nil {
			container.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		log.Warnf("⚠️ All sinks are disabled, records will not be stored")
	}

	dictionaries, err := enrich.LoadDictionaries()
	if err != nil {
		container.Close()
		return nil, err
	}

	var rate enrich.RateSource = enrich.FixedRate(cfg.Enrich.GBPToJPY)
	if cfg.Enrich.LiveRate {
		rate = enrich.NewLiveRate(cfg.Enrich.RateURL, cfg.Enrich.GBPToJPY,
			time.Duration(cfg.Enrich.RateTTLMinutes)*time.Minute, rateCache)
	}

	switch {
	case !cfg.Translate.Enabled:
		log.Info("Translation disabled")
	case cfg.Translate.AuthKey == "":
		log.Warnf("⚠️ Translation enabled but no auth key configured, only dictionary lookups will be used")
	default:
		provider := translate.NewDeepLClient(cfg.Translate, quota)
		container.Translator = enrich.NewMemoTranslator(provider, cfg.Translate.SourceLang, cfg.Translate.TargetLang)
	}

	host := ""
	if u, err := url.Parse(cfg.Site.BaseURL); err == nil {
		host = u.Hostname()
	}
	vocab := classifier.NewVocabulary(host, cfg.Extract.ExcludeTokens, cfg.Extract.InScopeSuffix)

	container.Service = service.NewService(
		container.Client,
		container.Discovery,
		classifier.New(vocab),
		enrich.NewEnricher(rate, dictionaries, container.Translator),
		sinks,
		container.Queue,
		container.StateManager,
		service.Options{
			Makers:          cfg.Run.Makers,
			Models:          cfg.Run.Models,
			Limit:           cfg.Run.Limit,
			Workers:         cfg.Run.Workers,
			FreshFor:        time.Duration(cfg.Run.FreshHours) * time.Hour,
			RetryFailed:     cfg.Run.RetryFailed,
			FetchSubPages:   cfg.Extract.FetchSubPages,
			DetectBodyTypes: cfg.Enrich.DetectBodyTypes,
			TracerProvider:  container.tracerProvider(),
			Media: extractor.MediaExtractor{
				Max:        cfg.Extract.MaxMedia,
				MinGallery: cfg.Extract.MinGallery,
				Hosts:      cfg.Extract.ImageHosts,
			},
		},
	)

	return container, nil
}

// newSheetSink falls back to the CSV file when no spreadsheet is configured
func newSheetSink(ctx context.Context, cfg config.SheetConfig) (service.Sink, error) {
	if cfg.Backend == "google" && cfg.SpreadsheetID != "" {
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		gs, err := sheet.NewGoogleSheet(ctx, cfg.SpreadsheetID, cfg.Tab, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		log.Infof("✅ Writing spreadsheet to Google Sheets tab %s", cfg.Tab)
		return gs, nil
	}
	if cfg.Backend == "google" {
		log.Warnf("⚠️ No spreadsheet id configured, falling back to %s", cfg.Path)
	}
	log.Infof("✅ Writing spreadsheet to %s", cfg.Path)
	return sheet.New(cfg.Path), nil
}

func (c *Container) tracerProvider() trace.TracerProvider {
	if c.tracer == nil {
		return nil
	}
	return c.tracer
}

func (c *Container) connectRedis(ctx context.Context) error {
	cfg := c.Config.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.redis = rdb
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg)
	if err != nil {
		return err
	}
	c.Queue = redisQueue
	c.StateManager = state.NewRedisStateManager(rdb)
	return nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	cfg := c.Config.Database
	db, err := pgxpool.New(ctx,
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
		))
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.db = db
	log.Info("✅ Connected to database successfully")

	repo := repository.NewVehicleRepository(db, cfg.Table)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	c.Repository = repo
	return nil
}

// Run executes one sync run
func (c *Container) Run(ctx context.Context) error {
	summary, err := c.Service.Run(ctx)
	if c.Translator != nil {
		log.Infof("🌐 Translation provider calls: %d", c.Translator.Calls())
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		log.Warnf("⚠️ %d of %d vehicles failed", summary.Failed, summary.Attempted)
	}
	return nil
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.tracer.Shutdown(ctx); err != nil {
			log.Warnf("⚠️ Failed to flush spans: %v", err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis client: %w", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
