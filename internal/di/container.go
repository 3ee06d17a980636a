package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/handlers"
	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/config"
	"github.com/shelfmarket/api/internal/platform/events"
	pfirestore "github.com/shelfmarket/api/internal/platform/firestore"
	"github.com/shelfmarket/api/internal/platform/idempotency"
	"github.com/shelfmarket/api/internal/platform/locks"
	"github.com/shelfmarket/api/internal/platform/metrics"
	"github.com/shelfmarket/api/internal/platform/observability"
	"github.com/shelfmarket/api/internal/repositories"
	firestoreRepo "github.com/shelfmarket/api/internal/repositories/firestore"
	"github.com/shelfmarket/api/internal/repositories/memory"
	mongoRepo "github.com/shelfmarket/api/internal/repositories/mongo"
	"github.com/shelfmarket/api/internal/services"
)

const (
	checkoutLockPrefix = "shelfmarket:checkout"
	idempotencyPrefix  = "shelfmarket:idempotency"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Cart     services.CartService
	Checkout services.CheckoutService
	Orders   services.BuyerOrderService
	Seller   services.SellerOrderAuthority
	Admin    services.AdminOrderAuthority
}

// Container wires repositories, services, and shared infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Health       repositories.HealthRepository
	Idempotency  idempotency.Store
	// Metrics is nil when API_METRICS_ENABLED is false.
	Metrics *metrics.Registry

	logger  *zap.Logger
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option customises container construction. Tests use these to inject in-process backends.
type Option func(*buildOptions)

type buildOptions struct {
	logger   *zap.Logger
	registry repositories.Registry
	redis    redis.UniversalClient
	events   services.OrderEventPublisher
	clock    func() time.Time
}

// WithLogger sets the base logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithRegistry bypasses the persistence driver selection. The container does not close it.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *buildOptions) {
		o.registry = reg
	}
}

// WithRedisClient supplies the Redis client instead of dialling Redis.Addr. The container does not
// close it.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *buildOptions) {
		o.redis = client
	}
}

// WithEventPublisher bypasses the events driver selection.
func WithEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(o *buildOptions) {
		o.events = publisher
	}
}

// WithClock overrides the clock handed to services.
func WithClock(clock func() time.Time) Option {
	return func(o *buildOptions) {
		o.clock = clock
	}
}

// NewContainer constructs the runtime dependencies selected by cfg. Anything opened before a
// failure is closed again.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	o := buildOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	c := &Container{Config: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New()
	}

	redisClient := c.redisClient(o)
	var extraChecks []repositories.DependencyCheck
	if redisClient != nil {
		extraChecks = append(extraChecks, repositories.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	if err := c.buildRepositories(ctx, o, extraChecks); err != nil {
		return nil, err
	}

	locker, err := c.buildLocker(redisClient)
	if err != nil {
		return nil, err
	}
	if err := c.buildIdempotencyStore(redisClient); err != nil {
		return nil, err
	}

	publisher := o.events
	if publisher == nil {
		publisher, err = c.buildEventPublisher(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := c.buildServices(o, locker, publisher); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) redisClient(o buildOptions) redis.UniversalClient {
	if o.redis != nil {
		return o.redis
	}
	if strings.TrimSpace(c.Config.Redis.Addr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	c.addCloser("redis", func(context.Context) error { return client.Close() })
	return client
}

func (c *Container) buildRepositories(ctx context.Context, o buildOptions, extra []repositories.DependencyCheck) error {
	if o.registry != nil {
		c.Repositories = o.registry
		if len(extra) == 0 {
			c.Health = o.registry.Health()
			return nil
		}
		health, err := repositories.NewDependencyHealthRepository(append([]repositories.DependencyCheck{{
			Name:     "persistence",
			Critical: true,
			Check:    reportCheck(o.registry.Health()),
		}}, extra...))
		if err != nil {
			return fmt.Errorf("build health repository: %w", err)
		}
		c.Health = health
		return nil
	}

	switch c.Config.Persistence.Driver {
	case config.DriverFirestore:
		fsCfg := c.Config.Firestore
		providerOpts := []pfirestore.ProviderOption{pfirestore.WithDialTimeout(fsCfg.DialTimeout)}
		if creds := strings.TrimSpace(c.Config.Firebase.CredentialsFile); creds != "" {
			providerOpts = append(providerOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(creds)))
		}
		provider := pfirestore.NewProvider(fsCfg, providerOpts...)
		health, err := withChecks(repositories.DependencyCheck{Name: "firestore", Critical: true, Check: provider.Ping}, extra)
		if err != nil {
			_ = provider.Close(ctx)
			return err
		}
		reg, err := firestoreRepo.NewRegistry(provider, health,
			pfirestore.WithTxAttempts(fsCfg.TxAttempts),
			pfirestore.WithTxTimeout(fsCfg.TxTimeout),
		)
		if err != nil {
			_ = provider.Close(ctx)
			return fmt.Errorf("build firestore registry: %w", err)
		}
		c.setRegistry(reg, health)
	case config.DriverMongo:
		db, err := mongoRepo.Connect(ctx, c.Config.Mongo)
		if err != nil {
			return err
		}
		if err := mongoRepo.EnsureIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(ctx)
			return err
		}
		var reg *mongoRepo.Registry
		health, err := withChecks(repositories.DependencyCheck{
			Name:     "mongo",
			Critical: true,
			Check:    func(ctx context.Context) error { return reg.Ping(ctx) },
		}, extra)
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return err
		}
		reg, err = mongoRepo.NewRegistry(db, health)
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return fmt.Errorf("build mongo registry: %w", err)
		}
		c.setRegistry(reg, health)
	case config.DriverMemory:
		health, err := withChecks(repositories.DependencyCheck{
			Name:  "memory",
			Check: func(context.Context) error { return nil },
		}, extra)
		if err != nil {
			return err
		}
		c.logger.Warn("using in-memory persistence; state is lost on restart")
		c.setRegistry(memory.NewStore(memory.WithHealth(health)), health)
	default:
		return fmt.Errorf("unsupported persistence driver %q", c.Config.Persistence.Driver)
	}
	return nil
}

func (c *Container) setRegistry(reg repositories.Registry, health repositories.HealthRepository) {
	c.Repositories = reg
	c.Health = health
	c.addCloser("repositories", reg.Close)
}

func (c *Container) buildLocker(client redis.UniversalClient) (services.CheckoutLocker, error) {
	if client == nil {
		return services.NewLocalCheckoutLocker(), nil
	}
	backend, err := locks.NewRedisLocker(client, checkoutLockPrefix, c.Config.Checkout.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("build checkout locker: %w", err)
	}
	return services.NewLeasedCheckoutLocker(backend), nil
}

func (c *Container) buildIdempotencyStore(client redis.UniversalClient) error {
	if client == nil {
		c.Idempotency = idempotency.NewMemoryStore()
		return nil
	}
	store, err := idempotency.NewRedisStore(client, idempotencyPrefix)
	if err != nil {
		return fmt.Errorf("build idempotency store: %w", err)
	}
	c.Idempotency = store
	return nil
}

func (c *Container) buildEventPublisher(ctx context.Context) (services.OrderEventPublisher, error) {
	cfg := c.Config.Events
	switch cfg.Driver {
	case config.EventsPubSub:
		client, err := pubsub.NewClient(ctx, projectID(c.Config))
		if err != nil {
			return nil, fmt.Errorf("initialise pubsub client: %w", err)
		}
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.Topic))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		c.addCloser("pubsub", func(context.Context) error {
			_ = publisher.Close()
			return client.Close()
		})
		return publisher, nil
	case config.EventsKafka:
		publisher, err := events.NewKafkaPublisher(cfg.Topic, cfg.KafkaBrokers...)
		if err != nil {
			return nil, err
		}
		c.addCloser("kafka", func(context.Context) error { return publisher.Close() })
		return publisher, nil
	case config.EventsNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}

func (c *Container) buildServices(o buildOptions, locker services.CheckoutLocker, publisher services.OrderEventPublisher) error {
	reg := c.Repositories
	logger := observability.EventLogger(c.logger.Named("services"))

	var orderMetrics services.OrderMetrics
	var onBreakerChange func(from, to string)
	if c.Metrics != nil {
		orderMetrics = c.Metrics
		onBreakerChange = c.Metrics.BreakerStateChanged
	}
	breakerLogger := c.logger.Named("catalog")
	catalog := repositories.NewBreakingCatalog(reg.Catalog(), repositories.CatalogBreakerSettings{
		MaxFailures: c.Config.Catalog.BreakerMaxFailures,
		Interval:    c.Config.Catalog.BreakerInterval,
		OpenTimeout: c.Config.Catalog.BreakerOpenTimeout,
		OnStateChange: func(from, to string) {
			breakerLogger.Warn("catalog breaker state changed", zap.String("from", from), zap.String("to", to))
			if onBreakerChange != nil {
				onBreakerChange(from, to)
			}
		},
	})

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build cart service: %w", err)
	}

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:      cart,
		Catalog:    catalog,
		Orders:     reg.Orders(),
		UnitOfWork: reg,
		Locker:     locker,
		Events:     publisher,
		Metrics:    orderMetrics,
		Clock:      o.clock,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build checkout service: %w", err)
	}

	orderDeps := services.OrderServiceDeps{
		Orders:     reg.Orders(),
		UnitOfWork: reg,
		Events:     publisher,
		Metrics:    orderMetrics,
		Clock:      o.clock,
		Logger:     logger,
	}
	buyer, err := services.NewBuyerOrderService(orderDeps)
	if err != nil {
		return fmt.Errorf("build buyer order service: %w", err)
	}
	seller, err := services.NewSellerOrderAuthority(orderDeps)
	if err != nil {
		return fmt.Errorf("build seller order authority: %w", err)
	}
	admin, err := services.NewAdminOrderAuthority(orderDeps)
	if err != nil {
		return fmt.Errorf("build admin order authority: %w", err)
	}

	c.Services = Services{
		Cart:     cart,
		Checkout: checkout,
		Orders:   buyer,
		Seller:   seller,
		Admin:    admin,
	}
	return nil
}

// Handler assembles the HTTP router over the container's services. A nil authn leaves the route
// groups unauthenticated, which only tests that inject identities directly rely on.
func (c *Container) Handler(authn *auth.Authenticator, build handlers.BuildInfo) http.Handler {
	httpLogger := c.logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(projectID(c.Config)),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(),
	}
	if c.Metrics != nil {
		middlewares = append(middlewares, c.Metrics.Middleware)
	}

	idempotent := idempotency.Middleware(
		c.Idempotency,
		idempotency.WithHeader(c.Config.Idempotency.Header),
		idempotency.WithTTL(c.Config.Idempotency.TTL),
		idempotency.WithLogger(c.logger.Named("idempotency")),
		idempotency.WithOptionalKey(),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthRepository(c.Health),
			handlers.WithHealthBuildInfo(build),
		)),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authn, c.Services.Cart, c.Services.Checkout, idempotent).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authn, c.Services.Checkout, c.Services.Orders, idempotent).Routes),
		handlers.WithSellerRoutes(handlers.NewSellerOrderHandlers(authn, c.Services.Seller).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminOrderHandlers(authn, c.Services.Admin).Routes),
	}
	if c.Metrics != nil {
		opts = append(opts, handlers.WithMetricsHandler(c.Config.Metrics.Path, c.Metrics.Handler()))
	}
	return handlers.NewRouter(opts...)
}

// Close releases clients opened by the container in reverse order of creation.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.closers[i].name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) addCloser(name string, fn func(context.Context) error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

func withChecks(primary repositories.DependencyCheck, extra []repositories.DependencyCheck) (repositories.HealthRepository, error) {
	checks := append([]repositories.DependencyCheck{primary}, extra...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	return health, nil
}

// reportCheck folds an existing health repository into a single dependency check.
func reportCheck(health repositories.HealthRepository) func(context.Context) error {
	return func(ctx context.Context) error {
		if health == nil {
			return nil
		}
		report, err := health.Collect(ctx)
		if err != nil {
			return err
		}
		if report.Status != domain.HealthStatusOK {
			return fmt.Errorf("persistence status %s", report.Status)
		}
		return nil
	}
}

func projectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firebase.ProjectID)
}
