package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinicbook/internal/appointments"
	"github.com/wolfman30/clinicbook/internal/booking"
	"github.com/wolfman30/clinicbook/internal/clinicapi"
	appconfig "github.com/wolfman30/clinicbook/internal/config"
	"github.com/wolfman30/clinicbook/internal/console"
	httpmiddleware "github.com/wolfman30/clinicbook/internal/http/middleware"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// Options override pieces of the runtime, mostly for tests.
type Options struct {
	// Registry receives the client metrics. Nil uses a fresh registry.
	Registry *prometheus.Registry
	// Redis replaces the client built from config.
	Redis *redis.Client
	// HTTPClient replaces the clinic API transport.
	HTTPClient *http.Client
	Now        func() time.Time
	Ticker     session.Ticker
}

// App is the assembled client: one session, one booking flow and the
// appointment lists that go with it.
type App struct {
	Config       *appconfig.Config
	Logger       *logging.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.ClientMetrics
	API          *clinicapi.Client
	Sessions     *session.Manager
	Submitter    *booking.Submitter
	Booking      *booking.Controller
	Appointments *appointments.Service

	redis *redis.Client
}

// Build wires config into a ready App. The returned App owns the Redis client
// when it built one.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := metrics.NewClientMetrics(registry)
	loc := cfg.Location()

	catalog, err := BuildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	apiOpts := []clinicapi.ClientOption{
		clinicapi.WithTimeout(cfg.APITimeout),
		clinicapi.WithLogger(logger),
		clinicapi.WithMetrics(m),
		clinicapi.WithAvailabilityMode(clinicapi.ParseAvailabilityMode(cfg.AvailabilityMode)),
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, clinicapi.WithHTTPClient(opts.HTTPClient))
	}
	api := clinicapi.NewClient(cfg.APIBaseURL, apiOpts...)

	redisClient := opts.Redis
	ownsRedis := false
	if redisClient == nil {
		redisClient = BuildRedisClient(ctx, cfg, logger, true)
		ownsRedis = redisClient != nil
	}

	manager, err := session.NewManager(session.ManagerConfig{
		API:             api,
		Store:           BuildSessionStore(redisClient),
		Logger:          logger,
		Metrics:         m,
		TTL:             cfg.SessionTTL,
		RefreshInterval: cfg.DoctorRefreshInterval,
		Now:             opts.Now,
		Ticker:          opts.Ticker,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: session manager: %w", err)
	}

	appts, err := appointments.NewService(appointments.Config{
		API:      api,
		Sessions: manager,
		Location: loc,
		Logger:   logger,
		Now:      opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: appointments: %w", err)
	}

	submitter, err := booking.NewSubmitter(booking.SubmitterConfig{
		API: api,
		Token: func() (string, error) {
			sess, err := manager.Current()
			if err != nil {
				return "", err
			}
			return sess.Token, nil
		},
		Location: loc,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: submitter: %w", err)
	}

	controller, err := booking.NewController(booking.ControllerConfig{
		Availability: api,
		Sessions:     manager,
		Submitter:    submitter,
		Catalog:      catalog,
		Location:     loc,
		Logger:       logger,
		Metrics:      m,
		Now:          opts.Now,
		OnBooked: func(ctx context.Context, id booking.AppointmentID) {
			if _, err := appts.Refresh(ctx); err != nil {
				logger.Warn("refresh appointments after booking failed", "appointment_id", int(id), "error", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: booking controller: %w", err)
	}

	manager.OnReset(func() {
		controller.Dispatch(context.Background(), booking.Reset{})
		appts.Clear()
	})

	app := &App{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		Metrics:      m,
		API:          api,
		Sessions:     manager,
		Submitter:    submitter,
		Booking:      controller,
		Appointments: appts,
	}
	if ownsRedis {
		app.redis = redisClient
	}
	return app, nil
}

// Router returns the console HTTP handler. The rate limiter's cleanup stops
// when ctx is done.
func (a *App) Router(ctx context.Context) http.Handler {
	cfg := &console.Config{
		Logger:             a.Logger,
		Sessions:           a.Sessions,
		Flow:               a.Booking,
		Appointments:       a.Appointments,
		CORSAllowedOrigins: a.Config.CORSAllowedOrigins,
		ConsoleJWTSecret:   a.Config.ConsoleJWTSecret,
	}
	if a.Config.MetricsEnabled {
		cfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}
	if a.Config.RateLimitRPS > 0 {
		cfg.RateLimiter = httpmiddleware.NewRateLimiter(ctx, a.Config.RateLimitRPS, a.Config.RateLimitBurst)
	}
	return console.New(cfg)
}

// Close stops background work and releases the Redis client if Build
// created it. The stored session is kept for a later restore.
func (a *App) Close() error {
	a.Sessions.Close()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
