package session

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// DoctorFetcher loads the current doctor list.
type DoctorFetcher func(ctx context.Context) ([]clinicapi.Doctor, error)

// Poller keeps a Directory fresh on a fixed interval.
type Poller struct {
	fetch     DoctorFetcher
	directory *Directory
	logger    *logging.Logger
	metrics   *metrics.ClientMetrics
	now       func() time.Time

	tick <-chan time.Time
	stop func()
}

type PollerConfig struct {
	Fetch     DoctorFetcher
	Directory *Directory
	Logger    *logging.Logger
	Metrics   *metrics.ClientMetrics
	Now       func() time.Time

	Interval time.Duration

	Tick <-chan time.Time
	Stop func()
}

func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Fetch == nil {
		return nil, errors.New("session: poller requires a fetch func")
	}
	if cfg.Directory == nil {
		return nil, errors.New("session: poller requires a directory")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	tick := cfg.Tick
	stop := cfg.Stop
	if tick == nil {
		interval := cfg.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
	}

	return &Poller{
		fetch:     cfg.Fetch,
		directory: cfg.Directory,
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       now,
		tick:      tick,
		stop:      stop,
	}, nil
}

// Start refreshes once immediately and then on every tick until ctx ends.
func (p *Poller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if p.stop != nil {
			p.stop()
		}
	}()

	_ = p.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.tick:
			_ = p.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce fetches and installs the doctor list. On failure the previous
// list stays in place.
func (p *Poller) RefreshOnce(ctx context.Context) error {
	doctors, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.ObserveDirectoryRefresh("error")
		p.logger.Warn("doctor directory refresh failed", "error", err)
		return err
	}
	p.directory.Replace(doctors, p.now())
	p.metrics.ObserveDirectoryRefresh("ok")
	p.logger.Debug("doctor directory refreshed", "doctors", len(doctors))
	return nil
}
