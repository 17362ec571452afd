package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// API is the part of the clinic API the session layer needs.
type API interface {
	Login(ctx context.Context, role clinicapi.Role, email, password string) (clinicapi.Token, error)
	Me(ctx context.Context, token string, role clinicapi.Role) (clinicapi.Profile, error)
	Doctors(ctx context.Context, token string) ([]clinicapi.Doctor, error)
	Specializations(ctx context.Context) ([]clinicapi.Specialization, error)
	RegisterPatient(ctx context.Context, reg clinicapi.PatientRegistration) (clinicapi.Patient, error)
	RegisterDoctor(ctx context.Context, reg clinicapi.DoctorRegistration) (clinicapi.Doctor, error)
}

// Ticker builds the refresh tick source and its stop func.
type Ticker func(interval time.Duration) (<-chan time.Time, func())

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

type ManagerConfig struct {
	API     API
	Store   Store
	Logger  *logging.Logger
	Metrics *metrics.ClientMetrics

	TTL             time.Duration
	RefreshInterval time.Duration

	Now    func() time.Time
	Ticker Ticker
}

// Manager owns the single active session and everything cached for it.
type Manager struct {
	api     API
	store   Store
	logger  *logging.Logger
	metrics *metrics.ClientMetrics
	ttl     time.Duration
	refresh time.Duration
	now     func() time.Time
	ticker  Ticker

	directory *Directory

	// lifecycle serializes poller swaps: install, Logout and Close.
	lifecycle sync.Mutex

	mu              sync.Mutex
	current         *Session
	specializations []clinicapi.Specialization
	pollCancel      context.CancelFunc
	pollDone        chan struct{}
	resetHooks      []func()
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.API == nil {
		return nil, errors.New("session: manager requires an api client")
	}
	m := &Manager{
		api:       cfg.API,
		store:     cfg.Store,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		ttl:       cfg.TTL,
		refresh:   cfg.RefreshInterval,
		now:       cfg.Now,
		ticker:    cfg.Ticker,
		directory: NewDirectory(),
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	if m.ttl <= 0 {
		m.ttl = 3 * time.Hour
	}
	if m.refresh <= 0 {
		m.refresh = 30 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.ticker == nil {
		m.ticker = realTicker
	}
	return m, nil
}

// OnReset registers a hook run on logout, e.g. to reset the booking flow.
func (m *Manager) OnReset(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.resetHooks = append(m.resetHooks, fn)
	m.mu.Unlock()
}

func (m *Manager) Directory() *Directory {
	return m.directory
}

// Current returns a copy of the active session.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	if m.current.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	cp := *m.current
	return &cp, nil
}

// Login signs in, loads the profile, persists the session and starts the
// doctor directory refresh.
func (m *Manager) Login(ctx context.Context, role Role, email, password string) (*Session, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	tok, err := m.api.Login(ctx, role, email, password)
	if err != nil {
		return nil, fmt.Errorf("session: login: %w", err)
	}
	profile, err := m.api.Me(ctx, tok.AccessToken, role)
	if err != nil {
		return nil, fmt.Errorf("session: load profile: %w", err)
	}

	now := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Token:     tok.AccessToken,
		Role:      role,
		User:      profile,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if exp, err := tokenExpiry(tok.AccessToken); err == nil && !exp.IsZero() {
		if !now.Before(exp) {
			return nil, ErrSessionExpired
		}
		if exp.Before(sess.ExpiresAt) {
			sess.ExpiresAt = exp
		}
	}

	if err := m.store.Save(ctx, sess, sess.ExpiresAt.Sub(now)); err != nil {
		return nil, err
	}

	m.install(sess)
	m.logger.Info("signed in", "session_id", sess.ID, "role", string(role), "user_id", profile.ID)
	cp := *sess
	return &cp, nil
}

// Restore resumes a stored session. The token must be unexpired and still
// accepted by the API; otherwise the stored session is dropped and
// ErrSessionExpired returned.
func (m *Manager) Restore(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}

	drop := func(reason string, cause error) (*Session, error) {
		m.logger.Info("dropping stored session", "session_id", id, "reason", reason, "error", cause)
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("delete stored session failed", "session_id", id, "error", err)
		}
		return nil, ErrSessionExpired
	}

	now := m.now()
	exp, err := tokenExpiry(sess.Token)
	if err != nil {
		return drop("unreadable token", err)
	}
	if !exp.IsZero() && !now.Before(exp) {
		return drop("token expired", nil)
	}
	if sess.Expired(now) {
		return drop("session expired", nil)
	}

	profile, err := m.api.Me(ctx, sess.Token, sess.Role)
	if err != nil {
		return drop("profile refresh failed", err)
	}
	sess.User = profile

	m.install(sess)
	cp := *sess
	return &cp, nil
}

// Logout stops the refresh, forgets the stored session and clears every
// cache. It is safe to call without an active session.
func (m *Manager) Logout(ctx context.Context) error {
	m.lifecycle.Lock()
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.specializations = nil
	hooks := append([]func(){}, m.resetHooks...)
	m.mu.Unlock()

	m.stopPoller()
	m.directory.Clear()
	m.lifecycle.Unlock()
	for _, hook := range hooks {
		hook()
	}

	if sess == nil {
		return nil
	}
	m.logger.Info("signed out", "session_id", sess.ID)
	return m.store.Delete(ctx, sess.ID)
}

// Specializations returns the specialization list, fetched once per session.
func (m *Manager) Specializations(ctx context.Context) ([]clinicapi.Specialization, error) {
	m.mu.Lock()
	cached := m.specializations
	m.mu.Unlock()
	if cached != nil {
		return append([]clinicapi.Specialization(nil), cached...), nil
	}

	specs, err := m.api.Specializations(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: load specializations: %w", err)
	}
	if specs == nil {
		specs = []clinicapi.Specialization{}
	}
	m.mu.Lock()
	m.specializations = specs
	m.mu.Unlock()
	return append([]clinicapi.Specialization(nil), specs...), nil
}

// RefreshDirectory reloads the doctor list right away.
func (m *Manager) RefreshDirectory(ctx context.Context) error {
	sess, err := m.Current()
	if err != nil {
		return err
	}
	doctors, err := m.api.Doctors(ctx, sess.Token)
	if err != nil {
		m.metrics.ObserveDirectoryRefresh("error")
		return fmt.Errorf("session: load doctors: %w", err)
	}
	m.directory.Replace(doctors, m.now())
	m.metrics.ObserveDirectoryRefresh("ok")
	return nil
}

// Registration is a new patient or doctor account.
type Registration struct {
	Role             Role
	FirstName        string
	LastName         string
	DateOfBirth      slots.Date
	Gender           string
	Email            string
	Phone            string
	Address          string
	Password         string
	SpecializationID int
}

var ErrUnknownSpecialization = errors.New("session: unknown specialization")

// ErrMissingCredentials is returned by Login before any call when the email
// or password is blank.
var ErrMissingCredentials = errors.New("session: email and password are required")

// Register creates an account. Doctors name their specialization by id; the
// API expects its name.
func (m *Manager) Register(ctx context.Context, reg Registration) (clinicapi.Person, error) {
	role, err := ParseRole(string(reg.Role))
	if err != nil {
		return clinicapi.Person{}, err
	}
	gender := strings.ToLower(strings.TrimSpace(reg.Gender))

	if role == RolePatient {
		p, err := m.api.RegisterPatient(ctx, clinicapi.PatientRegistration{
			FirstName:   reg.FirstName,
			LastName:    reg.LastName,
			DateOfBirth: reg.DateOfBirth,
			Gender:      gender,
			Email:       strings.TrimSpace(reg.Email),
			Phone:       reg.Phone,
			Address:     reg.Address,
			Password:    reg.Password,
		})
		if err != nil {
			return clinicapi.Person{}, fmt.Errorf("session: register patient: %w", err)
		}
		return p.Person, nil
	}

	specs, err := m.Specializations(ctx)
	if err != nil {
		return clinicapi.Person{}, err
	}
	name := ""
	for _, s := range specs {
		if s.ID == reg.SpecializationID {
			name = s.Name
			break
		}
	}
	if name == "" {
		return clinicapi.Person{}, fmt.Errorf("%w: %d", ErrUnknownSpecialization, reg.SpecializationID)
	}
	d, err := m.api.RegisterDoctor(ctx, clinicapi.DoctorRegistration{
		FirstName:          reg.FirstName,
		LastName:           reg.LastName,
		DateOfBirth:        reg.DateOfBirth,
		Gender:             gender,
		SpecializationName: name,
		Email:              strings.TrimSpace(reg.Email),
		Phone:              reg.Phone,
		Address:            reg.Address,
		Password:           reg.Password,
	})
	if err != nil {
		return clinicapi.Person{}, fmt.Errorf("session: register doctor: %w", err)
	}
	return d.Person, nil
}

// install makes sess current, replacing and stopping any previous session's
// refresh.
func (m *Manager) install(sess *Session) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stopPoller()
	m.directory.Clear()

	token := sess.Token
	tick, stop := m.ticker(m.refresh)
	poller, err := NewPoller(PollerConfig{
		Fetch: func(ctx context.Context) ([]clinicapi.Doctor, error) {
			return m.api.Doctors(ctx, token)
		},
		Directory: m.directory,
		Logger:    m.logger,
		Metrics:   m.metrics,
		Now:       m.now,
		Tick:      tick,
		Stop:      stop,
	})
	if err != nil {
		// Unreachable with the fields above.
		m.logger.Error("doctor poller not started", "error", err)
		stop()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Start(ctx)
	}()

	m.mu.Lock()
	m.current = sess
	m.specializations = nil
	m.pollCancel = cancel
	m.pollDone = done
	m.mu.Unlock()
}

func (m *Manager) stopPoller() {
	m.mu.Lock()
	cancel, done := m.pollCancel, m.pollDone
	m.pollCancel, m.pollDone = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the directory refresh without forgetting the stored session,
// so a later process can Restore it.
func (m *Manager) Close() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stopPoller()
}
