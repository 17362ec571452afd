// Package appointments lists, groups and updates a user's appointments.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

var (
	ErrNotFound     = errors.New("appointments: not found")
	ErrNotPermitted = errors.New("appointments: action not permitted for this role")
	ErrNotScheduled = errors.New("appointments: only scheduled appointments can change")
)

// Notices for empty groups.
const (
	NoticeNoUpcoming  = "No upcoming appointments."
	NoticeNoCompleted = "No completed appointments."
	NoticeNoCancelled = "No cancelled appointments."
)

// API is the part of the clinic API this package needs.
type API interface {
	Appointments(ctx context.Context, token string, role clinicapi.Role, userID int) ([]clinicapi.Appointment, error)
	Doctor(ctx context.Context, token string, id int) (clinicapi.Doctor, error)
	Patient(ctx context.Context, token string, id int) (clinicapi.Patient, error)
	CancelAppointment(ctx context.Context, token string, id int) (clinicapi.Appointment, error)
	CompleteAppointment(ctx context.Context, token string, id int) (clinicapi.Appointment, error)
}

// Sessions yields the signed-in user.
type Sessions interface {
	Current() (*session.Session, error)
}

// Entry is an appointment with its counterpart profile bound when the lookup
// succeeded.
type Entry struct {
	clinicapi.Appointment
	ScheduledAt time.Time          `json:"scheduled_at"`
	Doctor      *clinicapi.Doctor  `json:"doctor,omitempty"`
	Patient     *clinicapi.Patient `json:"patient,omitempty"`
	PatientAge  int                `json:"patient_age,omitempty"`
}

// Groups splits a list by status.
type Groups struct {
	Upcoming  []Entry `json:"upcoming"`
	Completed []Entry `json:"completed"`
	Cancelled []Entry `json:"cancelled"`
}

// Notices returns the placeholder text for each empty group.
func (g Groups) Notices() map[string]string {
	out := map[string]string{}
	if len(g.Upcoming) == 0 {
		out["upcoming"] = NoticeNoUpcoming
	}
	if len(g.Completed) == 0 {
		out["completed"] = NoticeNoCompleted
	}
	if len(g.Cancelled) == 0 {
		out["cancelled"] = NoticeNoCancelled
	}
	return out
}

type Config struct {
	API      API
	Sessions Sessions
	Location *time.Location
	Logger   *logging.Logger
	Now      func() time.Time
	// MaxLookups bounds concurrent profile lookups.
	MaxLookups int
}

type Service struct {
	api        API
	sessions   Sessions
	loc        *time.Location
	logger     *logging.Logger
	now        func() time.Time
	maxLookups int

	mu     sync.RWMutex
	latest *Groups
}

func NewService(cfg Config) (*Service, error) {
	if cfg.API == nil {
		return nil, errors.New("appointments: service requires an api client")
	}
	s := &Service{
		api:        cfg.API,
		sessions:   cfg.Sessions,
		loc:        cfg.Location,
		logger:     cfg.Logger,
		now:        cfg.Now,
		maxLookups: cfg.MaxLookups,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxLookups <= 0 {
		s.maxLookups = 8
	}
	return s, nil
}

// List fetches sess's appointments and binds the counterpart profiles.
func (s *Service) List(ctx context.Context, sess *session.Session) ([]Entry, error) {
	if sess == nil {
		return nil, session.ErrNoSession
	}
	appts, err := s.api.Appointments(ctx, sess.Token, sess.Role, sess.UserID())
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}

	entries := make([]Entry, len(appts))
	for i, a := range appts {
		entries[i] = Entry{Appointment: a}
		if at, err := a.ScheduledAt(s.loc); err == nil {
			entries[i].ScheduledAt = at
		}
	}
	s.bind(ctx, sess, entries)
	return entries, nil
}

// bind looks up each distinct counterpart once, concurrently, and joins the
// lookups before returning. A failed lookup leaves its entries unbound.
func (s *Service) bind(ctx context.Context, sess *session.Session, entries []Entry) {
	counterpart := func(e Entry) int {
		if sess.Role == session.RoleDoctor {
			return e.PatientID
		}
		return e.DoctorID
	}

	ids := make(map[int]struct{})
	for _, e := range entries {
		if id := counterpart(e); id > 0 {
			ids[id] = struct{}{}
		}
	}

	var (
		mu       sync.Mutex
		doctors  = make(map[int]clinicapi.Doctor)
		patients = make(map[int]clinicapi.Patient)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxLookups)
	for id := range ids {
		g.Go(func() error {
			if sess.Role == session.RoleDoctor {
				p, err := s.api.Patient(gctx, sess.Token, id)
				if err != nil {
					s.logger.Warn("patient lookup failed", "patient_id", id, "error", err)
					return nil
				}
				mu.Lock()
				patients[id] = p
				mu.Unlock()
				return nil
			}
			d, err := s.api.Doctor(gctx, sess.Token, id)
			if err != nil {
				s.logger.Warn("doctor lookup failed", "doctor_id", id, "error", err)
				return nil
			}
			mu.Lock()
			doctors[id] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	now := s.now().In(s.loc)
	for i := range entries {
		if sess.Role == session.RoleDoctor {
			if p, ok := patients[entries[i].PatientID]; ok {
				entries[i].Patient = &p
				entries[i].PatientAge = Age(p.DateOfBirth, now)
			}
			continue
		}
		if d, ok := doctors[entries[i].DoctorID]; ok {
			entries[i].Doctor = &d
		}
	}
}

// Group splits entries by status. Upcoming is soonest first; completed and
// cancelled are most recent first.
func Group(entries []Entry) Groups {
	var g Groups
	for _, e := range entries {
		switch e.Status {
		case clinicapi.StatusScheduled:
			g.Upcoming = append(g.Upcoming, e)
		case clinicapi.StatusCompleted:
			g.Completed = append(g.Completed, e)
		case clinicapi.StatusCancelled:
			g.Cancelled = append(g.Cancelled, e)
		}
	}
	sort.SliceStable(g.Upcoming, func(i, j int) bool {
		return g.Upcoming[i].ScheduledAt.Before(g.Upcoming[j].ScheduledAt)
	})
	sort.SliceStable(g.Completed, func(i, j int) bool {
		return g.Completed[i].ScheduledAt.After(g.Completed[j].ScheduledAt)
	})
	sort.SliceStable(g.Cancelled, func(i, j int) bool {
		return g.Cancelled[i].ScheduledAt.After(g.Cancelled[j].ScheduledAt)
	})
	return g
}

// Refresh re-lists the current user's appointments and caches the groups.
func (s *Service) Refresh(ctx context.Context) (Groups, error) {
	if s.sessions == nil {
		return Groups{}, session.ErrNoSession
	}
	sess, err := s.sessions.Current()
	if err != nil {
		return Groups{}, err
	}
	entries, err := s.List(ctx, sess)
	if err != nil {
		return Groups{}, err
	}
	g := Group(entries)
	s.mu.Lock()
	s.latest = &g
	s.mu.Unlock()
	return g, nil
}

// Latest returns the groups from the last Refresh.
func (s *Service) Latest() (Groups, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Groups{}, false
	}
	return *s.latest, true
}

// Clear drops the cached groups, e.g. on logout.
func (s *Service) Clear() {
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

// Cancel cancels one of a patient's scheduled appointments.
func (s *Service) Cancel(ctx context.Context, sess *session.Session, id int) (clinicapi.Appointment, error) {
	if err := s.checkChange(ctx, sess, session.RolePatient, id); err != nil {
		return clinicapi.Appointment{}, err
	}
	a, err := s.api.CancelAppointment(ctx, sess.Token, id)
	if err != nil {
		return clinicapi.Appointment{}, fmt.Errorf("appointments: cancel %d: %w", id, err)
	}
	s.logger.Info("appointment cancelled", "appointment_id", id, "user_id", sess.UserID())
	return a, nil
}

// Complete marks one of a doctor's scheduled appointments as completed.
func (s *Service) Complete(ctx context.Context, sess *session.Session, id int) (clinicapi.Appointment, error) {
	if err := s.checkChange(ctx, sess, session.RoleDoctor, id); err != nil {
		return clinicapi.Appointment{}, err
	}
	a, err := s.api.CompleteAppointment(ctx, sess.Token, id)
	if err != nil {
		return clinicapi.Appointment{}, fmt.Errorf("appointments: complete %d: %w", id, err)
	}
	s.logger.Info("appointment completed", "appointment_id", id, "user_id", sess.UserID())
	return a, nil
}

func (s *Service) checkChange(ctx context.Context, sess *session.Session, role session.Role, id int) error {
	if sess == nil {
		return session.ErrNoSession
	}
	if sess.Role != role {
		return ErrNotPermitted
	}
	appts, err := s.api.Appointments(ctx, sess.Token, sess.Role, sess.UserID())
	if err != nil {
		return fmt.Errorf("appointments: list: %w", err)
	}
	for _, a := range appts {
		if a.ID != id {
			continue
		}
		if a.Status != clinicapi.StatusScheduled {
			return fmt.Errorf("%w: appointment %d is %s", ErrNotScheduled, id, a.Status)
		}
		return nil
	}
	return fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Age is the number of whole years from birth to now.
func Age(birth slots.Date, now time.Time) int {
	if birth.IsZero() {
		return 0
	}
	y, m, d := now.Date()
	age := y - birth.Year
	if m < birth.Month || (m == birth.Month && d < birth.Day) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
