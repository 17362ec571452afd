package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

type fakeCreator struct {
	mu    sync.Mutex
	calls []clinicapi.AppointmentCreate
	err   error
	id    int
}

func (f *fakeCreator) CreateAppointment(_ context.Context, _ string, req clinicapi.AppointmentCreate) (clinicapi.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return clinicapi.Appointment{}, f.err
	}
	return clinicapi.Appointment{ID: f.id, DoctorID: req.DoctorID, PatientID: req.PatientID, Status: clinicapi.StatusScheduled}, nil
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type availabilityResult struct {
	avail slots.Availability
	err   error
}

// fakeAvailability answers per date. A date with a gate blocks until the
// gate is closed.
type fakeAvailability struct {
	mu      sync.Mutex
	results map[slots.Date]availabilityResult
	gates   map[slots.Date]chan struct{}
	started chan slots.Date
}

func newFakeAvailability() *fakeAvailability {
	return &fakeAvailability{
		results: make(map[slots.Date]availabilityResult),
		gates:   make(map[slots.Date]chan struct{}),
		started: make(chan slots.Date, 8),
	}
}

func (f *fakeAvailability) Availability(ctx context.Context, _ string, _ int, date slots.Date) (slots.Availability, error) {
	f.mu.Lock()
	res := f.results[date]
	gate := f.gates[date]
	f.mu.Unlock()
	select {
	case f.started <- date:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.avail, res.err
}

type fakeSessions struct {
	sess *session.Session
	err  error
	dir  *session.Directory
}

func (f *fakeSessions) Current() (*session.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func (f *fakeSessions) Directory() *session.Directory { return f.dir }

var (
	testNow   = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	testDate  = slots.Date{Year: 2026, Month: time.June, Day: 2}
	otherDate = slots.Date{Year: 2026, Month: time.June, Day: 3}
)

type harness struct {
	ctrl     *Controller
	creator  *fakeCreator
	avail    *fakeAvailability
	sessions *fakeSessions
	metrics  *metrics.ClientMetrics
	registry *prometheus.Registry
	booked   []AppointmentID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := session.NewDirectory()
	dir.Replace([]clinicapi.Doctor{
		{Person: clinicapi.Person{ID: 2, FirstName: "Meredith", LastName: "Grey"}, Specialization: clinicapi.Specialization{ID: 1, Name: "Surgery"}},
		{Person: clinicapi.Person{ID: 3, FirstName: "Derek", LastName: "Shepherd"}, Specialization: clinicapi.Specialization{ID: 4, Name: "Neurology"}},
	}, testNow)

	h := &harness{
		creator: &fakeCreator{id: 77},
		avail:   newFakeAvailability(),
		sessions: &fakeSessions{
			sess: &session.Session{ID: "s", Token: "tok", Role: session.RolePatient,
				User: clinicapi.Profile{Person: clinicapi.Person{ID: 5}}},
			dir: dir,
		},
		registry: prometheus.NewRegistry(),
	}
	h.metrics = metrics.NewClientMetrics(h.registry)
	sub, err := NewSubmitter(SubmitterConfig{
		API: h.creator,
		Token: func() (string, error) {
			s, err := h.sessions.Current()
			if err != nil {
				return "", err
			}
			return s.Token, nil
		},
		Logger:  logging.Discard(),
		Metrics: h.metrics,
	})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	h.ctrl, err = NewController(ControllerConfig{
		Availability: h.avail,
		Sessions:     h.sessions,
		Submitter:    sub,
		Logger:       logging.Discard(),
		Metrics:      h.metrics,
		Now:          func() time.Time { return testNow },
		OnBooked: func(_ context.Context, id AppointmentID) {
			h.booked = append(h.booked, id)
		},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return h
}

func (h *harness) dispatch(ev Event) View {
	return h.ctrl.Dispatch(context.Background(), ev)
}

func (h *harness) toDateChosen(t *testing.T, booked ...string) View {
	t.Helper()
	h.avail.results[testDate] = availabilityResult{avail: slots.BookedTimes(booked)}
	h.dispatch(ChooseSpecialization{ID: 1})
	h.dispatch(ChooseDoctor{ID: 2})
	v := h.dispatch(ChooseDate{Date: testDate})
	if v.State != StateDateChosen {
		t.Fatalf("state = %s, want %s", v.State, StateDateChosen)
	}
	return v
}
