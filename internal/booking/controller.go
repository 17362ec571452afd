package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// AvailabilitySource fetches a day's availability snapshot.
type AvailabilitySource interface {
	Availability(ctx context.Context, token string, doctorID int, date slots.Date) (slots.Availability, error)
}

// Sessions exposes the signed-in user and the doctor directory.
type Sessions interface {
	Current() (*session.Session, error)
	Directory() *session.Directory
}

type ControllerConfig struct {
	Availability AvailabilitySource
	Sessions     Sessions
	Submitter    *Submitter
	Catalog      slots.Catalog
	Location     *time.Location
	Logger       *logging.Logger
	Metrics      *metrics.ClientMetrics
	Now          func() time.Time

	// OnBooked runs after a successful booking, outside the controller lock.
	OnBooked func(ctx context.Context, id AppointmentID)
}

// Controller is the booking flow state machine. Dispatch may be called from
// several goroutines; network calls run without the lock held, and responses
// that a newer request has superseded are dropped.
type Controller struct {
	avail     AvailabilitySource
	sessions  Sessions
	submitter *Submitter
	catalog   slots.Catalog
	loc       *time.Location
	logger    *logging.Logger
	metrics   *metrics.ClientMetrics
	now       func() time.Time
	onBooked  func(ctx context.Context, id AppointmentID)

	mu               sync.Mutex
	state            State
	specializationID int
	doctors          []DoctorOption
	doctorID         int
	date             slots.Date
	dateEnabled      bool
	loading          bool
	board            *slots.Board
	slotsEnabled     bool
	notice           string
	errMsg           string
	appointmentID    AppointmentID
	// seq advances on every change of doctor or date.
	seq uint64
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Availability == nil {
		return nil, errors.New("booking: controller requires an availability source")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("booking: controller requires sessions")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("booking: controller requires a submitter")
	}
	c := &Controller{
		avail:     cfg.Availability,
		sessions:  cfg.Sessions,
		submitter: cfg.Submitter,
		catalog:   cfg.Catalog,
		loc:       cfg.Location,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		onBooked:  cfg.OnBooked,
		state:     StateEmpty,
	}
	if c.catalog.Len() == 0 {
		c.catalog = slots.DefaultCatalog()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// View returns the current render model.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Dispatch applies ev and returns the resulting view.
func (c *Controller) Dispatch(ctx context.Context, ev Event) View {
	switch e := ev.(type) {
	case ChooseSpecialization:
		return c.chooseSpecialization(e)
	case ChooseDoctor:
		return c.chooseDoctor(e)
	case ChooseDate:
		return c.chooseDate(ctx, e)
	case SelectSlot:
		return c.selectSlot(e)
	case Submit:
		return c.submit(ctx)
	case Reset:
		c.mu.Lock()
		defer c.mu.Unlock()
		c.resetLocked()
		return c.viewLocked()
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errMsg = fmt.Sprintf("unsupported event %T", ev)
		return c.viewLocked()
	}
}

func (c *Controller) chooseSpecialization(e ChooseSpecialization) View {
	doctors := c.sessions.Directory().FilterBySpecialization(e.ID)
	options := make([]DoctorOption, 0, len(doctors))
	for _, d := range doctors {
		options = append(options, doctorOption(d))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.specializationID = e.ID
	c.doctors = options
	if len(options) == 0 {
		c.notice = NoticeNoDoctors
	}
	return c.viewLocked()
}

func (c *Controller) chooseDoctor(e ChooseDoctor) View {
	doc, ok := c.sessions.Directory().Find(e.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.errMsg = fmt.Sprintf("Doctor %d is not available.", e.ID)
		return c.viewLocked()
	}
	if c.specializationID != 0 && doc.Specialization.ID != c.specializationID {
		c.errMsg = fmt.Sprintf("Doctor %d does not practise the selected specialization.", e.ID)
		return c.viewLocked()
	}
	if c.specializationID == 0 {
		c.doctors = []DoctorOption{doctorOption(doc)}
	}
	c.seq++
	c.state = StateDoctorChosen
	c.doctorID = doc.ID
	c.date = slots.Date{}
	c.dateEnabled = true
	c.loading = false
	c.board = nil
	c.slotsEnabled = false
	c.notice = NoticeSelectDate
	c.errMsg = ""
	c.appointmentID = 0
	return c.viewLocked()
}

func (c *Controller) chooseDate(ctx context.Context, e ChooseDate) View {
	c.mu.Lock()
	if c.doctorID == 0 {
		c.errMsg = NoticeSelectDoctor
		defer c.mu.Unlock()
		return c.viewLocked()
	}
	if e.Date.IsZero() {
		c.notice = NoticeSelectDate
		defer c.mu.Unlock()
		return c.viewLocked()
	}
	sess, err := c.sessions.Current()
	if err != nil {
		c.errMsg = session.NoticeSessionExpired
		defer c.mu.Unlock()
		return c.viewLocked()
	}

	c.seq++
	seq := c.seq
	doctorID := c.doctorID
	c.state = StateDoctorChosen
	c.date = e.Date
	c.loading = true
	c.board = nil
	c.slotsEnabled = false
	c.notice = ""
	c.errMsg = ""
	c.appointmentID = 0
	c.mu.Unlock()

	avail, fetchErr := c.avail.Availability(ctx, sess.Token, doctorID, e.Date)
	now := c.now().In(c.loc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.metrics.ObserveStaleAvailability()
		c.logger.Debug("discarding stale availability", "doctor_id", doctorID, "date", e.Date.String())
		return c.viewLocked()
	}

	c.loading = false
	c.state = StateDateChosen
	if fetchErr != nil {
		c.logger.Warn("availability fetch failed", "doctor_id", doctorID, "date", e.Date.String(), "error", fetchErr)
		c.board = slots.FailedBoard(c.catalog)
		c.slotsEnabled = false
		c.notice = c.board.Notice
		var apiErr *clinicapi.APIError
		if errors.As(fetchErr, &apiErr) {
			c.errMsg = apiErr.Detail
		}
		return c.viewLocked()
	}

	c.board = slots.NewBoard(slots.Reconcile(c.catalog, avail, e.Date, now))
	c.slotsEnabled = true
	c.notice = c.board.Notice
	return c.viewLocked()
}

func (c *Controller) selectSlot(e SelectSlot) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDateChosen, StateSlotSelected, StateError:
	default:
		c.errMsg = "No time slots to choose from."
		return c.viewLocked()
	}
	if c.board == nil || !c.slotsEnabled {
		c.errMsg = "No time slots to choose from."
		return c.viewLocked()
	}
	if err := c.board.Select(e.Time); err != nil {
		c.errMsg = fmt.Sprintf("%s is not available.", e.Time.Label())
		return c.viewLocked()
	}
	c.state = StateSlotSelected
	c.errMsg = ""
	c.notice = ""
	return c.viewLocked()
}

func (c *Controller) submit(ctx context.Context) View {
	c.mu.Lock()
	if c.state == StateSubmitting {
		defer c.mu.Unlock()
		return c.viewLocked()
	}

	req := Request{DoctorID: c.doctorID, Date: c.date}
	if t, ok := c.board.Selected(); ok && c.slotsEnabled {
		req.Time = &t
	}
	sess, sessErr := c.sessions.Current()
	if sessErr == nil {
		if sess.Role != session.RolePatient {
			c.errMsg = NoticePatientsOnly
			defer c.mu.Unlock()
			return c.viewLocked()
		}
		req.PatientID = sess.UserID()
	}
	if err := req.Validate(); err != nil {
		c.errMsg = Detail(err)
		defer c.mu.Unlock()
		return c.viewLocked()
	}
	if sessErr != nil {
		c.errMsg = session.NoticeSessionExpired
		defer c.mu.Unlock()
		return c.viewLocked()
	}

	seq := c.seq
	c.state = StateSubmitting
	c.errMsg = ""
	c.notice = ""
	c.mu.Unlock()

	id, err := c.submitter.Submit(ctx, req)

	c.mu.Lock()
	if seq != c.seq {
		// The doctor or date changed while the request was in flight; the
		// newer flow owns the state.
		if err != nil {
			c.errMsg = Detail(err)
		} else {
			c.notice = NoticeBooked
			c.appointmentID = id
		}
		v := c.viewLocked()
		c.mu.Unlock()
		if err == nil {
			c.booked(ctx, id)
		}
		return v
	}

	if err != nil {
		c.state = StateError
		c.errMsg = Detail(err)
		v := c.viewLocked()
		c.mu.Unlock()
		return v
	}

	c.state = StateBooked
	c.board.ClearSelection()
	c.slotsEnabled = false
	c.notice = NoticeBooked
	c.appointmentID = id
	v := c.viewLocked()
	c.mu.Unlock()

	c.booked(ctx, id)
	return v
}

func (c *Controller) booked(ctx context.Context, id AppointmentID) {
	if c.onBooked != nil {
		c.onBooked(ctx, id)
	}
}

func (c *Controller) resetLocked() {
	c.seq++
	c.state = StateEmpty
	c.specializationID = 0
	c.doctors = nil
	c.doctorID = 0
	c.date = slots.Date{}
	c.dateEnabled = false
	c.loading = false
	c.board = nil
	c.slotsEnabled = false
	c.notice = ""
	c.errMsg = ""
	c.appointmentID = 0
}

func (c *Controller) viewLocked() View {
	v := View{
		State:            c.state,
		SpecializationID: c.specializationID,
		Doctors:          append([]DoctorOption{}, c.doctors...),
		DoctorID:         c.doctorID,
		Date:             c.date,
		DateEnabled:      c.dateEnabled,
		Loading:          c.loading,
		Slots:            []slots.Slot{},
		SlotsEnabled:     c.slotsEnabled,
		Notice:           c.notice,
		Error:            c.errMsg,
		AppointmentID:    c.appointmentID,
	}
	if c.board != nil {
		v.Slots = c.board.Clone().Slots
		if t, ok := c.board.Selected(); ok {
			v.SelectedTime = &t
		}
	}
	v.CanSubmit = v.SelectedTime != nil && c.slotsEnabled &&
		(c.state == StateSlotSelected || c.state == StateError)
	return v
}

func doctorOption(d clinicapi.Doctor) DoctorOption {
	return DoctorOption{
		ID:             d.ID,
		Name:           "Dr. " + d.FullName(),
		Specialization: d.Specialization.Name,
	}
}
