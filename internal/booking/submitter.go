// Package booking drives the appointment booking flow: doctor and date
// selection, slot reconciliation and submission.
package booking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.booking")

// NoticeIncomplete is shown when a submit is missing doctor, date or time.
const NoticeIncomplete = "Please select doctor, date, and time."

// AppointmentID identifies a created appointment.
type AppointmentID int

// Request is one booking attempt. Time is nil until a slot is chosen.
type Request struct {
	DoctorID  int
	PatientID int
	Date      slots.Date
	Time      *slots.TimeOfDay
}

// Validate checks the local preconditions.
func (r Request) Validate() error {
	var missing []string
	if r.DoctorID <= 0 {
		missing = append(missing, "doctor")
	}
	if r.PatientID <= 0 {
		missing = append(missing, "patient")
	}
	if r.Date.IsZero() {
		missing = append(missing, "date")
	}
	if r.Time == nil {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: NoticeIncomplete, Missing: missing}
	}
	return nil
}

// Creator is the API call that creates an appointment.
type Creator interface {
	CreateAppointment(ctx context.Context, token string, req clinicapi.AppointmentCreate) (clinicapi.Appointment, error)
}

// TokenFunc yields the bearer token of the signed-in user.
type TokenFunc func() (string, error)

type SubmitterConfig struct {
	API      Creator
	Token    TokenFunc
	Location *time.Location
	Logger   *logging.Logger
	Metrics  *metrics.ClientMetrics
}

// Submitter posts booking requests. It never retries.
type Submitter struct {
	api     Creator
	token   TokenFunc
	loc     *time.Location
	logger  *logging.Logger
	metrics *metrics.ClientMetrics
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	if cfg.API == nil {
		return nil, errors.New("booking: submitter requires an api client")
	}
	if cfg.Token == nil {
		return nil, errors.New("booking: submitter requires a token source")
	}
	s := &Submitter{
		api:     cfg.API,
		token:   cfg.Token,
		loc:     cfg.Location,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s, nil
}

// ScheduledDatetime renders date@time in the clinic location as RFC 3339.
func (s *Submitter) ScheduledDatetime(date slots.Date, t slots.TimeOfDay) string {
	return date.At(t, s.loc).Format(time.RFC3339)
}

// Submit validates req and creates the appointment. Failures are
// *ValidationError, *ConflictError or *NetworkError.
func (s *Submitter) Submit(ctx context.Context, req Request) (id AppointmentID, err error) {
	if err := req.Validate(); err != nil {
		s.metrics.ObserveSubmission("invalid")
		return 0, err
	}

	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("clinicbook.doctor_id", req.DoctorID),
		attribute.Int("clinicbook.patient_id", req.PatientID),
		attribute.String("clinicbook.date", req.Date.String()),
		attribute.String("clinicbook.time", req.Time.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	token, err := s.token()
	if err != nil {
		s.metrics.ObserveSubmission("unauthenticated")
		return 0, err
	}

	payload := clinicapi.AppointmentCreate{
		DoctorID:          req.DoctorID,
		PatientID:         req.PatientID,
		ScheduledDatetime: s.ScheduledDatetime(req.Date, *req.Time),
	}
	appt, err := s.api.CreateAppointment(ctx, token, payload)
	if err != nil {
		classified := classify(err)
		var conflict *ConflictError
		if errors.As(classified, &conflict) {
			s.metrics.ObserveSubmission("conflict")
		} else {
			s.metrics.ObserveSubmission("error")
		}
		s.logger.Warn("booking rejected",
			"doctor_id", req.DoctorID,
			"scheduled", payload.ScheduledDatetime,
			"error", err,
		)
		return 0, classified
	}

	s.metrics.ObserveSubmission("booked")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", req.DoctorID,
		"scheduled", payload.ScheduledDatetime,
	)
	return AppointmentID(appt.ID), nil
}
