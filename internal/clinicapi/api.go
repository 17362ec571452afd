package clinicapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinicbook/internal/slots"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, role Role, email, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok Token
	err := c.do(ctx, call{
		name:   "login",
		method: http.MethodPost,
		path:   fmt.Sprintf("/%ss/login", role),
		form:   form,
		out:    &tok,
	})
	if err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("clinicapi: login response has no access token")
	}
	return tok, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string, role Role) (Profile, error) {
	var p Profile
	err := c.do(ctx, call{
		name:   "me",
		method: http.MethodGet,
		path:   fmt.Sprintf("/%ss/me", role),
		token:  token,
		out:    &p,
	})
	return p, err
}

func (c *Client) RegisterPatient(ctx context.Context, reg PatientRegistration) (Patient, error) {
	var p Patient
	err := c.do(ctx, call{
		name:   "patients.create",
		method: http.MethodPost,
		path:   "/patients/",
		body:   reg,
		out:    &p,
	})
	return p, err
}

func (c *Client) RegisterDoctor(ctx context.Context, reg DoctorRegistration) (Doctor, error) {
	var d Doctor
	err := c.do(ctx, call{
		name:   "doctors.create",
		method: http.MethodPost,
		path:   "/doctors/",
		body:   reg,
		out:    &d,
	})
	return d, err
}

func (c *Client) Specializations(ctx context.Context) ([]Specialization, error) {
	var out []Specialization
	err := c.do(ctx, call{
		name:   "specializations.list",
		method: http.MethodGet,
		path:   "/specializations/",
		out:    &out,
	})
	return out, err
}

func (c *Client) Doctors(ctx context.Context, token string) ([]Doctor, error) {
	var out []Doctor
	err := c.do(ctx, call{
		name:   "doctors.list",
		method: http.MethodGet,
		path:   "/doctors/",
		token:  token,
		out:    &out,
	})
	return out, err
}

func (c *Client) Doctor(ctx context.Context, token string, id int) (Doctor, error) {
	var d Doctor
	err := c.do(ctx, call{
		name:   "doctors.get",
		method: http.MethodGet,
		path:   "/doctors/" + strconv.Itoa(id),
		token:  token,
		out:    &d,
	})
	return d, err
}

func (c *Client) Patient(ctx context.Context, token string, id int) (Patient, error) {
	var p Patient
	err := c.do(ctx, call{
		name:   "patients.get",
		method: http.MethodGet,
		path:   "/patients/" + strconv.Itoa(id),
		token:  token,
		out:    &p,
	})
	return p, err
}

// BookedTimes lists the booked datetimes of a doctor on one day.
func (c *Client) BookedTimes(ctx context.Context, token string, doctorID int, date slots.Date) (slots.BookedTimes, error) {
	var out slots.BookedTimes
	err := c.do(ctx, call{
		name:   "appointments.booked",
		method: http.MethodGet,
		path:   fmt.Sprintf("/appointments/doctor/%d/%s", doctorID, date),
		token:  token,
		out:    &out,
	})
	return out, err
}

// AvailabilitySlots lists explicit availability records of a doctor on one
// day. Both a bare array and a {"slots": [...]} wrapper are accepted.
func (c *Client) AvailabilitySlots(ctx context.Context, token string, doctorID int, date slots.Date) (slots.AvailabilitySlots, error) {
	q := url.Values{}
	q.Set("date", date.String())

	var raw availabilityPayload
	err := c.do(ctx, call{
		name:   "appointments.availability",
		method: http.MethodGet,
		path:   fmt.Sprintf("/appointments/availability/%d?%s", doctorID, q.Encode()),
		token:  token,
		out:    &raw,
	})
	return raw.records, err
}

// Availability fetches the day's snapshot using the configured mode.
func (c *Client) Availability(ctx context.Context, token string, doctorID int, date slots.Date) (slots.Availability, error) {
	switch c.mode {
	case ModeAvailability:
		return c.AvailabilitySlots(ctx, token, doctorID, date)
	case ModeAuto:
		records, err := c.AvailabilitySlots(ctx, token, doctorID, date)
		if err == nil {
			return records, nil
		}
		if !IsStatus(err, http.StatusNotFound) && !IsStatus(err, http.StatusMethodNotAllowed) {
			return nil, err
		}
		c.logger.Debug("availability endpoint missing, using booked list", "doctor_id", doctorID, "date", date.String())
		return c.BookedTimes(ctx, token, doctorID, date)
	default:
		return c.BookedTimes(ctx, token, doctorID, date)
	}
}

func (c *Client) CreateAppointment(ctx context.Context, token string, req AppointmentCreate) (Appointment, error) {
	var a Appointment
	err := c.do(ctx, call{
		name:   "appointments.create",
		method: http.MethodPost,
		path:   "/appointments/",
		token:  token,
		body:   req,
		out:    &a,
	})
	return a, err
}

// Appointments lists the appointments of one patient or doctor.
func (c *Client) Appointments(ctx context.Context, token string, role Role, userID int) ([]Appointment, error) {
	var out []Appointment
	err := c.do(ctx, call{
		name:   "appointments.list",
		method: http.MethodGet,
		path:   fmt.Sprintf("/appointments/%s/%d", role, userID),
		token:  token,
		out:    &out,
	})
	return out, err
}

func (c *Client) CancelAppointment(ctx context.Context, token string, id int) (Appointment, error) {
	return c.setStatus(ctx, token, id, "cancel", StatusCancelled)
}

func (c *Client) CompleteAppointment(ctx context.Context, token string, id int) (Appointment, error) {
	return c.setStatus(ctx, token, id, "complete", StatusCompleted)
}

func (c *Client) setStatus(ctx context.Context, token string, id int, action, status string) (Appointment, error) {
	var a Appointment
	err := c.do(ctx, call{
		name:   "appointments." + action,
		method: http.MethodPut,
		path:   fmt.Sprintf("/appointments/%d/%s", id, action),
		token:  token,
		body:   map[string]string{"status": status},
		out:    &a,
	})
	return a, err
}
