package clinicapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinicbook/internal/slots"
)

// Role selects which half of the API a user signs in to.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Counterpart is the role on the other side of an appointment.
func (r Role) Counterpart() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Appointment statuses reported by the API.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Token is the bearer token returned by a login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Specialization struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Person holds the fields shared by patient and doctor profiles.
type Person struct {
	ID          int        `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth slots.Date `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Patient struct {
	Person
}

type Doctor struct {
	Person
	Specialization Specialization `json:"specialization"`
}

// Profile is the signed-in user as returned by /{role}s/me. Specialization is
// only set for doctors.
type Profile struct {
	Person
	Specialization *Specialization `json:"specialization,omitempty"`
}

type Appointment struct {
	ID                int    `json:"id"`
	DoctorID          int    `json:"doctor_id"`
	PatientID         int    `json:"patient_id"`
	ScheduledDatetime string `json:"scheduled_datetime"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ScheduledAt parses ScheduledDatetime. Values without a zone are read as
// wall-clock time in loc.
func (a Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw := strings.TrimSpace(a.ScheduledDatetime)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("clinicapi: unreadable scheduled_datetime %q", a.ScheduledDatetime)
}

// AppointmentCreate is the POST /appointments payload.
type AppointmentCreate struct {
	DoctorID          int    `json:"doctor_id"`
	PatientID         int    `json:"patient_id"`
	ScheduledDatetime string `json:"scheduled_datetime"`
}

type PatientRegistration struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth slots.Date `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address,omitempty"`
	Password    string     `json:"password"`
}

type DoctorRegistration struct {
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	DateOfBirth        slots.Date `json:"date_of_birth"`
	Gender             string     `json:"gender"`
	SpecializationName string     `json:"specialization_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	Address            string     `json:"address,omitempty"`
	Password           string     `json:"password"`
}
