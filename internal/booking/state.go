package booking

import (
	"github.com/wolfman30/clinicbook/internal/slots"
)

// State is a step of the booking flow.
type State string

const (
	StateEmpty        State = "empty"
	StateDoctorChosen State = "doctor_chosen"
	StateDateChosen   State = "date_chosen"
	StateSlotSelected State = "slot_selected"
	StateSubmitting   State = "submitting"
	StateBooked       State = "booked"
	StateError        State = "error"
)

// User-facing notices.
const (
	NoticeNoDoctors    = "Currently, there are no available doctors in this field of specialization."
	NoticeSelectDate   = "Please select a date."
	NoticeSelectDoctor = "Please select a doctor."
	NoticeBooked       = "Appointment booked successfully!"
	NoticePatientsOnly = "Only patients can book appointments."
)

// Event is an input to Controller.Dispatch.
type Event interface {
	event()
}

// ChooseSpecialization narrows the doctor options.
type ChooseSpecialization struct{ ID int }

// ChooseDoctor picks a doctor and enables the date input.
type ChooseDoctor struct{ ID int }

// ChooseDate fetches and reconciles the doctor's availability for Date.
type ChooseDate struct{ Date slots.Date }

// SelectSlot marks Time as the chosen slot.
type SelectSlot struct{ Time slots.TimeOfDay }

// Submit books the selected slot.
type Submit struct{}

// Reset returns the flow to its initial state.
type Reset struct{}

func (ChooseSpecialization) event() {}
func (ChooseDoctor) event()         {}
func (ChooseDate) event()           {}
func (SelectSlot) event()           {}
func (Submit) event()               {}
func (Reset) event()                {}

// DoctorOption is one entry of the doctor picker.
type DoctorOption struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

// View is the render model of the flow.
type View struct {
	State            State            `json:"state"`
	SpecializationID int              `json:"specialization_id,omitempty"`
	Doctors          []DoctorOption   `json:"doctors"`
	DoctorID         int              `json:"doctor_id,omitempty"`
	Date             slots.Date       `json:"date"`
	DateEnabled      bool             `json:"date_enabled"`
	Loading          bool             `json:"loading"`
	Slots            []slots.Slot     `json:"slots"`
	SlotsEnabled     bool             `json:"slots_enabled"`
	SelectedTime     *slots.TimeOfDay `json:"selected_time,omitempty"`
	CanSubmit        bool             `json:"can_submit"`
	Notice           string           `json:"notice,omitempty"`
	Error            string           `json:"error,omitempty"`
	AppointmentID    AppointmentID    `json:"appointment_id,omitempty"`
}
