package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinicbook/internal/appointments"
	"github.com/wolfman30/clinicbook/internal/booking"
	"github.com/wolfman30/clinicbook/internal/clinicapi"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// Sessions is the session layer as the console uses it.
type Sessions interface {
	Login(ctx context.Context, role session.Role, email, password string) (*session.Session, error)
	Restore(ctx context.Context, id string) (*session.Session, error)
	Logout(ctx context.Context) error
	Current() (*session.Session, error)
	Specializations(ctx context.Context) ([]clinicapi.Specialization, error)
	Register(ctx context.Context, reg session.Registration) (clinicapi.Person, error)
	Directory() *session.Directory
}

// Flow is the booking state machine.
type Flow interface {
	Dispatch(ctx context.Context, ev booking.Event) booking.View
	View() booking.View
}

// Appointments lists and updates the user's appointments.
type Appointments interface {
	Refresh(ctx context.Context) (appointments.Groups, error)
	Cancel(ctx context.Context, sess *session.Session, id int) (clinicapi.Appointment, error)
	Complete(ctx context.Context, sess *session.Session, id int) (clinicapi.Appointment, error)
}

// Handler serves the console endpoints.
type Handler struct {
	sessions     Sessions
	flow         Flow
	appointments Appointments
	logger       *logging.Logger
}

func NewHandler(sessions Sessions, flow Flow, appts Appointments, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sessions: sessions, flow: flow, appointments: appts, logger: logger}
}

type sessionKey struct{}

type sessionView struct {
	ID        string            `json:"id"`
	Role      session.Role      `json:"role"`
	User      clinicapi.Profile `json:"user"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{ID: s.ID, Role: s.Role, User: s.User, ExpiresAt: s.ExpiresAt}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Current()
		if err != nil {
			writeError(w, http.StatusUnauthorized, session.NoticeSessionExpired)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

type loginRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs a patient or doctor in.
// POST /session/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, session.NoticeSelectRole)
		return
	}
	sess, err := h.sessions.Login(r.Context(), role, req.Email, req.Password)
	if errors.Is(err, session.ErrMissingCredentials) {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if err != nil {
		h.writeUpstreamError(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// Restore resumes a stored session by id.
// POST /session/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	sess, err := h.sessions.Restore(r.Context(), req.ID)
	if errors.Is(err, session.ErrSessionExpired) {
		writeError(w, http.StatusUnauthorized, session.NoticeSessionExpired)
		return
	}
	if err != nil {
		h.logger.Error("restore session failed", "session_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// POST /session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.Warn("logout cleanup failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /session
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Current()
	if err != nil {
		writeError(w, http.StatusUnauthorized, session.NoticeSessionExpired)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type registerRequest struct {
	Role             string     `json:"role"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	DateOfBirth      slots.Date `json:"date_of_birth"`
	Gender           string     `json:"gender"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	Password         string     `json:"password"`
	SpecializationID int        `json:"specialization_id"`
}

// POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, session.NoticeSelectRole)
		return
	}
	person, err := h.sessions.Register(r.Context(), session.Registration{
		Role:             role,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		DateOfBirth:      req.DateOfBirth,
		Gender:           req.Gender,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		Password:         req.Password,
		SpecializationID: req.SpecializationID,
	})
	if errors.Is(err, session.ErrUnknownSpecialization) {
		writeError(w, http.StatusBadRequest, "unknown specialization")
		return
	}
	if err != nil {
		h.writeUpstreamError(w, "registration failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

// GET /specializations
func (h *Handler) Specializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.sessions.Specializations(r.Context())
	if err != nil {
		h.writeUpstreamError(w, "load specializations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, specs)
}

// GET /doctors?specialization_id=
func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	dir := h.sessions.Directory()
	raw := r.URL.Query().Get("specialization_id")
	if raw == "" {
		writeJSON(w, http.StatusOK, nonNil(dir.All()))
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "specialization_id must be a number")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(dir.FilterBySpecialization(id)))
}

// GET /booking
func (h *Handler) BookingView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.flow.View())
}

type idRequest struct {
	ID int `json:"id"`
}

// POST /booking/specialization
func (h *Handler) ChooseSpecialization(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.dispatch(w, r, booking.ChooseSpecialization{ID: req.ID})
}

// POST /booking/doctor
func (h *Handler) ChooseDoctor(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.dispatch(w, r, booking.ChooseDoctor{ID: req.ID})
}

// POST /booking/date
func (h *Handler) ChooseDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		h.dispatch(w, r, booking.ChooseDate{})
		return
	}
	date, err := slots.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	h.dispatch(w, r, booking.ChooseDate{Date: date})
}

// POST /booking/slot
func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := slots.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be HH:MM")
		return
	}
	h.dispatch(w, r, booking.SelectSlot{Time: t})
}

// POST /booking/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, booking.Submit{})
}

// POST /booking/reset
func (h *Handler) ResetBooking(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, booking.Reset{})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, ev booking.Event) {
	writeJSON(w, http.StatusOK, h.flow.Dispatch(r.Context(), ev))
}

type appointmentsResponse struct {
	appointments.Groups
	Notices map[string]string `json:"notices,omitempty"`
}

// GET /appointments
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	groups, err := h.appointments.Refresh(r.Context())
	if err != nil {
		h.writeUpstreamError(w, "load appointments failed", err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentsResponse{Groups: groups, Notices: groups.Notices()})
}

// POST /appointments/{id}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.changeAppointment(w, r, h.appointments.Cancel)
}

// POST /appointments/{id}/complete
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	h.changeAppointment(w, r, h.appointments.Complete)
}

func (h *Handler) changeAppointment(w http.ResponseWriter, r *http.Request,
	change func(context.Context, *session.Session, int) (clinicapi.Appointment, error)) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "appointment id must be a positive number")
		return
	}
	appt, err := change(r.Context(), sessionFrom(r.Context()), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, appt)
	case errors.Is(err, appointments.ErrNotPermitted):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, appointments.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, appointments.ErrNotScheduled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.writeUpstreamError(w, "appointment update failed", err)
	}
}

// writeUpstreamError relays clinic API rejections with their status and
// detail, and reports anything else as a bad gateway.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, msg string, err error) {
	var apiErr *clinicapi.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		writeError(w, status, apiErr.Detail)
		return
	}
	if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrSessionExpired) {
		writeError(w, http.StatusUnauthorized, session.NoticeSessionExpired)
		return
	}
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusBadGateway, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
