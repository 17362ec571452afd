package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicbook/internal/appointments"
	"github.com/wolfman30/clinicbook/internal/booking"
	"github.com/wolfman30/clinicbook/internal/clinicapi"
	httpmiddleware "github.com/wolfman30/clinicbook/internal/http/middleware"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConsoleTokenCommand(t *testing.T) {
	t.Setenv("CONSOLE_JWT_SECRET", "cli-secret")

	out, err := execute(t, "console-token", "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)
	token := strings.TrimSpace(out)

	guarded := httpmiddleware.ConsoleJWT("cli-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := httpmiddleware.ConsoleClaimsFromContext(r.Context())
		_, _ = w.Write([]byte(claims.Subject))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}

func TestConsoleTokenCommandNeedsSecret(t *testing.T) {
	t.Setenv("CONSOLE_JWT_SECRET", "")
	_, err := execute(t, "console-token")
	assert.Error(t, err)
}

func TestSlotsCommandAgainstBackend(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend"))
	require.NoError(t, err)

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	r := chi.NewRouter()
	r.Post("/patients/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"access_token": tok, "token_type": "bearer"})
	})
	r.Get("/patients/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, clinicapi.Profile{Person: clinicapi.Person{ID: 7}})
	})
	r.Get("/doctors/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []clinicapi.Doctor{{
			Person:         clinicapi.Person{ID: 5, FirstName: "Ada", LastName: "Moss"},
			Specialization: clinicapi.Specialization{ID: 2, Name: "Dermatology"},
		}})
	})
	r.Get("/appointments/doctor/5/2099-01-05", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{"2099-01-05T10:00:00", "2099-01-05T14:00:00"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Setenv("CLINIC_API_BASE_URL", srv.URL)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "slots", "--email", "pat@clinic.test", "--password", "pw", "--doctor", "5", "--date", "2099-01-05")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Contains(t, lines[0], "2099-01-05")
	assert.Contains(t, lines[1], "available")
	assert.Contains(t, lines[2], "booked")
	assert.Contains(t, lines[6], "booked")
	assert.Contains(t, lines[8], "available")
}

func TestSlotsCommandRejectsUnknownRole(t *testing.T) {
	t.Setenv("CLINIC_API_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("REDIS_ADDR", "")
	_, err := execute(t, "slots", "--role", "nurse", "--email", "x", "--password", "y", "--doctor", "5", "--date", "2099-01-05")
	require.Error(t, err)
	assert.Equal(t, session.NoticeSelectRole, err.Error())
}

func TestPrintGroupsShowsEmptyNotices(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printGroups(&out, session.RolePatient, appointments.Groups{}))
	assert.Contains(t, out.String(), appointments.NoticeNoUpcoming)
	assert.Contains(t, out.String(), appointments.NoticeNoCompleted)
	assert.Contains(t, out.String(), appointments.NoticeNoCancelled)
}

func TestPrintGroupsNamesCounterpart(t *testing.T) {
	at := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	groups := appointments.Groups{Upcoming: []appointments.Entry{
		{
			Appointment: clinicapi.Appointment{ID: 3, DoctorID: 5, PatientID: 7},
			ScheduledAt: at,
			Patient:     &clinicapi.Patient{Person: clinicapi.Person{FirstName: "Pat", LastName: "Lee"}},
			PatientAge:  41,
		},
		{
			Appointment: clinicapi.Appointment{ID: 4, DoctorID: 5, PatientID: 8},
			ScheduledAt: at.Add(time.Hour),
		},
	}}

	var out bytes.Buffer
	require.NoError(t, printGroups(&out, session.RoleDoctor, groups))
	assert.Contains(t, out.String(), "Pat Lee, age 41")
	assert.Contains(t, out.String(), "patient #8")
	assert.Contains(t, out.String(), "Mon 2030-03-04 10:00")
}

func TestPrintSlots(t *testing.T) {
	date, err := slots.ParseDate("2030-03-04")
	require.NoError(t, err)
	view := booking.View{
		Date:   date,
		Notice: "pick one",
		Slots: []slots.Slot{
			{Time: slots.MustTimeOfDay(9, 0, 0), Label: "09:00", State: slots.StatePast},
			{Time: slots.MustTimeOfDay(10, 0, 0), Label: "10:00", State: slots.StateAvailable},
		},
	}
	var out bytes.Buffer
	require.NoError(t, printSlots(&out, view))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "pick one", lines[0])
	assert.Contains(t, lines[2], "past")
	assert.Contains(t, lines[3], "available")
}
