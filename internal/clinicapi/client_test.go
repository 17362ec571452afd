package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	opts = append([]ClientOption{WithLogger(logging.Discard())}, opts...)
	return NewClient(ts.URL, opts...)
}

func TestLogin_PostsFormCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/patients/login" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Fatalf("content-type = %s", ct)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatal("missing X-Request-ID")
		}
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "ann@example.com" || r.PostForm.Get("password") != "secret123" {
			t.Fatalf("form = %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer"}`))
	})

	tok, err := client.Login(context.Background(), RolePatient, "ann@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
}

func TestLogin_InvalidCredentialsCarriesDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invalid email or password"}`))
	})

	_, err := client.Login(context.Background(), RoleDoctor, "x@example.com", "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid email or password", apiErr.Detail)
	assert.Equal(t, "login", apiErr.Endpoint)
}

func TestMe_SendsBearerAndDecodesDoctor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doctors/me" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-9" {
			t.Fatalf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":7,"first_name":"Gregory","last_name":"House","date_of_birth":"1959-06-11",
			"gender":"male","email":"house@example.com","phone":"555","specialization":{"id":3,"name":"Diagnostics"}}`))
	})

	p, err := client.Me(context.Background(), "tok-9", RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, 7, p.ID)
	assert.Equal(t, "Gregory House", p.FullName())
	assert.Equal(t, slots.Date{Year: 1959, Month: time.June, Day: 11}, p.DateOfBirth)
	require.NotNil(t, p.Specialization)
	assert.Equal(t, "Diagnostics", p.Specialization.Name)
}

func TestBookedTimes_Path(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/doctor/4/2026-03-02" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`["2026-03-02T10:00:00","2026-03-02T14:00:00"]`))
	})

	got, err := client.BookedTimes(context.Background(), "tok", 4, slots.Date{Year: 2026, Month: time.March, Day: 2})
	require.NoError(t, err)
	assert.Equal(t, slots.BookedTimes{"2026-03-02T10:00:00", "2026-03-02T14:00:00"}, got)
}

func TestAvailabilitySlots_AcceptsWrappedRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/availability/4" || r.URL.Query().Get("date") != "2026-03-02" {
			t.Fatalf("unexpected %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"slots":[{"time":"09:00:00","isAvailable":false}]}`))
	})

	got, err := client.AvailabilitySlots(context.Background(), "tok", 4, slots.Date{Year: 2026, Month: time.March, Day: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got.Blocked(), slots.MustTimeOfDay(9, 0, 0))
}

func TestAvailability_AutoFallsBackOnNotFound(t *testing.T) {
	var availabilityCalls, bookedCalls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/appointments/availability/"):
			atomic.AddInt32(&availabilityCalls, 1)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		case strings.HasPrefix(r.URL.Path, "/appointments/doctor/"):
			atomic.AddInt32(&bookedCalls, 1)
			_, _ = w.Write([]byte(`["2026-03-02T11:00:00"]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}, WithAvailabilityMode(ModeAuto))

	avail, err := client.Availability(context.Background(), "tok", 1, slots.Date{Year: 2026, Month: time.March, Day: 2})
	require.NoError(t, err)
	assert.Contains(t, avail.Blocked(), slots.MustTimeOfDay(11, 0, 0))
	assert.Equal(t, int32(1), atomic.LoadInt32(&availabilityCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&bookedCalls))
}

func TestAvailability_AutoKeepsOtherErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/appointments/doctor/") {
			t.Fatal("booked endpoint must not be used on server errors")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, WithAvailabilityMode(ModeAuto))

	_, err := client.Availability(context.Background(), "tok", 1, slots.Date{Year: 2026, Month: time.March, Day: 2})
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestCreateAppointment_ConflictDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/appointments/" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var got AppointmentCreate
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, AppointmentCreate{DoctorID: 2, PatientID: 5, ScheduledDatetime: "2026-03-02T10:00:00Z"}, got)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"Doctor is not available at this time"}`))
	})

	_, err := client.CreateAppointment(context.Background(), "tok", AppointmentCreate{
		DoctorID: 2, PatientID: 5, ScheduledDatetime: "2026-03-02T10:00:00Z",
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Doctor is not available at this time", apiErr.Detail)
}

func TestCancelAndComplete_SendStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("method = %s", r.Method)
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/appointments/3/cancel":
			assert.Equal(t, StatusCancelled, body["status"])
		case "/appointments/3/complete":
			assert.Equal(t, StatusCompleted, body["status"])
		default:
			t.Fatalf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":3,"status":"` + body["status"] + `"}`))
	})

	a, err := client.CancelAppointment(context.Background(), "tok", 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)

	a, err = client.CompleteAppointment(context.Background(), "tok", 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, a.Status)
}

func TestDo_FallbackDetailAndValidationList(t *testing.T) {
	assert.Equal(t, "HTTP error! status: 502", detailFrom(502, []byte("upstream failed")))
	assert.Equal(t, "field required", detailFrom(422, []byte(`{"detail":[{"loc":["body"],"msg":"field required"}]}`)))
	assert.Equal(t, "HTTP error! status: 500", detailFrom(500, []byte(`{"detail":""}`)))
}

func TestDo_TransportFailureIsNotAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(url, WithLogger(logging.Discard()), WithTimeout(time.Second))
	_, err := client.Specializations(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestDo_RecordsMetrics(t *testing.T) {
	m := metrics.NewClientMetrics(prometheus.NewRegistry())
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Cardiology"}]`))
	}, WithMetrics(m))

	specs, err := client.Specializations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Specialization{{ID: 1, Name: "Cardiology"}}, specs)
}

func TestAppointmentScheduledAt(t *testing.T) {
	loc := time.FixedZone("clinic", 2*3600)
	a := Appointment{ScheduledDatetime: "2026-03-02T10:00:00"}
	got, err := a.ScheduledAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, loc), got)

	a.ScheduledDatetime = "2026-03-02T10:00:00Z"
	got, err = a.ScheduledAt(loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	_, err = Appointment{ScheduledDatetime: "soon"}.ScheduledAt(nil)
	assert.Error(t, err)
}

func TestParseAvailabilityMode(t *testing.T) {
	assert.Equal(t, ModeAuto, ParseAvailabilityMode(" AUTO "))
	assert.Equal(t, ModeAvailability, ParseAvailabilityMode("availability"))
	assert.Equal(t, ModeBooked, ParseAvailabilityMode("whatever"))
	assert.Equal(t, RolePatient, RoleDoctor.Counterpart())
	assert.Equal(t, RoleDoctor, RolePatient.Counterpart())
}

func TestTruncateUTF8KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	// "é" is two bytes; a cut at 3 would land inside the second one.
	assert.Equal(t, "é", truncateUTF8("éé", 3))
	assert.Equal(t, "éé", truncateUTF8("éé", 4))
	assert.Equal(t, "", truncateUTF8("é", 1))
}

func TestDo_LargeErrorBodyIsBoundedInLog(t *testing.T) {
	var logs bytes.Buffer
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "x"+strings.Repeat("é", 200_000))
	}, WithLogger(logging.NewWithWriter(&logs, "warn", "json")))

	_, err := client.Specializations(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "HTTP error! status: 502", apiErr.Detail)

	var entry struct {
		Body string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	assert.LessOrEqual(t, len(entry.Body), maxErrorBody)
	assert.True(t, utf8.ValidString(entry.Body))
	assert.True(t, strings.HasPrefix(entry.Body, "xé"))
}
