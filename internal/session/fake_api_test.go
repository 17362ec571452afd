package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
)

type fakeAPI struct {
	mu sync.Mutex

	token      string
	loginErr   error
	profile    clinicapi.Profile
	meErr      error
	doctors    []clinicapi.Doctor
	doctorsErr error
	specs      []clinicapi.Specialization

	doctorCalls int
	specCalls   int
	registered  []any
}

func (f *fakeAPI) Login(_ context.Context, _ clinicapi.Role, _, _ string) (clinicapi.Token, error) {
	if f.loginErr != nil {
		return clinicapi.Token{}, f.loginErr
	}
	return clinicapi.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func (f *fakeAPI) Me(_ context.Context, _ string, _ clinicapi.Role) (clinicapi.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.meErr
}

func (f *fakeAPI) Doctors(_ context.Context, _ string) ([]clinicapi.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctorCalls++
	return f.doctors, f.doctorsErr
}

func (f *fakeAPI) Specializations(_ context.Context) ([]clinicapi.Specialization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specCalls++
	return f.specs, nil
}

func (f *fakeAPI) RegisterPatient(_ context.Context, reg clinicapi.PatientRegistration) (clinicapi.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg)
	return clinicapi.Patient{Person: clinicapi.Person{ID: 11, FirstName: reg.FirstName}}, nil
}

func (f *fakeAPI) RegisterDoctor(_ context.Context, reg clinicapi.DoctorRegistration) (clinicapi.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg)
	return clinicapi.Doctor{Person: clinicapi.Person{ID: 12, FirstName: reg.FirstName}}, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doctorCalls
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "ann@example.com", "user_type": "patient"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
