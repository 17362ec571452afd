// Package console serves the booking flow over HTTP as JSON for a local
// browser front end.
package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/clinicbook/internal/http/middleware"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	Sessions     Sessions
	Flow         Flow
	Appointments Appointments

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	ConsoleJWTSecret   string
}

// New creates the console router.
func New(cfg *Config) http.Handler {
	h := NewHandler(cfg.Sessions, cfg.Flow, cfg.Appointments, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", h.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Use(httpmiddleware.ConsoleJWT(cfg.ConsoleJWTSecret))

		api.Post("/register", h.Register)
		api.Get("/specializations", h.Specializations)

		api.Route("/session", func(r chi.Router) {
			r.Get("/", h.CurrentSession)
			r.Post("/login", h.Login)
			r.Post("/restore", h.Restore)
			r.Post("/logout", h.Logout)
		})

		api.Group(func(authed chi.Router) {
			authed.Use(h.requireSession)
			authed.Get("/doctors", h.Doctors)

			authed.Route("/booking", func(r chi.Router) {
				r.Get("/", h.BookingView)
				r.Post("/specialization", h.ChooseSpecialization)
				r.Post("/doctor", h.ChooseDoctor)
				r.Post("/date", h.ChooseDate)
				r.Post("/slot", h.SelectSlot)
				r.Post("/submit", h.Submit)
				r.Post("/reset", h.ResetBooking)
			})

			authed.Route("/appointments", func(r chi.Router) {
				r.Get("/", h.ListAppointments)
				r.Post("/{id}/cancel", h.CancelAppointment)
				r.Post("/{id}/complete", h.CompleteAppointment)
			})
		})
	})

	return r
}
