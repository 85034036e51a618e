// Package http implements the admin REST API of Clinic Notify: the contact
// roster, the message log, predefined messages, bot settings and lifecycle
// control, background job introspection, test notifications, and the event
// endpoints called by the clinic admin application on appointment and patient
// mutations.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/internal/infrastructure/scheduler"
	"github.com/clinichub/clinic-notify/internal/notify"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// AdminTokenHash is the bcrypt hash of the admin bearer token.
	// Empty disables auth; Validate rejects that outside development.
	AdminTokenHash string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// BotController is the bot lifecycle surface used by the admin API.
// Implemented by bot.LifecycleManager.
type BotController interface {
	Toggle(ctx context.Context, active bool) error
	Connected() bool
	Send(ctx context.Context, r notification.Recipient, text string) notification.DeliveryResult
}

// Notifier is the subset of the notification facade used by handlers.
// Implemented by notify.Service.
type Notifier interface {
	OnAppointmentCreated(appt *appointment.Appointment)
	OnAppointmentStatusChanged(appt *appointment.Appointment, oldStatus, newStatus appointment.Status)
	OnAppointmentConfirmedWithTime(appt *appointment.Appointment, remindAt time.Time)
	OnPatientCreated(p *appointment.Patient, appointmentID int64)
	SendTestNotification(ctx context.Context, kind notification.Kind, recipient notification.Recipient) (*notify.TestResult, error)
}

// JobScheduler is the background job surface used by the admin API.
// Implemented by scheduler.Scheduler.
type JobScheduler interface {
	ListJobs() []scheduler.JobInfo
	RunNow(ctx context.Context, jobName string) (*scheduler.JobResult, error)
	IsRunning() bool
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	Contacts  messaging.ContactStore
	Messages  messaging.MessageStore
	Templates messaging.TemplateStore
	Settings  messaging.SettingsStore

	Appointments appointment.Repository

	Bot      BotController
	Notifier Notifier
	Jobs     JobScheduler

	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the admin HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.Router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Router builds the route tree. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.requireAdminToken)

		api.Route("/contacts", func(r chi.Router) {
			r.Get("/", s.handleListContacts)
			r.Route("/{chatID}", func(r chi.Router) {
				r.Get("/", s.handleGetContact)
				r.Patch("/", s.handlePatchContact)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Post("/read", s.handleMarkRead)
			})
		})

		api.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		api.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Put("/", s.handleUpdateSettings)
		})

		api.Route("/bot", func(r chi.Router) {
			r.Get("/status", s.handleBotStatus)
			r.Post("/toggle", s.handleBotToggle)
		})

		api.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/{name}/run", s.handleRunJob)
		})

		api.Post("/notifications/test", s.handleTestNotification)

		api.Route("/events", func(r chi.Router) {
			r.Post("/appointment-created", s.handleAppointmentCreated)
			r.Post("/appointment-status-changed", s.handleAppointmentStatusChanged)
			r.Post("/appointment-confirmed", s.handleAppointmentConfirmed)
			r.Post("/patient-created", s.handlePatientCreated)
		})
	})

	return r
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.config.Address())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// errorResponse is the error envelope of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
