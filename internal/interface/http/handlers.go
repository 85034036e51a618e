package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"bot_connected": s.deps.Bot.Connected(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTACTS
// ══════════════════════════════════════════════════════════════════════════════

// contactResponse is the JSON shape of one contact.
type contactResponse struct {
	ChatID        int64     `json:"chat_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Language      string    `json:"language"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
	Blocked       bool      `json:"blocked"`
	Notes         string    `json:"notes"`
	Tags          []string  `json:"tags"`
	Stage         string    `json:"stage"`
}

func toContactResponse(c *messaging.Contact) contactResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return contactResponse{
		ChatID:        c.ChatID,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Username:      c.Username,
		DisplayName:   c.DisplayName(),
		Language:      c.Language,
		FirstSeenAt:   c.FirstSeenAt,
		LastMessageAt: c.LastMessageAt,
		MessageCount:  c.MessageCount,
		Blocked:       c.Blocked,
		Notes:         c.Notes,
		Tags:          tags,
		Stage:         c.Stage,
	}
}

// handleListContacts handles GET /api/contacts.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	contacts, err := s.deps.Contacts.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list contacts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, toContactResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetContact handles GET /api/contacts/{chatID}.
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}

	contact, err := s.deps.Contacts.Get(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, messaging.ErrContactNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		s.logger.Error("get contact failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get contact")
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// patchContactRequest carries partial contact updates; nil fields are skipped.
type patchContactRequest struct {
	Blocked *bool     `json:"blocked"`
	Notes   *string   `json:"notes"`
	Tags    *[]string `json:"tags"`
	Stage   *string   `json:"stage"`
}

// handlePatchContact handles PATCH /api/contacts/{chatID}.
func (s *Server) handlePatchContact(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}

	var req patchContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	apply := func(err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, messaging.ErrContactNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
		} else {
			s.logger.Error("patch contact failed", "chat_id", chatID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update contact")
		}
		return false
	}

	if req.Blocked != nil && !apply(s.deps.Contacts.SetBlocked(ctx, chatID, *req.Blocked)) {
		return
	}
	if req.Notes != nil && !apply(s.deps.Contacts.UpdateNotes(ctx, chatID, *req.Notes)) {
		return
	}
	if req.Tags != nil && !apply(s.deps.Contacts.UpdateTags(ctx, chatID, *req.Tags)) {
		return
	}
	if req.Stage != nil && !apply(s.deps.Contacts.UpdateStage(ctx, chatID, *req.Stage)) {
		return
	}

	contact, err := s.deps.Contacts.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, messaging.ErrContactNotFound) {
			writeError(w, http.StatusNotFound, "contact not found")
			return
		}
		s.logger.Error("get contact failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get contact")
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// messageResponse is the JSON shape of one message log row.
type messageResponse struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Body      string    `json:"body"`
	Direction string    `json:"direction"`
	SentAt    time.Time `json:"sent_at"`
	Read      bool      `json:"read"`
}

// handleListMessages handles GET /api/contacts/{chatID}/messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	msgs, err := s.deps.Messages.ListByChat(r.Context(), chatID, limit, offset)
	if err != nil {
		s.logger.Error("list messages failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Body:      m.Body,
			Direction: string(m.Direction),
			SentAt:    m.SentAt,
			Read:      m.Read,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// sendMessageRequest is the body of an operator-initiated send.
type sendMessageRequest struct {
	Body string `json:"body"`
}

// handleSendMessage handles POST /api/contacts/{chatID}/messages. The send
// goes through the live bot connection; the outbound log row is appended by
// the connection itself on success.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Body == "" {
		writeError(w, http.StatusBadRequest, "message body is required")
		return
	}

	result := s.deps.Bot.Send(r.Context(), notification.ByChatID(chatID), req.Body)
	if !result.Success {
		if errors.Is(result.Error, notification.ErrNotConnected) {
			writeError(w, http.StatusConflict, "bot is not connected")
			return
		}
		s.logger.Error("operator send failed", "chat_id", chatID, "error", result.Error)
		writeError(w, http.StatusBadGateway, "delivery failed: "+result.Error.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message_id": result.MessageID,
	})
}

// handleMarkRead handles POST /api/contacts/{chatID}/read.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathChatID(w, r)
	if !ok {
		return
	}

	if err := s.deps.Messages.MarkRead(r.Context(), chatID); err != nil {
		s.logger.Error("mark read failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// templateResponse is the JSON shape of one predefined message.
type templateResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Language  string    `json:"language"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

func toTemplateResponse(t *messaging.PredefinedMessage) templateResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return templateResponse{
		ID:        t.ID,
		Title:     t.Title,
		Body:      t.Body,
		Language:  t.Language,
		Tags:      tags,
		CreatedAt: t.CreatedAt,
	}
}

// handleListTemplates handles GET /api/templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.Templates.List(r.Context())
	if err != nil {
		s.logger.Error("list templates failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// createTemplateRequest is the body of POST /api/templates.
type createTemplateRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}

// handleCreateTemplate handles POST /api/templates.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return
	}

	created, err := s.deps.Templates.Create(r.Context(), &messaging.PredefinedMessage{
		Title:    req.Title,
		Body:     req.Body,
		Language: req.Language,
		Tags:     req.Tags,
	})
	if err != nil {
		s.logger.Error("create template failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(created))
}

// handleDeleteTemplate handles DELETE /api/templates/{id}.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := s.deps.Templates.Delete(r.Context(), id); err != nil {
		if errors.Is(err, messaging.ErrTemplateNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		s.logger.Error("delete template failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// settingsResponse is the JSON shape of the bot settings row.
type settingsResponse struct {
	Active        bool      `json:"active"`
	AutoResponder bool      `json:"auto_responder"`
	GreetingText  string    `json:"greeting_text"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// handleGetSettings handles GET /api/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.logger.Error("get settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Active:        settings.Active,
		AutoResponder: settings.AutoResponder,
		GreetingText:  settings.GreetingText,
		UpdatedAt:     settings.UpdatedAt,
	})
}

// updateSettingsRequest is the body of PUT /api/settings.
type updateSettingsRequest struct {
	Active        bool   `json:"active"`
	AutoResponder bool   `json:"auto_responder"`
	GreetingText  string `json:"greeting_text"`
}

// handleUpdateSettings handles PUT /api/settings. The active flag is persisted
// here but the connection is only restarted through the toggle endpoint.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := &messaging.BotSettings{
		Active:        req.Active,
		AutoResponder: req.AutoResponder,
		GreetingText:  req.GreetingText,
	}
	if err := s.deps.Settings.Update(r.Context(), settings); err != nil {
		s.logger.Error("update settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Active:        settings.Active,
		AutoResponder: settings.AutoResponder,
		GreetingText:  settings.GreetingText,
		UpdatedAt:     time.Now().UTC(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// handleBotStatus handles GET /api/bot/status.
func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.deps.Bot.Connected(),
	})
}

// toggleRequest is the body of POST /api/bot/toggle.
type toggleRequest struct {
	Active bool `json:"active"`
}

// handleBotToggle handles POST /api/bot/toggle: persists the flag and brings
// the connection up or down.
func (s *Server) handleBotToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Bot.Toggle(r.Context(), req.Active); err != nil {
		s.logger.Error("bot toggle failed", "active", req.Active, "error", err)
		writeError(w, http.StatusBadGateway, "bot toggle failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":    req.Active,
		"connected": s.deps.Bot.Connected(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

// jobResponse is the JSON shape of one registered background job.
type jobResponse struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
}

// jobsListResponse is the body of GET /api/jobs.
type jobsListResponse struct {
	Running bool          `json:"running"`
	Jobs    []jobResponse `json:"jobs"`
}

func toJobResponse(info scheduler.JobInfo) jobResponse {
	out := jobResponse{
		Name:        info.Name,
		Description: info.Description,
		Schedule:    info.Schedule,
		NextRun:     info.NextRun,
		RunCount:    info.RunCount,
		FailCount:   info.FailCount,
	}
	if !info.LastRun.IsZero() {
		lastRun := info.LastRun
		out.LastRun = &lastRun
	}
	return out
}

// handleListJobs handles GET /api/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	infos := s.deps.Jobs.ListJobs()
	jobs := make([]jobResponse, 0, len(infos))
	for _, info := range infos {
		jobs = append(jobs, toJobResponse(info))
	}
	writeJSON(w, http.StatusOK, jobsListResponse{
		Running: s.deps.Jobs.IsRunning(),
		Jobs:    jobs,
	})
}

// jobRunResponse is the body of POST /api/jobs/{name}/run.
type jobRunResponse struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// handleRunJob handles POST /api/jobs/{name}/run: triggers the job
// immediately, outside its schedule. A failed run is reported inside the
// result, not as an HTTP error.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	result, err := s.deps.Jobs.RunNow(r.Context(), name)
	if result == nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("manual job run failed", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "job execution failed")
		return
	}

	out := jobRunResponse{
		Job:        result.JobName,
		StartedAt:  result.StartedAt,
		DurationMS: result.Duration.Milliseconds(),
		Success:    result.Success,
	}
	if result.Error != nil {
		out.Error = result.Error.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// testNotificationRequest is the body of POST /api/notifications/test.
type testNotificationRequest struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
}

// handleTestNotification handles POST /api/notifications/test. Delivery
// failure is reported inside the result, not as an HTTP error.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	var req testNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recipient, err := notification.ParseRecipient(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	result, err := s.deps.Notifier.SendTestNotification(r.Context(), notification.Kind(req.Kind), recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE EVENTS
// Called by the clinic admin application after its own mutations commit. All
// event endpoints are fire-and-forget: they return 202 once the notification
// is dispatched to the background.
// ══════════════════════════════════════════════════════════════════════════════

type appointmentEventRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

// handleAppointmentCreated handles POST /api/events/appointment-created.
func (s *Server) handleAppointmentCreated(w http.ResponseWriter, r *http.Request) {
	var req appointmentEventRequest
	if err := decodeJSON(r, &req); err != nil || req.AppointmentID == 0 {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, ok := s.fetchAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}

	s.deps.Notifier.OnAppointmentCreated(appt)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

type statusChangedEventRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
}

// handleAppointmentStatusChanged handles POST /api/events/appointment-status-changed.
func (s *Server) handleAppointmentStatusChanged(w http.ResponseWriter, r *http.Request) {
	var req statusChangedEventRequest
	if err := decodeJSON(r, &req); err != nil || req.AppointmentID == 0 {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	oldStatus := appointment.Status(req.OldStatus)
	newStatus := appointment.Status(req.NewStatus)
	if !oldStatus.IsValid() || !newStatus.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown appointment status")
		return
	}

	appt, ok := s.fetchAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}

	s.deps.Notifier.OnAppointmentStatusChanged(appt, oldStatus, newStatus)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

type confirmedEventRequest struct {
	AppointmentID int64 `json:"appointment_id"`

	// RemindAt arms a reminder when set; zero means no reminder.
	RemindAt time.Time `json:"remind_at"`
}

// handleAppointmentConfirmed handles POST /api/events/appointment-confirmed.
func (s *Server) handleAppointmentConfirmed(w http.ResponseWriter, r *http.Request) {
	var req confirmedEventRequest
	if err := decodeJSON(r, &req); err != nil || req.AppointmentID == 0 {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, ok := s.fetchAppointment(w, r, req.AppointmentID)
	if !ok {
		return
	}

	s.deps.Notifier.OnAppointmentConfirmedWithTime(appt, req.RemindAt)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

type patientCreatedEventRequest struct {
	PatientID     int64  `json:"patient_id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	ServiceID     int64  `json:"service_id"`
	AppointmentID int64  `json:"appointment_id"`
}

// handlePatientCreated handles POST /api/events/patient-created.
func (s *Server) handlePatientCreated(w http.ResponseWriter, r *http.Request) {
	var req patientCreatedEventRequest
	if err := decodeJSON(r, &req); err != nil || req.PatientID == 0 {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	patient := &appointment.Patient{
		ID:        req.PatientID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		ServiceID: req.ServiceID,
	}

	s.deps.Notifier.OnPatientCreated(patient, req.AppointmentID)
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// fetchAppointment loads the appointment or writes the error response.
func (s *Server) fetchAppointment(w http.ResponseWriter, r *http.Request, id int64) (*appointment.Appointment, bool) {
	appt, err := s.deps.Appointments.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return nil, false
		}
		s.logger.Error("get appointment failed", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return nil, false
	}
	return appt, true
}

// pathChatID parses the {chatID} path parameter.
func pathChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || chatID == 0 {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return chatID, true
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return def
	}
	return i
}
