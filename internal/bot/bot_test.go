package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/infrastructure/external/telegram"
)

// ─────────────────────────────────────────────────────────────────────────────
// Store fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeContactStore struct {
	mu       sync.Mutex
	contacts map[int64]*messaging.Contact
	upserts  int
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{contacts: make(map[int64]*messaging.Contact)}
}

func (f *fakeContactStore) UpsertOnInbound(_ context.Context, in messaging.InboundContact) (*messaging.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++

	c, ok := f.contacts[in.ChatID]
	if !ok {
		c = &messaging.Contact{
			ChatID:      in.ChatID,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			Username:    in.Username,
			Language:    in.Language,
			FirstSeenAt: in.SeenAt,
			Stage:       messaging.DefaultStage,
		}
		f.contacts[in.ChatID] = c
	}
	c.LastMessageAt = in.SeenAt
	c.MessageCount++
	cp := *c
	return &cp, nil
}

func (f *fakeContactStore) Get(_ context.Context, chatID int64) (*messaging.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[chatID]
	if !ok {
		return nil, messaging.ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContactStore) List(context.Context, int, int) ([]*messaging.Contact, error) {
	return nil, nil
}

func (f *fakeContactStore) SetBlocked(_ context.Context, chatID int64, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[chatID]; ok {
		c.Blocked = blocked
		return nil
	}
	return messaging.ErrContactNotFound
}

func (f *fakeContactStore) UpdateNotes(context.Context, int64, string) error   { return nil }
func (f *fakeContactStore) UpdateTags(context.Context, int64, []string) error  { return nil }
func (f *fakeContactStore) UpdateStage(context.Context, int64, string) error   { return nil }

func (f *fakeContactStore) count(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[chatID]; ok {
		return c.MessageCount
	}
	return 0
}

type fakeMessageStore struct {
	mu   sync.Mutex
	rows []*messaging.Message
}

func (f *fakeMessageStore) Append(_ context.Context, msg *messaging.Message) (*messaging.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	cp.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &cp)
	return &cp, nil
}

func (f *fakeMessageStore) ListByChat(context.Context, int64, int, int) ([]*messaging.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) MarkRead(context.Context, int64) error { return nil }

func (f *fakeMessageStore) byDirection(d messaging.Direction) []*messaging.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*messaging.Message
	for _, m := range f.rows {
		if m.Direction == d {
			out = append(out, m)
		}
	}
	return out
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings messaging.BotSettings
	getErr   error
}

func (f *fakeSettingsStore) Get(context.Context) (*messaging.BotSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := f.settings
	return &cp, nil
}

func (f *fakeSettingsStore) Update(_ context.Context, s *messaging.BotSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = *s
	return nil
}

func (f *fakeSettingsStore) SetActive(_ context.Context, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings.Active = active
	return nil
}

type fakeTemplateStore struct {
	templates []*messaging.PredefinedMessage
}

func (f *fakeTemplateStore) Create(_ context.Context, tpl *messaging.PredefinedMessage) (*messaging.PredefinedMessage, error) {
	f.templates = append(f.templates, tpl)
	return tpl, nil
}

func (f *fakeTemplateStore) List(context.Context) ([]*messaging.PredefinedMessage, error) {
	return f.templates, nil
}

func (f *fakeTemplateStore) Delete(context.Context, int64) error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Fake Bot API
// ─────────────────────────────────────────────────────────────────────────────

// fakeBotAPI is an in-process Bot API good enough for connection tests:
// getMe and deleteWebhook succeed, getUpdates blocks briefly and returns
// nothing, sendMessage records the text and can be told to fail.
type fakeBotAPI struct {
	mu        sync.Mutex
	sent      []string
	failSends int // fail this many sendMessage calls with a 500
	server    *httptest.Server
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	api := &fakeBotAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	respond := func(result any) {
		raw, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(telegram.APIResponse{OK: true, Result: raw})
	}

	switch {
	case hasSuffix(r.URL.Path, "/getMe"):
		respond(telegram.User{ID: 1, IsBot: true, FirstName: "Clinic", Username: "clinic_notify_bot"})
	case hasSuffix(r.URL.Path, "/deleteWebhook"):
		respond(true)
	case hasSuffix(r.URL.Path, "/getUpdates"):
		time.Sleep(50 * time.Millisecond)
		respond([]telegram.Update{})
	case hasSuffix(r.URL.Path, "/sendMessage"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		a.mu.Lock()
		if a.failSends > 0 {
			a.failSends--
			a.mu.Unlock()
			_ = json.NewEncoder(w).Encode(telegram.APIResponse{OK: false, ErrorCode: 500, Description: "Internal Server Error"})
			return
		}
		text, _ := body["text"].(string)
		a.sent = append(a.sent, text)
		n := len(a.sent)
		a.mu.Unlock()

		chatID := int64(42)
		if id, ok := body["chat_id"].(float64); ok {
			chatID = int64(id)
		}
		respond(telegram.Message{MessageID: int64(n), Chat: &telegram.Chat{ID: chatID}})
	default:
		http.NotFound(w, r)
	}
}

func (a *fakeBotAPI) sentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// newTestConnection builds a started-ready Connection against the fake API.
func newTestConnection(t *testing.T, api *fakeBotAPI, contacts *fakeContactStore, messages *fakeMessageStore, settings *fakeSettingsStore, responder Responder) *Connection {
	t.Helper()
	cfg := telegram.DefaultClientConfig("TEST_TOKEN")
	cfg.BaseURL = api.server.URL
	cfg.PollTimeout = 1
	cfg.Timeout = 2 * time.Second

	return NewConnection(ConnectionDeps{
		Client:    telegram.NewClient(cfg),
		Contacts:  contacts,
		Messages:  messages,
		Settings:  settings,
		Responder: responder,
	})
}
