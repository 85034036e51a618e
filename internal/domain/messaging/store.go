package messaging

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACES
// Implemented by internal/infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// InboundContact carries the profile fields seen on an inbound message and is
// the input of the contact upsert.
type InboundContact struct {
	ChatID    int64
	FirstName string
	LastName  string
	Username  string
	Language  string
	SeenAt    time.Time
}

// ContactStore persists the contact roster.
type ContactStore interface {
	// UpsertOnInbound creates the contact on first sight (default language and
	// stage) or bumps LastMessageAt and MessageCount. The operation must be
	// atomic: concurrent inbound bursts for the same chat must not lose counter
	// updates. Returns the stored contact after the write.
	UpsertOnInbound(ctx context.Context, in InboundContact) (*Contact, error)

	// Get returns a contact by chat ID, or ErrContactNotFound.
	Get(ctx context.Context, chatID int64) (*Contact, error)

	// List returns the roster ordered by last message, newest first.
	List(ctx context.Context, limit, offset int) ([]*Contact, error)

	// SetBlocked toggles the blocked flag.
	SetBlocked(ctx context.Context, chatID int64, blocked bool) error

	// UpdateNotes replaces the operator notes.
	UpdateNotes(ctx context.Context, chatID int64, notes string) error

	// UpdateTags replaces the tag set.
	UpdateTags(ctx context.Context, chatID int64, tags []string) error

	// UpdateStage replaces the pipeline stage label.
	UpdateStage(ctx context.Context, chatID int64, stage string) error
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	// Append inserts a message row and returns it with the assigned ID.
	Append(ctx context.Context, msg *Message) (*Message, error)

	// ListByChat returns messages for one chat, oldest first.
	ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*Message, error)

	// MarkRead flags all inbound messages of a chat as read.
	MarkRead(ctx context.Context, chatID int64) error
}

// TemplateStore persists predefined messages.
type TemplateStore interface {
	Create(ctx context.Context, tpl *PredefinedMessage) (*PredefinedMessage, error)
	List(ctx context.Context) ([]*PredefinedMessage, error)
	Delete(ctx context.Context, id int64) error
}

// SettingsStore persists the singleton bot settings row.
type SettingsStore interface {
	// Get returns the settings, or ErrSettingsNotFound before seeding.
	Get(ctx context.Context) (*BotSettings, error)

	// Update replaces the settings row.
	Update(ctx context.Context, s *BotSettings) error

	// SetActive persists only the active flag.
	SetActive(ctx context.Context, active bool) error
}
