// Package messaging contains the contact roster and message log domain model
// for Clinic Notify. A Contact is created the first time a chat writes to the
// bot and is updated on every subsequent message; Messages form an append-only
// log of everything sent and received through the bot connection.
package messaging

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrContactNotFound is returned when a contact does not exist.
	ErrContactNotFound = errors.New("messaging: contact not found")

	// ErrTemplateNotFound is returned when a predefined message does not exist.
	ErrTemplateNotFound = errors.New("messaging: predefined message not found")

	// ErrSettingsNotFound is returned when the settings row has not been seeded.
	ErrSettingsNotFound = errors.New("messaging: bot settings not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTACT
// ══════════════════════════════════════════════════════════════════════════════

// Contact is one conversation partner of the bot, keyed by the external chat ID.
// At most one Contact row exists per chat ID; this subsystem never deletes them.
type Contact struct {
	// ChatID is the external messaging API's unique conversation address.
	ChatID int64

	// FirstName and LastName come from the chat profile on first sight.
	FirstName string
	LastName  string

	// Username is the public handle, without the leading '@' (may be empty).
	Username string

	// Language is the detected language code ("ru", "en", ...).
	Language string

	// FirstSeenAt is when the first inbound message arrived.
	FirstSeenAt time.Time

	// LastMessageAt is the timestamp of the most recent inbound message.
	LastMessageAt time.Time

	// MessageCount is the cumulative number of inbound messages.
	MessageCount int

	// Blocked suppresses the auto-responder for this contact.
	Blocked bool

	// Notes is operator free text.
	Notes string

	// Tags is an operator-managed label set.
	Tags []string

	// Stage is a pipeline label ("new", "engaged", "booked", ...).
	Stage string
}

// DisplayName returns a human-readable name for the contact.
func (c *Contact) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.Username != "":
		return "@" + c.Username
	default:
		return "unknown"
	}
}

// DefaultStage is assigned to contacts on first sight.
const DefaultStage = "new"

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// Direction marks a message as inbound (from the contact) or outbound (from us).
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// IsValid reports whether the direction is a known value.
func (d Direction) IsValid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Message is one row of the append-only message log. Only the Read flag is ever
// mutated after insert.
type Message struct {
	ID        int64
	ChatID    int64
	Body      string
	Direction Direction
	SentAt    time.Time
	Read      bool
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// PredefinedMessage is a canned reply template managed by operators and used as
// an optional source for quick replies and the auto-responder.
type PredefinedMessage struct {
	ID        int64
	Title     string
	Body      string
	Language  string
	Tags      []string
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// BotSettings is the singleton configuration row. The Active flag is the source
// of truth for whether a bot connection should exist at all.
type BotSettings struct {
	// Active enables the long-poll connection.
	Active bool

	// AutoResponder enables canned replies to inbound messages.
	AutoResponder bool

	// GreetingText is sent by the auto-responder when no template matches.
	GreetingText string

	UpdatedAt time.Time
}
