package postgres

import (
	"context"
	"fmt"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTACT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ContactRepository implements messaging.ContactStore.
type ContactRepository struct {
	db DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `chat_id, first_name, last_name, username, language,
	first_seen_at, last_message_at, message_count, blocked, notes, tags, stage`

// UpsertOnInbound creates or bumps the contact row in one statement. The
// ON CONFLICT arithmetic makes the message counter safe under concurrent
// inbound bursts for the same chat.
func (r *ContactRepository) UpsertOnInbound(ctx context.Context, in messaging.InboundContact) (*messaging.Contact, error) {
	query := `
		INSERT INTO contacts (
			chat_id, first_name, last_name, username, language,
			first_seen_at, last_message_at, message_count, stage
		) VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, ''), 'ru'), $6, $6, 1, $7)
		ON CONFLICT (chat_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			last_message_at = GREATEST(contacts.last_message_at, EXCLUDED.last_message_at),
			message_count = contacts.message_count + 1
		RETURNING ` + contactColumns

	row := r.db.QueryRow(ctx, query,
		in.ChatID,
		in.FirstName,
		in.LastName,
		in.Username,
		in.Language,
		in.SeenAt,
		messaging.DefaultStage,
	)
	return scanContact(row)
}

// Get returns a contact by chat ID.
func (r *ContactRepository) Get(ctx context.Context, chatID int64) (*messaging.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE chat_id = $1`

	c, err := scanContact(r.db.QueryRow(ctx, query, chatID))
	if err != nil {
		if IsNoRows(err) {
			return nil, messaging.ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns the roster, most recently active first.
func (r *ContactRepository) List(ctx context.Context, limit, offset int) ([]*messaging.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + contactColumns + `
		FROM contacts
		ORDER BY last_message_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*messaging.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// SetBlocked toggles the blocked flag.
func (r *ContactRepository) SetBlocked(ctx context.Context, chatID int64, blocked bool) error {
	return r.updateField(ctx, chatID, `UPDATE contacts SET blocked = $1 WHERE chat_id = $2`, blocked)
}

// UpdateNotes replaces the operator notes.
func (r *ContactRepository) UpdateNotes(ctx context.Context, chatID int64, notes string) error {
	return r.updateField(ctx, chatID, `UPDATE contacts SET notes = $1 WHERE chat_id = $2`, notes)
}

// UpdateTags replaces the tag set.
func (r *ContactRepository) UpdateTags(ctx context.Context, chatID int64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return r.updateField(ctx, chatID, `UPDATE contacts SET tags = $1 WHERE chat_id = $2`, tags)
}

// UpdateStage replaces the pipeline stage label.
func (r *ContactRepository) UpdateStage(ctx context.Context, chatID int64, stage string) error {
	return r.updateField(ctx, chatID, `UPDATE contacts SET stage = $1 WHERE chat_id = $2`, stage)
}

func (r *ContactRepository) updateField(ctx context.Context, chatID int64, query string, value any) error {
	result, err := r.db.Exec(ctx, query, value, chatID)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return messaging.ErrContactNotFound
	}
	return nil
}

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*messaging.Contact, error) {
	var c messaging.Contact
	err := row.Scan(
		&c.ChatID,
		&c.FirstName,
		&c.LastName,
		&c.Username,
		&c.Language,
		&c.FirstSeenAt,
		&c.LastMessageAt,
		&c.MessageCount,
		&c.Blocked,
		&c.Notes,
		&c.Tags,
		&c.Stage,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
