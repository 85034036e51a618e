package postgres

import (
	"context"
	"fmt"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MessageRepository implements messaging.MessageStore.
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a message row. The log is append-only; only the read flag is
// ever updated afterwards.
func (r *MessageRepository) Append(ctx context.Context, msg *messaging.Message) (*messaging.Message, error) {
	if !msg.Direction.IsValid() {
		return nil, fmt.Errorf("append message: invalid direction %q", msg.Direction)
	}

	query := `
		INSERT INTO messages (chat_id, body, direction, sent_at, read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	stored := *msg
	err := r.db.QueryRow(ctx, query,
		msg.ChatID,
		msg.Body,
		string(msg.Direction),
		msg.SentAt,
		msg.Read,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &stored, nil
}

// ListByChat returns the log for one chat, oldest first.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*messaging.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, chat_id, body, direction, sent_at, read
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*messaging.Message
	for rows.Next() {
		var m messaging.Message
		var direction string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Body, &direction, &m.SentAt, &m.Read); err != nil {
			return nil, err
		}
		m.Direction = messaging.Direction(direction)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkRead flags all inbound messages of a chat as read.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID int64) error {
	query := `UPDATE messages SET read = TRUE WHERE chat_id = $1 AND direction = 'inbound' AND NOT read`

	if _, err := r.db.Exec(ctx, query, chatID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
