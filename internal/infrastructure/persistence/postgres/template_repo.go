package postgres

import (
	"context"
	"fmt"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TemplateRepository implements messaging.TemplateStore.
type TemplateRepository struct {
	db DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a predefined message.
func (r *TemplateRepository) Create(ctx context.Context, tpl *messaging.PredefinedMessage) (*messaging.PredefinedMessage, error) {
	tags := tpl.Tags
	if tags == nil {
		tags = []string{}
	}
	query := `
		INSERT INTO predefined_messages (title, body, language, tags)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'ru'), $4)
		RETURNING id, language, created_at`

	stored := *tpl
	err := r.db.QueryRow(ctx, query, tpl.Title, tpl.Body, tpl.Language, tags).
		Scan(&stored.ID, &stored.Language, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return &stored, nil
}

// List returns all predefined messages, newest first.
func (r *TemplateRepository) List(ctx context.Context) ([]*messaging.PredefinedMessage, error) {
	query := `
		SELECT id, title, body, language, tags, created_at
		FROM predefined_messages
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*messaging.PredefinedMessage
	for rows.Next() {
		var t messaging.PredefinedMessage
		if err := rows.Scan(&t.ID, &t.Title, &t.Body, &t.Language, &t.Tags, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

// Delete removes a predefined message.
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM predefined_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return messaging.ErrTemplateNotFound
	}
	return nil
}
