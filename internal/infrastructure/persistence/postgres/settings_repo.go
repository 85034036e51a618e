package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRepository implements messaging.SettingsStore over the singleton
// bot_settings row.
type SettingsRepository struct {
	db DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row.
func (r *SettingsRepository) Get(ctx context.Context) (*messaging.BotSettings, error) {
	query := `SELECT active, auto_responder, greeting_text, updated_at FROM bot_settings WHERE id = 1`

	var s messaging.BotSettings
	err := r.db.QueryRow(ctx, query).Scan(&s.Active, &s.AutoResponder, &s.GreetingText, &s.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, messaging.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// Update replaces the settings row.
func (r *SettingsRepository) Update(ctx context.Context, s *messaging.BotSettings) error {
	query := `
		UPDATE bot_settings
		SET active = $1, auto_responder = $2, greeting_text = $3, updated_at = $4
		WHERE id = 1`

	result, err := r.db.Exec(ctx, query, s.Active, s.AutoResponder, s.GreetingText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		return messaging.ErrSettingsNotFound
	}
	return nil
}

// SetActive persists only the active flag.
func (r *SettingsRepository) SetActive(ctx context.Context, active bool) error {
	query := `UPDATE bot_settings SET active = $1, updated_at = $2 WHERE id = 1`

	result, err := r.db.Exec(ctx, query, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return messaging.ErrSettingsNotFound
	}
	return nil
}
