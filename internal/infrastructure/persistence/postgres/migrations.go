package postgres

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Contacts = `
-- Migration: contact roster
-- Version: 001

CREATE TABLE IF NOT EXISTS contacts (
    chat_id BIGINT PRIMARY KEY,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    username VARCHAR(100) NOT NULL DEFAULT '',
    language VARCHAR(10) NOT NULL DEFAULT 'ru',
    first_seen_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_message_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    message_count INTEGER NOT NULL DEFAULT 0,
    blocked BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    tags TEXT[] NOT NULL DEFAULT '{}',
    stage VARCHAR(30) NOT NULL DEFAULT 'new',

    CONSTRAINT valid_message_count CHECK (message_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_contacts_last_message_at ON contacts(last_message_at DESC);
CREATE INDEX IF NOT EXISTS idx_contacts_stage ON contacts(stage);
`

const migration002Messages = `
-- Migration: append-only message log
-- Version: 002

CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    -- No FK to contacts: outbound rows may address operator chats that
    -- never messaged the bot.
    chat_id BIGINT NOT NULL,
    body TEXT NOT NULL,
    direction VARCHAR(10) NOT NULL,
    sent_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    read BOOLEAN NOT NULL DEFAULT FALSE,

    CONSTRAINT valid_direction CHECK (direction IN ('inbound', 'outbound'))
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(chat_id) WHERE NOT read AND direction = 'inbound';
`

const migration003Templates = `
-- Migration: predefined messages
-- Version: 003

CREATE TABLE IF NOT EXISTS predefined_messages (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    body TEXT NOT NULL,
    language VARCHAR(10) NOT NULL DEFAULT 'ru',
    tags TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration004Settings = `
-- Migration: singleton bot settings row
-- Version: 004

CREATE TABLE IF NOT EXISTS bot_settings (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    active BOOLEAN NOT NULL DEFAULT FALSE,
    auto_responder BOOLEAN NOT NULL DEFAULT FALSE,
    greeting_text TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT single_row CHECK (id = 1)
);

INSERT INTO bot_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`

const migration005Reminders = `
-- Migration: persisted reminder jobs with due-time index
-- Version: 005

CREATE TABLE IF NOT EXISTS reminder_jobs (
    id UUID PRIMARY KEY,
    appointment_id BIGINT NOT NULL,
    fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
    state VARCHAR(20) NOT NULL DEFAULT 'armed',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_state CHECK (state IN ('armed', 'fired', 'suppressed', 'expired'))
);

CREATE INDEX IF NOT EXISTS idx_reminder_jobs_due ON reminder_jobs(fire_at) WHERE state = 'armed';
`

// migrations lists all embedded migrations in order.
var migrations = []string{
	migration001Contacts,
	migration002Messages,
	migration003Templates,
	migration004Settings,
	migration005Reminders,
}

// Migrate applies all embedded migrations. Every statement is idempotent, so
// re-running on startup is safe.
func (c *Connection) Migrate(ctx context.Context) error {
	for i, m := range migrations {
		if _, err := c.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("postgres: migration %03d failed: %w", i+1, err)
		}
	}
	return nil
}
