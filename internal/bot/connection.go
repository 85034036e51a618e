// Package bot owns the single live connection to the Telegram Bot API and its
// lifecycle. The external API permits one long-poll session per token, so the
// lifecycle manager forcibly tears down any previous connection before
// creating a new one. All inbound traffic flows into the message store; all
// outbound traffic is logged there after the external call succeeds.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/internal/infrastructure/external/telegram"
	"github.com/clinichub/clinic-notify/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection wraps one long-poll session. It implements notification.Sender.
type Connection struct {
	client    *telegram.Client
	contacts  messaging.ContactStore
	messages  messaging.MessageStore
	settings  messaging.SettingsStore
	responder Responder
	logger    *slog.Logger
	retrier   *retry.Retrier

	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// ConnectionDeps aggregates the collaborators of a Connection.
type ConnectionDeps struct {
	Client    *telegram.Client
	Contacts  messaging.ContactStore
	Messages  messaging.MessageStore
	Settings  messaging.SettingsStore
	Responder Responder
	Logger    *slog.Logger
}

// NewConnection creates a Connection; Start must be called before sending.
func NewConnection(deps ConnectionDeps) *Connection {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	responder := deps.Responder
	if responder == nil {
		responder = NoopResponder{}
	}

	return &Connection{
		client:    deps.Client,
		contacts:  deps.Contacts,
		messages:  deps.Messages,
		settings:  deps.Settings,
		responder: responder,
		logger:    logger.With("component", "bot_connection"),
		retrier: retry.New(retry.Config{
			MaxAttempts:  2,
			InitialDelay: 500 * time.Millisecond,
			RetryIf:      telegram.IsRetryable,
		}),
		done: make(chan struct{}),
	}
}

// Start verifies the credential and launches the long-poll loop.
func (c *Connection) Start(ctx context.Context) error {
	me, err := c.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot credential check: %w", err)
	}

	// A leftover webhook registration blocks getUpdates.
	if err := c.client.DeleteWebhook(ctx); err != nil {
		c.logger.Warn("delete webhook failed", "error", err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running.Store(true)

	go func() {
		defer close(c.done)
		if err := c.client.Poll(pollCtx, c.handleUpdate); err != nil && pollCtx.Err() == nil {
			c.logger.Error("long poll terminated", "error", err)
		}
		c.running.Store(false)
	}()

	c.logger.Info("bot connection started", "bot", me.Username)
	return nil
}

// Stop tears the session down and waits for the poll loop to exit.
func (c *Connection) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		c.logger.Warn("poll loop did not exit in time")
	}
	c.running.Store(false)
	c.logger.Info("bot connection stopped")
}

// Running reports whether the poll loop is live.
func (c *Connection) Running() bool {
	return c.running.Load()
}

// ─────────────────────────────────────────────────────────────────────────────
// Outbound
// ─────────────────────────────────────────────────────────────────────────────

// Send delivers text to one recipient and logs the outbound message. A send
// against a stopped connection returns a typed not-connected failure instead
// of reaching the network. Transient failures are retried once with backoff;
// a full reconnect is never attempted from here.
func (c *Connection) Send(ctx context.Context, r notification.Recipient, text string) notification.DeliveryResult {
	if !c.running.Load() {
		return notification.NewFailureResult(r, notification.ErrNotConnected, false)
	}

	var msg *telegram.Message
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		if r.Handle != "" {
			msg, sendErr = c.client.SendTextToHandle(ctx, r.Handle, text)
		} else {
			msg, sendErr = c.client.SendText(ctx, r.ChatID, text)
		}
		return sendErr
	})
	if err != nil {
		if telegram.IsChatNotFound(err) {
			return notification.NewFailureResult(r, fmt.Errorf("%w: %v", notification.ErrChatNotFound, err), false)
		}
		return notification.NewFailureResult(r, err, telegram.IsRetryable(err))
	}

	c.logOutbound(ctx, msg, text)
	return notification.NewSuccessResult(r, msg.MessageID)
}

// logOutbound appends the outbound row after the external call succeeded.
func (c *Connection) logOutbound(ctx context.Context, msg *telegram.Message, text string) {
	if msg == nil || msg.Chat == nil {
		return
	}
	_, err := c.messages.Append(ctx, &messaging.Message{
		ChatID:    msg.Chat.ID,
		Body:      text,
		Direction: messaging.DirectionOutbound,
		SentAt:    time.Now().UTC(),
		Read:      true,
	})
	if err != nil {
		c.logger.Error("log outbound message failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbound
// ─────────────────────────────────────────────────────────────────────────────

// handleUpdate processes one long-poll update: upsert the contact, append the
// inbound row, then hand off to the auto-responder unless the contact is
// blocked or the responder is disabled.
func (c *Connection) handleUpdate(ctx context.Context, update *telegram.Update) {
	m := update.Message
	if m == nil || m.Chat == nil || m.From == nil || m.From.IsBot {
		return
	}

	contact, err := c.contacts.UpsertOnInbound(ctx, messaging.InboundContact{
		ChatID:    m.Chat.ID,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
		Username:  m.From.Username,
		Language:  m.From.LanguageCode,
		SeenAt:    time.Unix(m.Date, 0).UTC(),
	})
	if err != nil {
		c.logger.Error("contact upsert failed", "chat_id", m.Chat.ID, "error", err)
		return
	}

	if _, err := c.messages.Append(ctx, &messaging.Message{
		ChatID:    m.Chat.ID,
		Body:      m.Text,
		Direction: messaging.DirectionInbound,
		SentAt:    time.Unix(m.Date, 0).UTC(),
	}); err != nil {
		c.logger.Error("log inbound message failed", "chat_id", m.Chat.ID, "error", err)
	}

	if contact.Blocked {
		return
	}

	settings, err := c.settings.Get(ctx)
	if err != nil || !settings.AutoResponder {
		return
	}

	reply, ok := c.responder.Respond(ctx, contact, m.Text)
	if !ok || reply == "" {
		return
	}

	result := c.Send(ctx, notification.ByChatID(m.Chat.ID), reply)
	if !result.Success {
		c.logger.Warn("auto-response failed", "chat_id", m.Chat.ID, "error", result.Error)
	}
}
