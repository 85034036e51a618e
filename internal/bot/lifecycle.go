package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoToken is returned by Start when the bot token is not configured.
var ErrNoToken = errors.New("bot: token is not configured")

// ConnectionFactory builds a fresh, unstarted connection. It returns ErrNoToken
// when the credential is absent.
type ConnectionFactory func() (*Connection, error)

// LifecycleManager guarantees at most one live connection process-wide. It is
// owned by the composition root and passed by reference to everything that
// sends messages; there are no ambient globals. The forced teardown before
// every start, followed by a quiescence delay, is a protocol requirement: the
// messaging API rejects a second concurrent long-poll for the same token.
type LifecycleManager struct {
	factory  ConnectionFactory
	settings messaging.SettingsStore
	logger   *slog.Logger

	// quiescence is how long to wait after a teardown before reconnecting.
	quiescence time.Duration

	mu      sync.Mutex
	current *Connection
}

// NewLifecycleManager creates the manager. quiescence <= 0 selects the
// one-second default.
func NewLifecycleManager(factory ConnectionFactory, settings messaging.SettingsStore, logger *slog.Logger, quiescence time.Duration) *LifecycleManager {
	if logger == nil {
		logger = slog.Default()
	}
	if quiescence <= 0 {
		quiescence = time.Second
	}
	return &LifecycleManager{
		factory:    factory,
		settings:   settings,
		logger:     logger.With("component", "bot_lifecycle"),
		quiescence: quiescence,
	}
}

// Start brings up the single connection. Idempotent: any previously registered
// connection — including one left over from a failed shutdown — is forcibly
// stopped and cleared first, then the manager waits for the external API to
// release the old poll session before creating a new one. If the settings row
// says the bot is inactive, the system is left without a connection.
func (m *LifecycleManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.logger.Info("stopping stale bot connection before restart")
		m.current.Stop()
		m.current = nil
	}

	// Let the remote side drop the old long-poll session.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.quiescence):
	}

	settings, err := m.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("read bot settings: %w", err)
	}
	if !settings.Active {
		m.logger.Info("bot is disabled in settings, not connecting")
		return nil
	}

	conn, err := m.factory()
	if err != nil {
		return fmt.Errorf("build bot connection: %w", err)
	}
	if err := conn.Start(ctx); err != nil {
		return fmt.Errorf("start bot connection: %w", err)
	}

	m.current = conn
	return nil
}

// Stop tears down the active connection and clears the registration.
func (m *LifecycleManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	m.current.Stop()
	m.current = nil
}

// Toggle persists the active flag and starts or stops the connection
// accordingly.
func (m *LifecycleManager) Toggle(ctx context.Context, active bool) error {
	if err := m.settings.SetActive(ctx, active); err != nil {
		return fmt.Errorf("persist active flag: %w", err)
	}
	if active {
		return m.Start(ctx)
	}
	m.Stop()
	return nil
}

// Connected reports whether a live connection is registered.
func (m *LifecycleManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.Running()
}

// Send routes a send through the current connection, so holders of the
// manager survive reconnects. With no live connection it returns the typed
// not-connected failure.
func (m *LifecycleManager) Send(ctx context.Context, r notification.Recipient, text string) notification.DeliveryResult {
	m.mu.Lock()
	conn := m.current
	m.mu.Unlock()

	if conn == nil {
		return notification.NewFailureResult(r, notification.ErrNotConnected, false)
	}
	return conn.Send(ctx, r, text)
}

// StartWithRetry runs Start and, on failure, schedules one delayed retry.
// Used at boot so a transient network failure does not leave the service
// without a bot until the next manual toggle.
func (m *LifecycleManager) StartWithRetry(ctx context.Context, retryAfter time.Duration) {
	if err := m.Start(ctx); err == nil {
		return
	} else {
		m.logger.Error("bot start failed, will retry once", "retry_after", retryAfter, "error", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryAfter):
		}
		if err := m.Start(ctx); err != nil {
			m.logger.Error("bot start retry failed", "error", err)
		}
	}()
}
