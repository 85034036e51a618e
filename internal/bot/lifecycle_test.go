package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

func newManagerFixture(t *testing.T, active bool) (*LifecycleManager, *fakeBotAPI, *atomic.Int64) {
	t.Helper()
	api := newFakeBotAPI(t)
	settings := &fakeSettingsStore{settings: messaging.BotSettings{Active: active}}

	var built atomic.Int64
	factory := func() (*Connection, error) {
		built.Add(1)
		return newTestConnection(t, api, newFakeContactStore(), &fakeMessageStore{}, settings, nil), nil
	}

	m := NewLifecycleManager(factory, settings, nil, 10*time.Millisecond)
	t.Cleanup(m.Stop)
	return m, api, &built
}

func TestStartCreatesSingleConnection(t *testing.T) {
	m, _, built := newManagerFixture(t, true)

	require.NoError(t, m.Start(context.Background()))

	assert.True(t, m.Connected())
	assert.Equal(t, int64(1), built.Load())
}

func TestStartIsIdempotentAndReplacesStaleConnection(t *testing.T) {
	m, _, built := newManagerFixture(t, true)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	// The second start tore down the first connection and built a fresh one;
	// at no point were two connections live.
	assert.True(t, m.Connected())
	assert.Equal(t, int64(2), built.Load())
}

func TestStartRespectsInactiveSettings(t *testing.T) {
	m, _, built := newManagerFixture(t, false)

	require.NoError(t, m.Start(context.Background()))

	assert.False(t, m.Connected())
	assert.Equal(t, int64(0), built.Load())
}

func TestStartFailsWithoutToken(t *testing.T) {
	settings := &fakeSettingsStore{settings: messaging.BotSettings{Active: true}}
	factory := func() (*Connection, error) { return nil, ErrNoToken }
	m := NewLifecycleManager(factory, settings, nil, time.Millisecond)

	err := m.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, m.Connected())
}

func TestToggleOffPersistsAndDisconnects(t *testing.T) {
	m, _, _ := newManagerFixture(t, true)
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Toggle(context.Background(), false))

	assert.False(t, m.Connected())
}

func TestToggleOnConnects(t *testing.T) {
	m, _, _ := newManagerFixture(t, false)

	require.NoError(t, m.Toggle(context.Background(), true))

	assert.True(t, m.Connected())
}

func TestSendWithoutConnectionReturnsTypedFailure(t *testing.T) {
	m, _, _ := newManagerFixture(t, true)

	result := m.Send(context.Background(), notification.ByChatID(42), "hello")

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, notification.ErrNotConnected)
}

func TestSendRoutesThroughCurrentConnection(t *testing.T) {
	m, api, _ := newManagerFixture(t, true)
	require.NoError(t, m.Start(context.Background()))

	result := m.Send(context.Background(), notification.ByChatID(42), "hello")

	assert.True(t, result.Success)
	assert.Equal(t, 1, api.sentCount())
}

func TestSendSurvivesReconnect(t *testing.T) {
	m, api, _ := newManagerFixture(t, true)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	// Holders of the manager keep a working send path across restarts.
	result := m.Send(context.Background(), notification.ByChatID(42), "hello")

	assert.True(t, result.Success)
	assert.Equal(t, 1, api.sentCount())
}

func TestStopClearsRegistration(t *testing.T) {
	m, _, _ := newManagerFixture(t, true)
	require.NoError(t, m.Start(context.Background()))

	m.Stop()

	assert.False(t, m.Connected())
}
