package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a minimal Bot API for one method.
func fakeAPI(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("TEST_TOKEN")
	cfg.BaseURL = srv.URL
	cfg.PollTimeout = 1
	cfg.Timeout = 2 * time.Second
	return srv, NewClient(cfg)
}

func apiOK(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(APIResponse{OK: true, Result: raw})
}

func apiError(w http.ResponseWriter, code int, description string) {
	_ = json.NewEncoder(w).Encode(APIResponse{OK: false, ErrorCode: code, Description: description})
}

func TestSendTextPostsChatIDAndText(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		apiOK(w, Message{MessageID: 77, Chat: &Chat{ID: 123}})
	})

	msg, err := client.SendText(context.Background(), 123, "hello")

	require.NoError(t, err)
	assert.Equal(t, int64(77), msg.MessageID)
	assert.Equal(t, "/botTEST_TOKEN/sendMessage", gotPath)
	assert.Equal(t, float64(123), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestSendTextToHandleAddsAtPrefix(t *testing.T) {
	var gotBody map[string]any
	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		apiOK(w, Message{MessageID: 1, Chat: &Chat{ID: 5}})
	})

	_, err := client.SendTextToHandle(context.Background(), "operator", "hi")

	require.NoError(t, err)
	assert.Equal(t, "@operator", gotBody["chat_id"])
}

func TestSendTextAPIErrorIsTyped(t *testing.T) {
	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		apiError(w, 400, "Bad Request: chat not found")
	})

	_, err := client.SendText(context.Background(), 123, "hello")

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
	assert.True(t, IsChatNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestGetMe(t *testing.T) {
	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		apiOK(w, User{ID: 1, IsBot: true, FirstName: "Clinic", Username: "clinic_notify_bot"})
	})

	me, err := client.GetMe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "clinic_notify_bot", me.Username)
}

func TestPollAdvancesOffsetAndStopsOnCancel(t *testing.T) {
	var calls atomic.Int64
	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		if calls.Add(1) == 1 {
			apiOK(w, []Update{
				{UpdateID: 10, Message: &Message{MessageID: 1, Chat: &Chat{ID: 5}, Text: "hi"}},
			})
			return
		}
		// Second call must carry offset = 11.
		assert.Equal(t, float64(11), body["offset"])
		apiOK(w, []Update{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	var handled atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- client.Poll(ctx, func(_ context.Context, u *Update) {
			if u.Message != nil {
				handled.Add(1)
			}
		})
	}()

	assert.Eventually(t, func() bool { return handled.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("poll loop did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestPollReturnsOnConflict(t *testing.T) {
	_, client := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusConflict, "terminated by other getUpdates request")
	})

	err := client.Poll(context.Background(), func(context.Context, *Update) {})

	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{Code: 429}))
	assert.True(t, IsRetryable(&APIError{Code: 500}))
	assert.False(t, IsRetryable(&APIError{Code: 400}))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsBlocked(&APIError{Code: 403}))
	assert.False(t, IsBlocked(&APIError{Code: 400}))

	assert.True(t, IsConflict(&APIError{Code: 409}))
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Anna Petrova", (&User{FirstName: "Anna", LastName: "Petrova"}).FullName())
	assert.Equal(t, "Anna", (&User{FirstName: "Anna"}).FullName())
}
