package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	name   string
	events []Event
	err    error
}

func (r *recordingSender) Send(_ context.Context, event Event, _, _ string) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifyFiltersUnsubscribedEvents(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"signal_activated"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSignalActivated, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), EventSignalExpired, "t", "m"))

	assert.Equal(t, []Event{EventSignalActivated}, sender.events)
}

func TestNotifyEmptySubscriptionPassesEverything(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSignalExpired, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))

	assert.Len(t, sender.events, 2)
}

func TestNotifyFailingSenderDoesNotBlockOthers(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook down")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, testLogger())

	err := n.Notify(context.Background(), EventSignalActivated, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Len(t, healthy.events, 1)
}

func TestNotifyNoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	assert.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))
}

func TestDiscordSenderColorsByEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewDiscordSender(srv.URL)
	require.NoError(t, sender.Send(context.Background(), EventSignalActivated, "Signal: over_2.5", "match 1001"))

	embeds, ok := got["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)

	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Signal: over_2.5", embed["title"])
	assert.Equal(t, float64(0x2ECC71), embed["color"])
}

func TestTelegramSenderBadgesAndChat(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelegramSender("token", "chat-42")
	sender.baseURL = srv.URL
	require.NoError(t, sender.Send(context.Background(), EventError, "Engine", "tick failed"))

	assert.Equal(t, "chat-42", got["chat_id"])
	assert.Contains(t, got["text"], telegramBadges[EventError])
	assert.Contains(t, got["text"], "*Engine*")
}

func TestTelegramSenderSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusForbidden)
	}))
	defer srv.Close()

	sender := NewTelegramSender("token", "chat-42")
	sender.baseURL = srv.URL

	err := sender.Send(context.Background(), EventError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
