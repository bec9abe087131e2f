package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/domain"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func fakeClient(h *Hub, id string) *Client {
	return &Client{id: id, hub: h, send: make(chan []byte, 8), logger: h.logger}
}

func TestHub_NotifyReachesSubscribers(t *testing.T) {
	h := startHub(t)

	allTime := fakeClient(h, "all-time")
	season := fakeClient(h, "season")
	both := fakeClient(h, "both")
	other := fakeClient(h, "other")
	for _, c := range []*Client{allTime, season, both, other} {
		h.Register(c)
	}
	h.Subscribe(allTime, "lb")
	h.Subscribe(season, "lb-2025-11")
	h.Subscribe(both, "lb")
	h.Subscribe(both, "lb-2025-11")
	h.Subscribe(other, "chess")

	require.Eventually(t, func() bool {
		return h.GetSubscriberCount("lb") == 2 && h.GetSubscriberCount("lb-2025-11") == 2 && h.GetSubscriberCount("chess") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, h.GetTotalConnections())

	err := h.Notify(context.Background(), domain.Notification{
		Type:          domain.NotificationMatchRecorded,
		LeaderboardID: "lb",
		SeasonID:      "lb-2025-11",
		EventID:       "evt-1",
	})
	require.NoError(t, err)

	for _, c := range []*Client{allTime, season, both} {
		select {
		case raw := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, "match_recorded", msg.Type)
			assert.Equal(t, "lb", msg.LeaderboardID)
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.id)
		}
	}

	// each client gets the event once
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, both.send)
	assert.Empty(t, other.send)
}

func TestServeWs(t *testing.T) {
	h := startHub(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(h, logger, w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?leaderboard_id=lb"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.GetSubscriberCount("lb") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	var pong Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, MessageTypePong, pong.Type)

	require.NoError(t, h.Notify(context.Background(), domain.Notification{
		Type:          domain.NotificationMatchUndone,
		LeaderboardID: "lb",
		EventID:       "evt-2",
	}))
	var event Message
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "match_undone", event.Type)
}
