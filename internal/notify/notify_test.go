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
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
)

func TestMulti_DeliversToAllSinks(t *testing.T) {
	m := metrics.NewNoop()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var got []string
	ok := Func(func(_ context.Context, n domain.Notification) error {
		got = append(got, n.EventID)
		return nil
	})
	failing := Func(func(context.Context, domain.Notification) error {
		return errors.New("unreachable")
	})

	multi := NewMulti(m, logger,
		Sink{Name: "first", Notifier: ok},
		Sink{Name: "broken", Notifier: failing},
		Sink{Name: "missing", Notifier: nil},
		Sink{Name: "second", Notifier: ok},
	)
	assert.Equal(t, 3, multi.Len())

	err := multi.Notify(context.Background(), domain.Notification{EventID: "evt"})
	require.Error(t, err)
	assert.Equal(t, []string{"evt", "evt"}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("broken")))
}

func TestWebhook(t *testing.T) {
	var received domain.Notification
	var eventType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventType = r.Header.Get("X-Event-Type")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second)
	err := hook.Notify(context.Background(), domain.Notification{
		Type:          domain.NotificationMatchRecorded,
		LeaderboardID: "lb",
		EventID:       "evt-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "match_recorded", eventType)
	assert.Equal(t, "evt-1", received.EventID)
	assert.Equal(t, "lb", received.LeaderboardID)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), domain.Notification{})
	assert.ErrorContains(t, err, "502")
}
