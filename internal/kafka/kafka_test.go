package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
)

type stubRecorder struct {
	errs []error
	reqs []domain.MatchRequest
}

func (s *stubRecorder) RecordMatch(_ context.Context, req domain.MatchRequest) (*domain.MatchResult, error) {
	s.reqs = append(s.reqs, req)
	if n := len(s.reqs); n <= len(s.errs) && s.errs[n-1] != nil {
		return nil, s.errs[n-1]
	}
	return &domain.MatchResult{EventID: "evt"}, nil
}

func newProcessor(rec MatchRecorder) (*processor, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return &processor{
		config:   &config.KafkaConfig{RetryAttempts: 3, RetryDelay: time.Millisecond},
		recorder: rec,
		metrics:  m,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}, m
}

func message(t *testing.T, v any) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "elo-matches", Value: data}
}

func TestProcessor_RecordsMatch(t *testing.T) {
	rec := &stubRecorder{}
	p, m := newProcessor(rec)

	got := p.handle(context.Background(), message(t, domain.MatchRequest{WinnerID: "alice", LoserID: "bob"}))

	assert.Equal(t, resultRecorded, got)
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "kafka", rec.reqs[0].Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KafkaMessages.WithLabelValues(resultRecorded)))
}

func TestProcessor_RetriesTransientErrors(t *testing.T) {
	rec := &stubRecorder{errs: []error{errors.New("database is locked"), nil}}
	p, _ := newProcessor(rec)

	got := p.handle(context.Background(), message(t, domain.MatchRequest{WinnerID: "alice", LoserID: "bob", Source: "discord"}))

	assert.Equal(t, resultRecorded, got)
	assert.Len(t, rec.reqs, 2)
	assert.Equal(t, "discord", rec.reqs[1].Source)
}

func TestProcessor_GivesUp(t *testing.T) {
	down := errors.New("connection refused")
	rec := &stubRecorder{errs: []error{down, down, down}}
	p, m := newProcessor(rec)

	assert.Equal(t, resultFailed, p.handle(context.Background(), message(t, domain.MatchRequest{WinnerID: "a", LoserID: "b"})))
	assert.Len(t, rec.reqs, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KafkaMessages.WithLabelValues(resultFailed)))
}

func TestProcessor_SkipsPermanentErrors(t *testing.T) {
	rec := &stubRecorder{errs: []error{fmt.Errorf("%w: carol", domain.ErrPlayerNotFound)}}
	p, m := newProcessor(rec)

	assert.Equal(t, resultInvalid, p.handle(context.Background(), message(t, domain.MatchRequest{WinnerID: "a", LoserID: "carol"})))
	assert.Len(t, rec.reqs, 1)

	assert.Equal(t, resultInvalid, p.handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")}))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.KafkaMessages.WithLabelValues(resultInvalid)))
}

func TestProducer_Notify(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var n domain.Notification
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		if n.EventID != "evt-1" {
			return fmt.Errorf("unexpected event %q", n.EventID)
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWithClient(sp, "elo-notifications", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	n := domain.Notification{Type: domain.NotificationMatchRecorded, LeaderboardID: "lb", EventID: "evt-1"}

	require.NoError(t, p.Notify(context.Background(), n))
	assert.ErrorIs(t, p.Notify(context.Background(), n), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestConsumer_ReadyAcrossSessions(t *testing.T) {
	c := &Consumer{ready: make(chan struct{})}

	// every rebalance builds a new handler; only the first setup signals
	for i := 0; i < 3; i++ {
		h := &consumerGroupHandler{onSetup: c.markReady}
		require.NoError(t, h.Setup(nil))
	}

	select {
	case <-c.ready:
	default:
		t.Fatal("ready was not signalled")
	}
}
