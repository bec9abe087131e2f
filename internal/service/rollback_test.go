package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

var errWriteFailed = errors.New("write failed")

// faultyStore hands transactions a ledger that fails selected writes
type faultyStore struct {
	store.Store
	failCreateOn string // leaderboard id
	failDelete   string // match id

	mu    sync.Mutex
	locks []string
}

func (s *faultyStore) InTx(ctx context.Context, fn func(tx store.Ledger) error) error {
	return s.Store.InTx(ctx, func(tx store.Ledger) error {
		return fn(&faultyLedger{Ledger: tx, store: s})
	})
}

type faultyLedger struct {
	store.Ledger
	store *faultyStore
}

func (l *faultyLedger) CreateMatch(ctx context.Context, m *domain.Match) error {
	if m.LeaderboardID == l.store.failCreateOn {
		return errWriteFailed
	}
	return l.Ledger.CreateMatch(ctx, m)
}

func (l *faultyLedger) DeleteMatch(ctx context.Context, matchID string) error {
	if matchID == l.store.failDelete {
		return errWriteFailed
	}
	return l.Ledger.DeleteMatch(ctx, matchID)
}

func (l *faultyLedger) LockGameSystem(ctx context.Context, gameType string) ([]domain.Leaderboard, error) {
	l.store.mu.Lock()
	l.store.locks = append(l.store.locks, gameType)
	l.store.mu.Unlock()
	return l.Ledger.LockGameSystem(ctx, gameType)
}

// serviceOver builds a second service on st that shares the fixture's clock
func (f *fixture) serviceOver(t *testing.T, st store.Store) *LedgerService {
	t.Helper()
	cfg := config.DefaultConfig()
	svc, err := NewLedgerService(st, &cfg.Ledger, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return f.now })
	svc.SetMetrics(f.metrics)
	return svc
}

func (f *fixture) currentSeason(t *testing.T) *domain.Leaderboard {
	t.Helper()
	season, err := f.store.FindLeaderboard(context.Background(), "pool", f.now.Format("2006-01"))
	require.NoError(t, err)
	return season
}

func (f *fixture) player(t *testing.T, leaderboardID, externalID string) *domain.Player {
	t.Helper()
	p, err := f.store.GetPlayerByExternalID(context.Background(), leaderboardID, externalID)
	require.NoError(t, err)
	return p
}

func TestRecordMatch_AllTimeFailureRollsBackSeason(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	season := f.currentSeason(t)
	ctx := context.Background()

	svc := f.serviceOver(t, &faultyStore{Store: f.store, failCreateOn: lb.ID})
	_, err := svc.RecordMatch(ctx, domain.MatchRequest{WinnerID: "alice", LoserID: "bob"})
	require.ErrorIs(t, err, errWriteFailed)

	for _, id := range []string{season.ID, lb.ID} {
		for _, name := range []string{"alice", "bob"} {
			p := f.player(t, id, name)
			assert.Equal(t, 1000, p.Rating)
			assert.Zero(t, p.Games())
		}
		_, err := f.store.LatestMatch(ctx, id)
		assert.ErrorIs(t, err, domain.ErrMatchNotFound)
	}
}

func TestUndoLastMatch_AllTimeFailureRollsBackSeason(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	f.win(t, "alice", "bob")
	last := f.win(t, "bob", "alice")
	seasonID := last.Season.Leaderboard.ID
	aliceBefore := f.player(t, seasonID, "alice")

	svc := f.serviceOver(t, &faultyStore{Store: f.store, failDelete: last.AllTime.Match.ID})
	_, err := svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: lb.ID})
	require.ErrorIs(t, err, errWriteFailed)

	alice := f.player(t, seasonID, "alice")
	assert.Equal(t, aliceBefore.Rating, alice.Rating)
	assert.Equal(t, 1, alice.Losses)
	for _, id := range []string{seasonID, lb.ID} {
		latest, err := f.store.LatestMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, last.EventID, latest.EventID)
	}
}

func TestUndoLastMatch_RefusesNegativeCounters(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	res := f.win(t, "alice", "bob")

	// the all-time counter drifted away from the match history
	alice := f.player(t, lb.ID, "alice")
	alice.Wins = 0
	require.NoError(t, f.store.UpdatePlayerStanding(ctx, alice))

	_, err := f.svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: lb.ID})
	require.ErrorIs(t, err, domain.ErrLedgerDiverged)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerDivergence.WithLabelValues("pool", "undo")))

	// the season reversal was rolled back with it
	seasonAlice := f.player(t, res.Season.Leaderboard.ID, "alice")
	assert.Equal(t, 1016, seasonAlice.Rating)
	assert.Equal(t, 1, seasonAlice.Wins)
	latest, err := f.store.LatestMatch(ctx, res.Season.Leaderboard.ID)
	require.NoError(t, err)
	assert.Equal(t, res.EventID, latest.EventID)
}

type recordingCache struct {
	deleted []string
}

func (c *recordingCache) StorePlayers(context.Context, string, []domain.Player) error { return nil }

func (c *recordingCache) ReplaceLeaderboard(context.Context, string, []domain.Player) error {
	return nil
}

func (c *recordingCache) TopPlayers(context.Context, string, int) ([]domain.RankedPlayer, bool, error) {
	return nil, false, nil
}

func (c *recordingCache) DeleteLeaderboards(_ context.Context, ids ...string) error {
	c.deleted = append(c.deleted, ids...)
	return nil
}

func TestDeleteGameSystem_ListsBoardsUnderLock(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	season := f.currentSeason(t)
	ctx := context.Background()

	st := &faultyStore{Store: f.store}
	svc := f.serviceOver(t, st)
	cache := &recordingCache{}
	svc.SetCache(cache)

	n, err := svc.DeleteGameSystem(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"pool"}, st.locks)
	assert.ElementsMatch(t, []string{lb.ID, season.ID}, cache.deleted)
}
