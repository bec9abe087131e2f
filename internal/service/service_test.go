package service

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
	"github.com/elo-ledger/internal/notify"
	"github.com/elo-ledger/internal/sqlite"
)

var november = time.Date(2025, time.November, 14, 18, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *LedgerService
	store   *sqlite.Store
	metrics *metrics.Metrics
	now     time.Time

	mu   sync.Mutex
	sent []domain.Notification
}

func (f *fixture) notifications() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.sent...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultConfig()
	svc, err := NewLedgerService(st, &cfg.Ledger, logger)
	require.NoError(t, err)

	f := &fixture{svc: svc, store: st, metrics: metrics.New(prometheus.NewRegistry()), now: november}
	svc.SetClock(func() time.Time { return f.now })
	svc.SetRandom(rand.New(rand.NewPCG(7, 11)))
	svc.SetMetrics(f.metrics)
	svc.SetNotifier(notify.Func(func(_ context.Context, n domain.Notification) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sent = append(f.sent, n)
		return nil
	}), "discord")
	return f
}

// seed creates a pool leaderboard and registers the given players on it
func (f *fixture) seed(t *testing.T, trackStarter bool, players ...string) *domain.Leaderboard {
	t.Helper()
	lb, err := f.svc.CreateLeaderboard(context.Background(), domain.CreateLeaderboardRequest{
		Name:         "Pool (All-Time)",
		GameType:     "pool",
		TrackStarter: trackStarter,
	})
	require.NoError(t, err)
	for _, id := range players {
		_, err := f.svc.RegisterPlayer(context.Background(), domain.RegisterPlayerRequest{
			LeaderboardID: lb.ID,
			ExternalID:    id,
			Name:          id,
		})
		require.NoError(t, err)
	}
	return lb
}

func (f *fixture) win(t *testing.T, winner, loser string) *domain.MatchResult {
	t.Helper()
	res, err := f.svc.RecordMatch(context.Background(), domain.MatchRequest{WinnerID: winner, LoserID: loser})
	require.NoError(t, err)
	return res
}

func (f *fixture) rating(t *testing.T, leaderboardID, externalID string) int {
	t.Helper()
	p, err := f.store.GetPlayerByExternalID(context.Background(), leaderboardID, externalID)
	require.NoError(t, err)
	return p.Rating
}

func TestCreateLeaderboard_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateLeaderboard(ctx, domain.CreateLeaderboardRequest{Name: "Pool"})
	assert.ErrorIs(t, err, domain.ErrInvalidLeaderboard)

	_, err = f.svc.CreateLeaderboard(ctx, domain.CreateLeaderboardRequest{Name: "Pool", GameType: "pool", ScoringType: "golf"})
	assert.ErrorIs(t, err, domain.ErrInvalidLeaderboard)

	lb, err := f.svc.CreateLeaderboard(ctx, domain.CreateLeaderboardRequest{Name: "Pool", GameType: " Pool "})
	require.NoError(t, err)
	assert.Equal(t, "pool", lb.GameType)
	assert.Equal(t, domain.ScoringOneVsOne, lb.ScoringType)

	_, err = f.svc.CreateLeaderboard(ctx, domain.CreateLeaderboardRequest{Name: "Again", GameType: "pool"})
	assert.ErrorIs(t, err, domain.ErrLeaderboardExists)
}

func TestRegisterPlayer(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false)
	ctx := context.Background()

	res, err := f.svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{LeaderboardID: lb.ID, ExternalID: "alice", Name: "Alice"})
	require.NoError(t, err)
	assert.True(t, res.AllTimeCreated)
	assert.True(t, res.SeasonCreated)
	assert.Equal(t, 1000, res.AllTime.Rating)
	assert.NotEqual(t, res.AllTime.LeaderboardID, res.Season.LeaderboardID)

	again, err := f.svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{LeaderboardID: lb.ID, ExternalID: "alice", Name: "Alice"})
	require.NoError(t, err)
	assert.False(t, again.AllTimeCreated)
	assert.False(t, again.SeasonCreated)
	assert.Equal(t, res.AllTime.ID, again.AllTime.ID)

	_, err = f.svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{LeaderboardID: lb.ID, ExternalID: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEnsureSeason_CreatesAndMemoizes(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, true, "alice", "bob")
	ctx := context.Background()

	allTime, season, err := f.svc.EnsureSeason(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, lb.ID, allTime.ID)
	assert.Equal(t, "Pool 2025-11", season.Name)
	assert.Equal(t, "2025-11", season.Season)
	assert.True(t, season.TrackStarter)

	// a season id resolves to the same pair
	allTime2, season2, err := f.svc.EnsureSeason(ctx, season.ID)
	require.NoError(t, err)
	assert.Equal(t, allTime.ID, allTime2.ID)
	assert.Equal(t, season.ID, season2.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SeasonsCreated.WithLabelValues("pool")))
}

func TestRecordMatch_UpdatesBothLedgers(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")

	res := f.win(t, "alice", "bob")

	assert.NotEmpty(t, res.EventID)
	assert.Equal(t, november, res.Timestamp)
	assert.Equal(t, res.EventID, res.Season.Match.EventID)
	assert.Equal(t, res.EventID, res.AllTime.Match.EventID)
	assert.Equal(t, domain.OutcomeTwoParty, res.AllTime.Match.Outcome.Kind())
	assert.Equal(t, "2025-11", res.Season.Leaderboard.Season)

	assert.Equal(t, 1016, f.rating(t, lb.ID, "alice"))
	assert.Equal(t, 984, f.rating(t, lb.ID, "bob"))
	assert.Equal(t, 1016, f.rating(t, res.Season.Leaderboard.ID, "alice"))
	assert.Equal(t, 984, f.rating(t, res.Season.Leaderboard.ID, "bob"))

	outcome := res.AllTime.Match.Outcome.(domain.TwoPartyOutcome)
	assert.Equal(t, 16, outcome.RatingChange)
	assert.Equal(t, 1016, outcome.WinnerRatingAfter)
	assert.Equal(t, 984, outcome.LoserRatingAfter)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MatchesRecorded.WithLabelValues("pool", "two_party")))
}

func TestRecordMatch_TimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	f.seed(t, false, "alice", "bob")

	first := f.win(t, "alice", "bob")
	second := f.win(t, "bob", "alice")

	assert.Equal(t, first.Timestamp.Add(time.Millisecond), second.Timestamp)
	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestRecordMatch_SeasonRollover(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob", "carol")

	nov := f.win(t, "alice", "bob")

	f.now = time.Date(2025, time.December, 1, 0, 0, 5, 0, time.UTC)
	dec := f.win(t, "alice", "bob")

	assert.NotEqual(t, nov.Season.Leaderboard.ID, dec.Season.Leaderboard.ID)
	assert.Equal(t, "Pool 2025-12", dec.Season.Leaderboard.Name)

	// the new season starts from the default rating, all-time carries on
	assert.Equal(t, 1016, f.rating(t, dec.Season.Leaderboard.ID, "alice"))
	assert.Equal(t, 1031, f.rating(t, lb.ID, "alice"))
	assert.Equal(t, 969, f.rating(t, lb.ID, "bob"))
	assert.Equal(t, 1016, f.rating(t, nov.Season.Leaderboard.ID, "alice"))

	// the whole all-time roster is carried into the new season
	roster, err := f.store.ListPlayers(context.Background(), dec.Season.Leaderboard.ID)
	require.NoError(t, err)
	byID := make(map[string]domain.Player, len(roster))
	for _, p := range roster {
		byID[p.ExternalID] = p
	}
	require.Len(t, byID, 3)
	carol, ok := byID["carol"]
	require.True(t, ok, "idle players are seeded too")
	assert.Equal(t, "carol", carol.Name)
	assert.Equal(t, 1000, carol.Rating)
	assert.Zero(t, carol.Wins)
	assert.Zero(t, carol.Losses)
	assert.Equal(t, 984, byID["bob"].Rating)
}

func TestRecordMatch_Validation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.MatchRequest
	}{
		{name: "same player", req: domain.MatchRequest{WinnerID: "alice", LoserID: "alice"}},
		{name: "missing loser", req: domain.MatchRequest{WinnerID: "alice"}},
		{name: "both shapes", req: domain.MatchRequest{
			WinnerID: "alice", LoserID: "bob",
			Participants: []domain.ParticipantInput{{ExternalID: "alice", Rank: 1}, {ExternalID: "bob", Rank: 2}},
		}},
		{name: "single participant", req: domain.MatchRequest{
			Participants: []domain.ParticipantInput{{ExternalID: "alice", Rank: 1}},
		}},
		{name: "no winner", req: domain.MatchRequest{
			Participants: []domain.ParticipantInput{{ExternalID: "alice", Rank: 2}, {ExternalID: "bob", Rank: 3}},
		}},
		{name: "duplicate", req: domain.MatchRequest{
			Participants: []domain.ParticipantInput{{ExternalID: "alice", Rank: 1}, {ExternalID: "alice", Rank: 2}},
		}},
		{name: "missing rank", req: domain.MatchRequest{
			Participants: []domain.ParticipantInput{{ExternalID: "alice", Rank: 1}, {ExternalID: "bob"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordMatch(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidMatch)
		})
	}
}

func TestRecordMatch_UnknownPlayerWritesNothing(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	_, err := f.svc.RecordMatch(ctx, domain.MatchRequest{WinnerID: "alice", LoserID: "carol"})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	_, season, err := f.svc.EnsureSeason(ctx, lb.ID)
	require.NoError(t, err)
	for _, id := range []string{lb.ID, season.ID} {
		matches, err := f.store.ListMatches(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, matches)
		assert.Equal(t, 1000, f.rating(t, id, "alice"))
	}
	_, err = f.store.GetPlayerByExternalID(ctx, season.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestRecordMatch_FreeForAll(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "a", "b", "c", "d")

	res, err := f.svc.RecordMatch(context.Background(), domain.MatchRequest{
		Participants: []domain.ParticipantInput{
			{ExternalID: "a", Rank: 1},
			{ExternalID: "b", Rank: 2},
			{ExternalID: "c", Rank: 3},
			{ExternalID: "d", Rank: 4},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeMultiParty, res.AllTime.Match.Outcome.Kind())
	want := map[string]int{"a": 1016, "b": 1005, "c": 995, "d": 984}
	for id, rating := range want {
		assert.Equal(t, rating, f.rating(t, lb.ID, id), id)
	}

	stored, err := f.store.LatestMatch(context.Background(), lb.ID)
	require.NoError(t, err)
	outcome := stored.Outcome.(domain.MultiPartyOutcome)
	require.Len(t, outcome.Participants, 4)

	a, err := f.store.GetPlayerByExternalID(context.Background(), lb.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Wins)
	d, err := f.store.GetPlayerByExternalID(context.Background(), lb.ID, "d")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Losses)
}

func TestRecordMatch_Teams(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "a", "b", "c", "d")

	res, err := f.svc.RecordMatch(context.Background(), domain.MatchRequest{
		Participants: []domain.ParticipantInput{
			{ExternalID: "a", Rank: 1, TeamKey: "red"},
			{ExternalID: "b", Rank: 1, TeamKey: "red"},
			{ExternalID: "c", Rank: 2, TeamKey: "blue"},
			{ExternalID: "d", Rank: 2, TeamKey: "blue"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeMultiParty, res.AllTime.Match.Outcome.Kind())
	assert.Equal(t, 1016, f.rating(t, lb.ID, "a"))
	assert.Equal(t, 1016, f.rating(t, lb.ID, "b"))
	assert.Equal(t, 984, f.rating(t, lb.ID, "c"))
	assert.Equal(t, 984, f.rating(t, lb.ID, "d"))
}

func TestRecordMatch_OriginSourceIsNotEchoed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	_, err := f.svc.RecordMatch(ctx, domain.MatchRequest{WinnerID: "alice", LoserID: "bob", Source: "discord"})
	require.NoError(t, err)
	assert.Empty(t, f.notifications())

	res, err := f.svc.RecordMatch(ctx, domain.MatchRequest{WinnerID: "alice", LoserID: "bob", Source: "api"})
	require.NoError(t, err)

	sent := f.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NotificationMatchRecorded, sent[0].Type)
	assert.Equal(t, res.EventID, sent[0].EventID)
	assert.Equal(t, "pool", sent[0].GameType)
}

func TestUndoLastMatch_RoundTrip(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	first := f.win(t, "alice", "bob")
	second := f.win(t, "bob", "alice")
	seasonID := second.Season.Leaderboard.ID

	undone, err := f.svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: lb.ID})
	require.NoError(t, err)
	assert.Equal(t, second.EventID, undone.EventID)

	for _, id := range []string{lb.ID, seasonID} {
		assert.Equal(t, 1016, f.rating(t, id, "alice"))
		assert.Equal(t, 984, f.rating(t, id, "bob"))
		latest, err := f.store.LatestMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, first.EventID, latest.EventID)
	}

	_, err = f.svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: seasonID})
	require.NoError(t, err)
	alice, err := f.store.GetPlayerByExternalID(ctx, lb.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1000, alice.Rating)
	assert.Zero(t, alice.Games())

	_, err = f.svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: lb.ID})
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)

	types := []domain.NotificationType{}
	for _, n := range f.notifications() {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, domain.NotificationMatchUndone)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.MatchesUndone.WithLabelValues("pool")))
}

func TestUndoLastMatch_MultiParty(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "a", "b", "c")
	ctx := context.Background()

	_, err := f.svc.RecordMatch(ctx, domain.MatchRequest{
		Participants: []domain.ParticipantInput{
			{ExternalID: "a", Rank: 1},
			{ExternalID: "b", Rank: 2},
			{ExternalID: "c", Rank: 3},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.UndoLastMatch(ctx, domain.UndoRequest{})
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 1000, f.rating(t, lb.ID, id))
	}
}

func TestUndoLastMatch_DetectsDivergence(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()

	res := f.win(t, "alice", "bob")
	require.NoError(t, f.store.DeleteMatch(ctx, res.Season.Match.ID))

	_, err := f.svc.UndoLastMatch(ctx, domain.UndoRequest{LeaderboardID: lb.ID})
	assert.ErrorIs(t, err, domain.ErrLedgerDiverged)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerDivergence.WithLabelValues("pool", "undo")))

	// nothing was reversed
	assert.Equal(t, 1016, f.rating(t, lb.ID, "alice"))
}

func TestSetMatchStarter(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, true, "alice", "bob", "carol")
	ctx := context.Background()

	res := f.win(t, "alice", "bob")

	_, err := f.svc.SetMatchStarter(ctx, domain.StarterRequest{LeaderboardID: lb.ID, EventID: res.EventID, StarterExternalID: "carol"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	set, err := f.svc.SetMatchStarter(ctx, domain.StarterRequest{
		LeaderboardID:     lb.ID,
		Timestamp:         res.Timestamp.Add(time.Second),
		StarterExternalID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, res.EventID, set.EventID)
	require.Len(t, set.Matches, 2)
	for _, m := range set.Matches {
		assert.NotEmpty(t, m.StarterID)
	}

	// same starter again is accepted, a different one is not
	_, err = f.svc.SetMatchStarter(ctx, domain.StarterRequest{EventID: res.EventID, StarterExternalID: "alice"})
	require.NoError(t, err)
	_, err = f.svc.SetMatchStarter(ctx, domain.StarterRequest{EventID: res.EventID, StarterExternalID: "bob"})
	assert.ErrorIs(t, err, domain.ErrStarterAlreadySet)

	view, err := f.svc.GetLeaderboard(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StarterSummary{MatchesWithStarter: 1, StarterWins: 1, StarterWinRate: 100}, view.Starters)

	_, err = f.svc.SetMatchStarter(ctx, domain.StarterRequest{Timestamp: res.Timestamp.Add(time.Minute), StarterExternalID: "alice"})
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	_, err = f.svc.SetMatchStarter(ctx, domain.StarterRequest{StarterExternalID: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSetMatchStarter_RequiresTracking(t *testing.T) {
	f := newFixture(t)
	f.seed(t, false, "alice", "bob")
	res := f.win(t, "alice", "bob")

	_, err := f.svc.SetMatchStarter(context.Background(), domain.StarterRequest{EventID: res.EventID, StarterExternalID: "alice"})
	assert.ErrorIs(t, err, domain.ErrStarterNotTracked)
}

func TestBuildTournament(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "a", "b", "c", "d", "e")
	ctx := context.Background()

	_, err := f.svc.BuildTournament(ctx, domain.TournamentRequest{LeaderboardID: lb.ID})
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)

	b, err := f.svc.BuildTournament(ctx, domain.TournamentRequest{
		LeaderboardID: lb.ID,
		ExternalIDs:   []string{"a", "b", "ghost", "c", "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, b.PlayerCount)
	assert.Equal(t, 4, b.BracketSize)
	assert.Equal(t, 1, b.ByeCount)
	assert.NotEmpty(t, b.Name)

	f.win(t, "a", "b")
	f.win(t, "c", "d")
	b, err = f.svc.BuildTournament(ctx, domain.TournamentRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, b.PlayerCount)
	assert.Zero(t, b.ByeCount)

	_, err = f.svc.BuildTournament(ctx, domain.TournamentRequest{ExternalIDs: []string{"a", "ghost"}})
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)
}

func TestPlayerProfile(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, true, "alice", "bob")
	ctx := context.Background()

	first := f.win(t, "alice", "bob")
	f.win(t, "alice", "bob")
	f.win(t, "bob", "alice")

	_, err := f.svc.SetMatchStarter(ctx, domain.StarterRequest{EventID: first.EventID, StarterExternalID: "alice"})
	require.NoError(t, err)

	profile, err := f.svc.PlayerProfile(ctx, "alice", lb.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Season)

	for _, stats := range []domain.PlayerStats{profile.AllTime, *profile.Season} {
		assert.Equal(t, 3, stats.Games)
		assert.Equal(t, 66.7, stats.WinRate)
		assert.Equal(t, 1031, stats.PeakRating)
		assert.Equal(t, 1000, stats.LowestRating)
		assert.Equal(t, 1012, stats.Player.Rating)
		assert.Equal(t, domain.Streak{Kind: domain.StreakLoss, Length: 1}, stats.CurrentStreak)
		require.Len(t, stats.History, 3)
		assert.Equal(t, domain.ResultWin, stats.History[0].Result)
		assert.Equal(t, []string{"bob"}, stats.History[0].Opponents)
		assert.True(t, stats.History[0].Started)

		require.Len(t, stats.Opponents, 1)
		assert.Equal(t, 2, stats.Opponents[0].Wins)
		assert.Equal(t, 1, stats.Opponents[0].Losses)
		require.NotNil(t, stats.MostFavorable)
		assert.Equal(t, "bob", stats.MostFavorable.ExternalID)
		require.NotNil(t, stats.LeastFavorable)

		assert.Equal(t, 1, stats.StarterGames)
		assert.Equal(t, 1, stats.StarterWins)
		assert.Equal(t, 100.0, stats.StarterWinRate)
	}

	bob, err := f.svc.PlayerProfile(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, 969, bob.AllTime.LowestRating)
	assert.Equal(t, 1000, bob.AllTime.PeakRating)
	assert.Equal(t, domain.Streak{Kind: domain.StreakWin, Length: 1}, bob.AllTime.CurrentStreak)

	_, err = f.svc.PlayerProfile(ctx, "nobody", lb.ID)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestFavorability(t *testing.T) {
	records := []domain.OpponentRecord{
		{ExternalID: "x", Name: "X", Wins: 3, Losses: 1, WinRate: 75},
		{ExternalID: "y", Name: "Y", Wins: 1, Losses: 3, WinRate: 25},
		{ExternalID: "z", Name: "Z", Wins: 2, Losses: 0, WinRate: 100},
		{ExternalID: "w", Name: "W", Wins: 6, Losses: 2, WinRate: 75},
	}

	best, worst := favorability(records, 3)
	require.NotNil(t, best)
	require.NotNil(t, worst)
	assert.Equal(t, "w", best.ExternalID)
	assert.Equal(t, "y", worst.ExternalID)

	best, worst = favorability(records, 10)
	assert.Nil(t, best)
	assert.Nil(t, worst)
}

func TestRankingsAndLeaderboardView(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob", "carol")
	ctx := context.Background()

	f.win(t, "alice", "bob")

	ranked, err := f.svc.Rankings(ctx, lb.ID, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "alice", ranked[0].Player.ExternalID)
	assert.Equal(t, int64(2), ranked[1].Rank)

	view, err := f.svc.GetLeaderboard(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, lb.ID, view.Leaderboard.ID)
	assert.Len(t, view.Players, 3)
	assert.Len(t, view.RecentMatches, 1)

	boards, err := f.svc.ListLeaderboards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.True(t, boards[0].IsAllTime())
}

func TestDeleteGameSystem(t *testing.T) {
	f := newFixture(t)
	lb := f.seed(t, false, "alice", "bob")
	ctx := context.Background()
	res := f.win(t, "alice", "bob")

	n, err := f.svc.DeleteGameSystem(ctx, res.Season.Leaderboard.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.GetLeaderboard(ctx, lb.ID)
	assert.ErrorIs(t, err, domain.ErrLeaderboardNotFound)

	// a recreated system gets a fresh season instead of the forgotten one
	lb2 := f.seed(t, false, "alice", "bob")
	again := f.win(t, "alice", "bob")
	assert.NotEqual(t, res.Season.Leaderboard.ID, again.Season.Leaderboard.ID)
	assert.Equal(t, lb2.ID, again.AllTime.Leaderboard.ID)
}
