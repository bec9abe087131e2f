// Package storetest holds behaviour tests shared by every store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

// Opener returns an empty store for one test
type Opener func(t *testing.T) store.Store

var base = time.Date(2025, time.November, 14, 18, 30, 0, 0, time.UTC)

// Run executes the suite against stores produced by open
func Run(t *testing.T, open Opener) {
	t.Run("leaderboards", func(t *testing.T) { testLeaderboards(t, open(t)) })
	t.Run("players", func(t *testing.T) { testPlayers(t, open(t)) })
	t.Run("matches", func(t *testing.T) { testMatches(t, open(t)) })
	t.Run("transaction rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("delete game system", func(t *testing.T) { testDeleteGameSystem(t, open(t)) })
}

func createBoard(t *testing.T, s store.Ledger, gameType, season string) domain.Leaderboard {
	t.Helper()
	lb := domain.Leaderboard{
		Name:        gameType,
		GameType:    gameType,
		ScoringType: domain.ScoringOneVsOne,
		Season:      season,
		CreatedAt:   base,
	}
	require.NoError(t, s.CreateLeaderboard(context.Background(), &lb))
	return lb
}

func createPlayer(t *testing.T, s store.Ledger, leaderboardID, externalID string) domain.Player {
	t.Helper()
	p := domain.Player{
		LeaderboardID: leaderboardID,
		ExternalID:    externalID,
		Name:          "Player " + externalID,
		Rating:        domain.DefaultRating,
	}
	require.NoError(t, s.CreatePlayer(context.Background(), &p))
	return p
}

func testLeaderboards(t *testing.T, s store.Store) {
	ctx := context.Background()
	allTime := createBoard(t, s, "pool", "")
	createBoard(t, s, "pool", "2025-10")
	createBoard(t, s, "pool", "2025-11")
	createBoard(t, s, "chess", "")

	got, err := s.GetLeaderboard(ctx, allTime.ID)
	require.NoError(t, err)
	assert.Equal(t, "pool", got.GameType)
	assert.True(t, got.IsAllTime())
	assert.Equal(t, base, got.CreatedAt)

	season, err := s.FindLeaderboard(ctx, "pool", "2025-11")
	require.NoError(t, err)
	assert.Equal(t, "2025-11", season.Season)

	_, err = s.FindLeaderboard(ctx, "pool", "2024-01")
	assert.True(t, domain.IsNotFoundError(err))

	_, err = s.GetLeaderboard(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrLeaderboardNotFound)

	dup := domain.Leaderboard{Name: "again", GameType: "pool", ScoringType: domain.ScoringOneVsOne}
	assert.ErrorIs(t, s.CreateLeaderboard(ctx, &dup), domain.ErrLeaderboardExists)

	list, err := s.ListLeaderboards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.True(t, list[0].IsAllTime())
	assert.True(t, list[1].IsAllTime())
	assert.Equal(t, "2025-11", list[2].Season)
	assert.Equal(t, "2025-10", list[3].Season)

	locked, err := s.LockGameSystem(ctx, "pool")
	require.NoError(t, err)
	assert.Len(t, locked, 3)
}

func testPlayers(t *testing.T, s store.Store) {
	ctx := context.Background()
	lb := createBoard(t, s, "pool", "")
	a := createPlayer(t, s, lb.ID, "a")
	b := createPlayer(t, s, lb.ID, "b")

	dup := domain.Player{LeaderboardID: lb.ID, ExternalID: "a", Name: "A again", Rating: 1000}
	assert.ErrorIs(t, s.CreatePlayer(ctx, &dup), domain.ErrPlayerExists)

	b.Rating, b.Wins = 1016, 1
	require.NoError(t, s.UpdatePlayerStanding(ctx, &b))

	got, err := s.GetPlayerByExternalID(ctx, lb.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, 1016, got.Rating)
	assert.Equal(t, 1, got.Wins)

	byID, err := s.GetPlayer(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", byID.ExternalID)

	_, err = s.GetPlayerByExternalID(ctx, lb.ID, "zzz")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	roster, err := s.ListPlayers(ctx, lb.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "b", roster[0].ExternalID)
}

func testMatches(t *testing.T, s store.Store) {
	ctx := context.Background()
	lb := createBoard(t, s, "pool", "")
	a := createPlayer(t, s, lb.ID, "a")
	b := createPlayer(t, s, lb.ID, "b")
	c := createPlayer(t, s, lb.ID, "c")

	_, err := s.LatestMatch(ctx, lb.ID)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	first := domain.Match{
		LeaderboardID: lb.ID,
		EventID:       uuid.NewString(),
		Timestamp:     base,
		Outcome: domain.TwoPartyOutcome{
			WinnerID: a.ID, LoserID: b.ID,
			WinnerRatingAfter: 1016, LoserRatingAfter: 984, RatingChange: 16,
		},
	}
	require.NoError(t, s.CreateMatch(ctx, &first))

	second := domain.Match{
		LeaderboardID: lb.ID,
		EventID:       uuid.NewString(),
		Timestamp:     base.Add(time.Second),
		Outcome: domain.MultiPartyOutcome{Participants: []domain.MatchParticipant{
			{PlayerID: c.ID, TeamKey: c.ID, Rank: 1, StartRating: 1000, RatingChange: 16},
			{PlayerID: a.ID, TeamKey: a.ID, Rank: 2, StartRating: 1016, RatingChange: -1},
			{PlayerID: b.ID, TeamKey: b.ID, Rank: 3, StartRating: 984, RatingChange: -15},
		}},
	}
	require.NoError(t, s.CreateMatch(ctx, &second))

	same := domain.Match{
		LeaderboardID: lb.ID,
		EventID:       uuid.NewString(),
		Timestamp:     base,
		Outcome:       domain.TwoPartyOutcome{WinnerID: a.ID, LoserID: b.ID},
	}
	assert.Error(t, s.CreateMatch(ctx, &same), "timestamps are unique per leaderboard")

	latest, err := s.LatestMatch(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	multi, ok := latest.Outcome.(domain.MultiPartyOutcome)
	require.True(t, ok)
	require.Len(t, multi.Participants, 3)
	assert.Equal(t, c.ID, multi.Participants[0].PlayerID)
	assert.Equal(t, -15, multi.Participants[2].RatingChange)

	byEvent, err := s.MatchesByEvent(ctx, first.EventID)
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	two, ok := byEvent[0].Outcome.(domain.TwoPartyOutcome)
	require.True(t, ok)
	assert.Equal(t, 16, two.RatingChange)
	assert.Equal(t, base, byEvent[0].Timestamp)

	near, err := s.MatchNear(ctx, lb.ID, base.Add(300*time.Millisecond), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, near.ID)

	_, err = s.MatchNear(ctx, lb.ID, base.Add(time.Minute), 2*time.Second)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	require.NoError(t, s.SetMatchStarter(ctx, first.ID, b.ID))
	byEvent, err = s.MatchesByEvent(ctx, first.EventID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byEvent[0].StarterID)

	recent, err := s.ListMatches(ctx, lb.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	history, err := s.ListPlayerMatches(ctx, lb.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)

	require.NoError(t, s.DeleteMatch(ctx, second.ID))
	latest, err = s.LatestMatch(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
	assert.ErrorIs(t, s.DeleteMatch(ctx, second.ID), domain.ErrMatchNotFound)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	lb := createBoard(t, s, "pool", "")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Ledger) error {
		p := domain.Player{LeaderboardID: lb.ID, ExternalID: "ghost", Name: "Ghost", Rating: 1000}
		if err := tx.CreatePlayer(ctx, &p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetPlayerByExternalID(ctx, lb.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	err = s.InTx(ctx, func(tx store.Ledger) error {
		p := domain.Player{LeaderboardID: lb.ID, ExternalID: "kept", Name: "Kept", Rating: 1000}
		return tx.CreatePlayer(ctx, &p)
	})
	require.NoError(t, err)
	_, err = s.GetPlayerByExternalID(ctx, lb.ID, "kept")
	assert.NoError(t, err)
}

func testDeleteGameSystem(t *testing.T, s store.Store) {
	ctx := context.Background()
	allTime := createBoard(t, s, "pool", "")
	season := createBoard(t, s, "pool", "2025-11")
	other := createBoard(t, s, "chess", "")

	for _, lb := range []domain.Leaderboard{allTime, season} {
		a := createPlayer(t, s, lb.ID, "a")
		b := createPlayer(t, s, lb.ID, "b")
		m := domain.Match{
			LeaderboardID: lb.ID,
			EventID:       "evt-1",
			Timestamp:     base,
			Outcome: domain.MultiPartyOutcome{Participants: []domain.MatchParticipant{
				{PlayerID: a.ID, TeamKey: "x", Rank: 1, StartRating: 1000, RatingChange: 16},
				{PlayerID: b.ID, TeamKey: "y", Rank: 2, StartRating: 1000, RatingChange: -16},
			}},
		}
		require.NoError(t, s.CreateMatch(ctx, &m))
	}
	createPlayer(t, s, other.ID, "a")

	byEvent, err := s.MatchesByEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, byEvent, 2)

	n, err := s.DeleteGameSystem(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetLeaderboard(ctx, season.ID)
	assert.ErrorIs(t, err, domain.ErrLeaderboardNotFound)
	byEvent, err = s.MatchesByEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, byEvent)

	_, err = s.GetPlayerByExternalID(ctx, other.ID, "a")
	assert.NoError(t, err)
}
