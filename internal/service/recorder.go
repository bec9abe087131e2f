package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/rating"
	"github.com/elo-ledger/internal/store"
)

// normalizeParticipants turns either request shape into a participant list
func normalizeParticipants(req domain.MatchRequest) ([]domain.ParticipantInput, error) {
	winner, loser := strings.TrimSpace(req.WinnerID), strings.TrimSpace(req.LoserID)
	pair := winner != "" || loser != ""

	if pair && len(req.Participants) > 0 {
		return nil, fmt.Errorf("%w: give either winner/loser or participants, not both", domain.ErrInvalidMatch)
	}
	if pair {
		if winner == "" || loser == "" {
			return nil, fmt.Errorf("%w: both winner and loser are required", domain.ErrInvalidMatch)
		}
		if winner == loser {
			return nil, fmt.Errorf("%w: winner and loser are the same player", domain.ErrInvalidMatch)
		}
		return []domain.ParticipantInput{
			{ExternalID: winner, Rank: 1},
			{ExternalID: loser, Rank: 2},
		}, nil
	}

	if len(req.Participants) < 2 {
		return nil, fmt.Errorf("%w: at least two participants are required", domain.ErrInvalidMatch)
	}

	seen := make(map[string]bool, len(req.Participants))
	best := 0
	out := make([]domain.ParticipantInput, len(req.Participants))
	for i, p := range req.Participants {
		p.ExternalID = strings.TrimSpace(p.ExternalID)
		p.TeamKey = strings.TrimSpace(p.TeamKey)
		if p.ExternalID == "" {
			return nil, fmt.Errorf("%w: participant %d has no id", domain.ErrInvalidMatch, i+1)
		}
		if p.Rank < 1 {
			return nil, fmt.Errorf("%w: participant %s has no rank", domain.ErrInvalidMatch, p.ExternalID)
		}
		if seen[p.ExternalID] {
			return nil, fmt.Errorf("%w: participant %s listed twice", domain.ErrInvalidMatch, p.ExternalID)
		}
		seen[p.ExternalID] = true
		if best == 0 || p.Rank < best {
			best = p.Rank
		}
		out[i] = p
	}
	if best != 1 {
		return nil, fmt.Errorf("%w: ranks must start at 1", domain.ErrInvalidMatch)
	}
	return out, nil
}

// teamKey is the participant's team, or its own id when playing solo
func teamKey(in domain.ParticipantInput) string {
	if in.TeamKey != "" {
		return in.TeamKey
	}
	return in.ExternalID
}

// isTwoParty reports whether a result is stored as a plain winner/loser pair
func isTwoParty(inputs []domain.ParticipantInput) bool {
	if len(inputs) != 2 {
		return false
	}
	return inputs[0].Rank != inputs[1].Rank && teamKey(inputs[0]) != teamKey(inputs[1])
}

// RecordMatch applies one result to the season and all-time ledgers of the
// game system in a single transaction.
func (s *LedgerService) RecordMatch(ctx context.Context, req domain.MatchRequest) (result *domain.MatchResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("record_match", start, err) }()

	inputs, err := normalizeParticipants(req)
	if err != nil {
		return nil, err
	}

	allTime, season, err := s.EnsureSeason(ctx, req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	eventID := uuid.NewString()
	ts := store.Millis(s.now())

	err = s.store.InTx(ctx, func(tx store.Ledger) error {
		if err := s.lockSystem(ctx, tx, allTime, season); err != nil {
			return err
		}

		allTimePlayers := make([]*domain.Player, len(inputs))
		for i, in := range inputs {
			p, err := tx.GetPlayerByExternalID(ctx, allTime.ID, in.ExternalID)
			if err != nil {
				return fmt.Errorf("resolving %s on %s: %w", in.ExternalID, allTime.Name, err)
			}
			allTimePlayers[i] = p
		}

		seasonPlayers := make([]*domain.Player, len(inputs))
		for i, in := range inputs {
			p, err := tx.GetPlayerByExternalID(ctx, season.ID, in.ExternalID)
			if errors.Is(err, domain.ErrPlayerNotFound) {
				p = &domain.Player{
					LeaderboardID: season.ID,
					ExternalID:    in.ExternalID,
					Name:          allTimePlayers[i].Name,
					Rating:        s.defaultRating(),
					CreatedAt:     s.now().UTC(),
				}
				err = tx.CreatePlayer(ctx, p)
			}
			if err != nil {
				return fmt.Errorf("resolving %s on %s: %w", in.ExternalID, season.Name, err)
			}
			seasonPlayers[i] = p
		}

		ts, err = nextTimestamp(ctx, tx, ts, allTime.ID, season.ID)
		if err != nil {
			return err
		}

		seasonResult, err := s.applyMatch(ctx, tx, *season, seasonPlayers, inputs, eventID, ts)
		if err != nil {
			return err
		}
		allTimeResult, err := s.applyMatch(ctx, tx, *allTime, allTimePlayers, inputs, eventID, ts)
		if err != nil {
			return err
		}

		result = &domain.MatchResult{
			EventID:   eventID,
			Timestamp: ts,
			Season:    seasonResult,
			AllTime:   allTimeResult,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := result.AllTime.Match.Outcome.Kind()
	s.metrics.MatchesRecorded.WithLabelValues(allTime.GameType, string(kind)).Inc()
	s.logger.Info("match recorded",
		"event_id", eventID,
		"leaderboard_id", allTime.ID,
		"season_id", season.ID,
		"kind", kind,
		"participants", len(inputs),
	)

	s.refreshCache(ctx, result.Season, result.AllTime)
	if req.Source == "" || req.Source != s.originSource {
		s.announce(ctx, domain.Notification{
			Type:          domain.NotificationMatchRecorded,
			LeaderboardID: allTime.ID,
			SeasonID:      season.ID,
			GameType:      allTime.GameType,
			Target:        allTime.NotifyTarget,
			Source:        req.Source,
			EventID:       eventID,
			Timestamp:     ts,
			Data:          result,
		})
	}
	return result, nil
}

// lockSystem serialises writers of the game system and checks that the season
// still exists.
func (s *LedgerService) lockSystem(ctx context.Context, tx store.Ledger, allTime, season *domain.Leaderboard) error {
	boards, err := tx.LockGameSystem(ctx, allTime.GameType)
	if err != nil {
		return fmt.Errorf("locking game system %s: %w", allTime.GameType, err)
	}
	var haveAllTime, haveSeason bool
	for _, b := range boards {
		haveAllTime = haveAllTime || b.ID == allTime.ID
		haveSeason = haveSeason || season == nil || b.ID == season.ID
	}
	if !haveAllTime {
		return fmt.Errorf("%w: %s", domain.ErrLeaderboardNotFound, allTime.ID)
	}
	if !haveSeason {
		s.seasons.forget(allTime.GameType)
		return fmt.Errorf("%w: season %s", domain.ErrLeaderboardNotFound, season.ID)
	}
	return nil
}

// nextTimestamp keeps timestamps strictly increasing on both ledgers
func nextTimestamp(ctx context.Context, tx store.Ledger, ts time.Time, leaderboardIDs ...string) (time.Time, error) {
	for _, id := range leaderboardIDs {
		latest, err := tx.LatestMatch(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			continue
		}
		if err != nil {
			return ts, fmt.Errorf("reading latest match: %w", err)
		}
		if !ts.After(latest.Timestamp) {
			ts = latest.Timestamp.Add(time.Millisecond)
		}
	}
	return ts, nil
}

// applyMatch rates one ledger's view of the match, updates standings and stores the match row
func (s *LedgerService) applyMatch(
	ctx context.Context,
	tx store.Ledger,
	lb domain.Leaderboard,
	players []*domain.Player,
	inputs []domain.ParticipantInput,
	eventID string,
	ts time.Time,
) (domain.LedgerResult, error) {
	parts := make([]rating.Participant, len(players))
	for i, p := range players {
		parts[i] = rating.Participant{
			ID:      p.ID,
			Rating:  p.Rating,
			Rank:    inputs[i].Rank,
			TeamKey: teamKey(inputs[i]),
		}
	}
	deltas, err := s.calc.ComputeDeltas(parts)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	res := domain.LedgerResult{
		Leaderboard:  lb,
		Participants: make([]domain.ParticipantResult, len(players)),
	}
	rows := make([]domain.MatchParticipant, len(players))
	for i, p := range players {
		before, delta := p.Rating, deltas[p.ID]
		p.Rating += delta
		if inputs[i].Rank == 1 {
			p.Wins++
		} else {
			p.Losses++
		}
		if err := tx.UpdatePlayerStanding(ctx, p); err != nil {
			return domain.LedgerResult{}, err
		}

		res.Participants[i] = domain.ParticipantResult{
			Player:       *p,
			Rank:         inputs[i].Rank,
			TeamKey:      teamKey(inputs[i]),
			RatingBefore: before,
			RatingAfter:  p.Rating,
			RatingChange: delta,
		}
		rows[i] = domain.MatchParticipant{
			PlayerID:     p.ID,
			TeamKey:      teamKey(inputs[i]),
			Rank:         inputs[i].Rank,
			StartRating:  before,
			RatingChange: delta,
		}
	}

	match := domain.Match{
		LeaderboardID: lb.ID,
		EventID:       eventID,
		Timestamp:     ts,
	}
	if isTwoParty(inputs) {
		w, l := 0, 1
		if inputs[1].Rank < inputs[0].Rank {
			w, l = 1, 0
		}
		match.Outcome = domain.TwoPartyOutcome{
			WinnerID:          players[w].ID,
			LoserID:           players[l].ID,
			WinnerRatingAfter: players[w].Rating,
			LoserRatingAfter:  players[l].Rating,
			RatingChange:      deltas[players[w].ID],
		}
	} else {
		match.Outcome = domain.MultiPartyOutcome{Participants: rows}
	}

	if err := tx.CreateMatch(ctx, &match); err != nil {
		return domain.LedgerResult{}, err
	}
	res.Match = match
	return res, nil
}
