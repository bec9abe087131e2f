package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

// UndoLastMatch reverses the most recent match of a game system on both of
// its ledgers and deletes the two match rows together.
func (s *LedgerService) UndoLastMatch(ctx context.Context, req domain.UndoRequest) (result *domain.UndoResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("undo_match", start, err) }()

	allTime, err := s.resolveAllTime(ctx, s.store, req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Ledger) error {
		boards, err := tx.LockGameSystem(ctx, allTime.GameType)
		if err != nil {
			return fmt.Errorf("locking game system %s: %w", allTime.GameType, err)
		}
		byID := make(map[string]domain.Leaderboard, len(boards))
		for _, b := range boards {
			byID[b.ID] = b
		}

		anchor, err := tx.LatestMatch(ctx, allTime.ID)
		if errors.Is(err, domain.ErrMatchNotFound) {
			return domain.ErrNothingToUndo
		}
		if err != nil {
			return fmt.Errorf("reading latest match: %w", err)
		}

		counterpart, err := findCounterpart(ctx, tx, anchor, byID)
		if err != nil {
			return err
		}
		season := byID[counterpart.LeaderboardID]

		seasonResult, err := reverseMatch(ctx, tx, season, *counterpart)
		if err != nil {
			return err
		}
		allTimeResult, err := reverseMatch(ctx, tx, *allTime, *anchor)
		if err != nil {
			return err
		}

		result = &domain.UndoResult{
			EventID:   anchor.EventID,
			Timestamp: anchor.Timestamp,
			Season:    seasonResult,
			AllTime:   allTimeResult,
		}
		return nil
	})
	if errors.Is(err, domain.ErrLedgerDiverged) {
		s.metrics.LedgerDivergence.WithLabelValues(allTime.GameType, "undo").Inc()
		s.logger.Error("ledgers diverged, refusing to undo",
			"alarm", "ledger_divergence",
			"leaderboard_id", allTime.ID,
			"error", err,
		)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.MatchesUndone.WithLabelValues(allTime.GameType).Inc()
	s.logger.Info("match undone",
		"event_id", result.EventID,
		"leaderboard_id", allTime.ID,
		"season_id", result.Season.Leaderboard.ID,
	)

	s.refreshCache(ctx, result.Season, result.AllTime)
	s.announce(ctx, domain.Notification{
		Type:          domain.NotificationMatchUndone,
		LeaderboardID: allTime.ID,
		SeasonID:      result.Season.Leaderboard.ID,
		GameType:      allTime.GameType,
		Target:        allTime.NotifyTarget,
		EventID:       result.EventID,
		Timestamp:     result.Timestamp,
		Data:          result,
	})
	return result, nil
}

// findCounterpart returns the season match sharing the anchor's event id. It
// must be the latest match of its own ledger.
func findCounterpart(ctx context.Context, tx store.Ledger, anchor *domain.Match, boards map[string]domain.Leaderboard) (*domain.Match, error) {
	events, err := tx.MatchesByEvent(ctx, anchor.EventID)
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", anchor.EventID, err)
	}

	var found *domain.Match
	for i := range events {
		m := events[i]
		if m.ID == anchor.ID {
			continue
		}
		b, ok := boards[m.LeaderboardID]
		if !ok || b.IsAllTime() {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: event %s recorded on more than one season", domain.ErrLedgerDiverged, anchor.EventID)
		}
		found = &m
	}
	if found == nil {
		return nil, fmt.Errorf("%w: event %s has no season match", domain.ErrLedgerDiverged, anchor.EventID)
	}

	latest, err := tx.LatestMatch(ctx, found.LeaderboardID)
	if err != nil {
		return nil, fmt.Errorf("reading latest season match: %w", err)
	}
	if latest.ID != found.ID {
		return nil, fmt.Errorf("%w: season match of event %s is not the latest", domain.ErrLedgerDiverged, anchor.EventID)
	}
	return found, nil
}

// reverseMatch restores every participant's standing from before the match
// and deletes it.
func reverseMatch(ctx context.Context, tx store.Ledger, lb domain.Leaderboard, m domain.Match) (domain.LedgerResult, error) {
	type change struct {
		playerID string
		rank     int
		teamKey  string
		delta    int
	}

	var changes []change
	switch o := m.Outcome.(type) {
	case domain.TwoPartyOutcome:
		changes = []change{
			{playerID: o.WinnerID, rank: 1, delta: o.RatingChange},
			{playerID: o.LoserID, rank: 2, delta: -o.RatingChange},
		}
	case domain.MultiPartyOutcome:
		for _, p := range o.Participants {
			changes = append(changes, change{playerID: p.PlayerID, rank: p.Rank, teamKey: p.TeamKey, delta: p.RatingChange})
		}
	default:
		return domain.LedgerResult{}, fmt.Errorf("%w: match %s has no outcome", domain.ErrLedgerDiverged, m.ID)
	}

	res := domain.LedgerResult{
		Leaderboard:  lb,
		Match:        m,
		Participants: make([]domain.ParticipantResult, 0, len(changes)),
	}
	for _, c := range changes {
		p, err := tx.GetPlayer(ctx, c.playerID)
		if err != nil {
			return domain.LedgerResult{}, fmt.Errorf("loading participant %s: %w", c.playerID, err)
		}
		before := p.Rating
		p.Rating -= c.delta
		if c.rank == 1 {
			p.Wins--
		} else {
			p.Losses--
		}
		if p.Wins < 0 || p.Losses < 0 {
			return domain.LedgerResult{}, fmt.Errorf("%w: player %s on %s has no result left to reverse for match %s",
				domain.ErrLedgerDiverged, p.ExternalID, lb.ID, m.ID)
		}
		if err := tx.UpdatePlayerStanding(ctx, p); err != nil {
			return domain.LedgerResult{}, err
		}
		key := c.teamKey
		if key == "" {
			key = p.ExternalID
		}
		res.Participants = append(res.Participants, domain.ParticipantResult{
			Player:       *p,
			Rank:         c.rank,
			TeamKey:      key,
			RatingBefore: before,
			RatingAfter:  p.Rating,
			RatingChange: -c.delta,
		})
	}

	if err := tx.DeleteMatch(ctx, m.ID); err != nil {
		return domain.LedgerResult{}, fmt.Errorf("deleting match %s: %w", m.ID, err)
	}
	return res, nil
}
