package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/elo-ledger/internal/domain"
)

// PlayerProfile returns a player's statistics on the all-time ledger and,
// when the player has a row there, on the season. A season id selects that
// season; any other id selects the current month.
func (s *LedgerService) PlayerProfile(ctx context.Context, externalID, leaderboardID string) (*domain.PlayerProfile, error) {
	var (
		allTime, season *domain.Leaderboard
		err             error
	)
	if leaderboardID == "" {
		allTime, err = s.resolveAllTime(ctx, s.store, "")
	} else {
		allTime, err = s.store.GetLeaderboard(ctx, leaderboardID)
	}
	if err != nil {
		return nil, err
	}

	if !allTime.IsAllTime() {
		season = allTime
		allTime, err = s.store.FindLeaderboard(ctx, season.GameType, "")
		if err != nil {
			return nil, err
		}
	} else {
		season, err = s.store.FindLeaderboard(ctx, allTime.GameType, domain.SeasonKey(s.now()))
		if err != nil && !errors.Is(err, domain.ErrLeaderboardNotFound) {
			return nil, err
		}
	}

	allTimeStats, err := s.playerStats(ctx, *allTime, externalID)
	if err != nil {
		return nil, err
	}
	profile := &domain.PlayerProfile{AllTime: *allTimeStats}

	if season != nil {
		seasonStats, err := s.playerStats(ctx, *season, externalID)
		switch {
		case errors.Is(err, domain.ErrPlayerNotFound):
		case err != nil:
			return nil, err
		default:
			profile.Season = seasonStats
		}
	}
	return profile, nil
}

// playerView is one match seen from a single participant
type playerView struct {
	rank        int
	change      int
	ratingAfter int
	opponents   map[string]int // opponent player id -> opponent rank
}

func viewOf(m domain.Match, playerID string) (playerView, bool) {
	switch o := m.Outcome.(type) {
	case domain.TwoPartyOutcome:
		switch playerID {
		case o.WinnerID:
			return playerView{rank: 1, change: o.RatingChange, ratingAfter: o.WinnerRatingAfter, opponents: map[string]int{o.LoserID: 2}}, true
		case o.LoserID:
			return playerView{rank: 2, change: -o.RatingChange, ratingAfter: o.LoserRatingAfter, opponents: map[string]int{o.WinnerID: 1}}, true
		}
	case domain.MultiPartyOutcome:
		var self *domain.MatchParticipant
		for i := range o.Participants {
			if o.Participants[i].PlayerID == playerID {
				self = &o.Participants[i]
				break
			}
		}
		if self == nil {
			return playerView{}, false
		}
		v := playerView{
			rank:        self.Rank,
			change:      self.RatingChange,
			ratingAfter: self.StartRating + self.RatingChange,
			opponents:   make(map[string]int),
		}
		for _, p := range o.Participants {
			if p.TeamKey != self.TeamKey {
				v.opponents[p.PlayerID] = p.Rank
			}
		}
		return v, true
	}
	return playerView{}, false
}

func (s *LedgerService) playerStats(ctx context.Context, lb domain.Leaderboard, externalID string) (*domain.PlayerStats, error) {
	player, err := s.store.GetPlayerByExternalID(ctx, lb.ID, externalID)
	if err != nil {
		return nil, err
	}
	roster, err := s.store.ListPlayers(ctx, lb.ID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	byID := make(map[string]domain.Player, len(roster))
	for _, p := range roster {
		byID[p.ID] = p
	}
	matches, err := s.store.ListPlayerMatches(ctx, lb.ID, player.ID)
	if err != nil {
		return nil, fmt.Errorf("listing player matches: %w", err)
	}

	stats := &domain.PlayerStats{
		Leaderboard:  lb,
		Player:       *player,
		Games:        player.Games(),
		WinRate:      percent(player.Wins, player.Games()),
		PeakRating:   player.Rating,
		LowestRating: player.Rating,
		History:      make([]domain.HistoryEntry, 0, len(matches)),
	}

	records := make(map[string]*domain.OpponentRecord)
	first := true
	for _, m := range matches {
		v, ok := viewOf(m, player.ID)
		if !ok {
			continue
		}
		if first {
			startRating := v.ratingAfter - v.change
			stats.PeakRating, stats.LowestRating = startRating, startRating
			first = false
		}
		stats.PeakRating = max(stats.PeakRating, v.ratingAfter)
		stats.LowestRating = min(stats.LowestRating, v.ratingAfter)

		result := domain.ResultLoss
		if v.rank == 1 {
			result = domain.ResultWin
		}
		entry := domain.HistoryEntry{
			MatchID:      m.ID,
			EventID:      m.EventID,
			Timestamp:    m.Timestamp,
			Result:       result,
			Rank:         v.rank,
			RatingChange: v.change,
			RatingAfter:  v.ratingAfter,
			Opponents:    make([]string, 0, len(v.opponents)),
			Started:      m.StarterID == player.ID,
		}

		for oppID, oppRank := range v.opponents {
			opp, known := byID[oppID]
			if !known {
				opp = domain.Player{ID: oppID, ExternalID: oppID, Name: oppID}
			}
			entry.Opponents = append(entry.Opponents, opp.ExternalID)

			rec, ok := records[oppID]
			if !ok {
				rec = &domain.OpponentRecord{ExternalID: opp.ExternalID, Name: opp.Name}
				records[oppID] = rec
			}
			switch {
			case v.rank < oppRank:
				rec.Wins++
			case v.rank > oppRank:
				rec.Losses++
			}
		}
		sort.Strings(entry.Opponents)

		if entry.Started {
			stats.StarterGames++
			if result == domain.ResultWin {
				stats.StarterWins++
			}
		}
		stats.History = append(stats.History, entry)
	}
	stats.StarterWinRate = percent(stats.StarterWins, stats.StarterGames)
	stats.CurrentStreak = currentStreak(stats.History)

	stats.Opponents = make([]domain.OpponentRecord, 0, len(records))
	for _, rec := range records {
		if rec.Games() == 0 {
			continue
		}
		rec.WinRate = percent(rec.Wins, rec.Games())
		stats.Opponents = append(stats.Opponents, *rec)
	}
	sort.Slice(stats.Opponents, func(i, j int) bool {
		a, b := stats.Opponents[i], stats.Opponents[j]
		if a.Games() != b.Games() {
			return a.Games() > b.Games()
		}
		return a.Name < b.Name
	})
	stats.MostFavorable, stats.LeastFavorable = favorability(stats.Opponents, s.config.MinOpponentGames)
	return stats, nil
}

func currentStreak(history []domain.HistoryEntry) domain.Streak {
	if len(history) == 0 {
		return domain.Streak{}
	}
	last := history[len(history)-1].Result
	n := 0
	for i := len(history) - 1; i >= 0 && history[i].Result == last; i-- {
		n++
	}
	kind := domain.StreakLoss
	if last == domain.ResultWin {
		kind = domain.StreakWin
	}
	return domain.Streak{Kind: kind, Length: n}
}

// favorability picks the best and worst head-to-head records among opponents
// with at least minGames decided games. Ties go to more games, then name.
func favorability(records []domain.OpponentRecord, minGames int) (best, worst *domain.OpponentRecord) {
	for i := range records {
		r := &records[i]
		if r.Games() < minGames {
			continue
		}
		if best == nil || better(r, best, true) {
			best = r
		}
		if worst == nil || better(r, worst, false) {
			worst = r
		}
	}
	if best != nil {
		b := *best
		best = &b
	}
	if worst != nil {
		w := *worst
		worst = &w
	}
	return best, worst
}

func better(a, b *domain.OpponentRecord, higher bool) bool {
	if a.WinRate != b.WinRate {
		if higher {
			return a.WinRate > b.WinRate
		}
		return a.WinRate < b.WinRate
	}
	if a.Games() != b.Games() {
		return a.Games() > b.Games()
	}
	return a.Name < b.Name
}

// percent returns n/d as a percentage rounded to one decimal
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(d)) / 10
}
