package domain

import (
	"fmt"
	"strings"
	"time"
)

// ScoringType describes how matches on a leaderboard are contested
type ScoringType string

const (
	ScoringOneVsOne   ScoringType = "1v1"
	ScoringTeam       ScoringType = "team"
	ScoringFreeForAll ScoringType = "ffa"
)

// Valid reports whether the scoring type is known
func (s ScoringType) Valid() bool {
	switch s {
	case ScoringOneVsOne, ScoringTeam, ScoringFreeForAll:
		return true
	}
	return false
}

// Leaderboard is a named rating pool. All-time leaderboards have an empty Season;
// season leaderboards carry the "YYYY-MM" key of their calendar month and share
// the GameType of their all-time root.
type Leaderboard struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	GameType     string      `json:"game_type"`
	ScoringType  ScoringType `json:"scoring_type"`
	TrackStarter bool        `json:"track_starter"`
	NotifyTarget string      `json:"notify_target,omitempty"`
	Season       string      `json:"season,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsAllTime reports whether this is the root ledger of its game system
func (l Leaderboard) IsAllTime() bool {
	return l.Season == ""
}

// CreateLeaderboardRequest represents a request to create a new all-time leaderboard
type CreateLeaderboardRequest struct {
	Name         string      `json:"name" validate:"required,max=200"`
	GameType     string      `json:"game_type" validate:"required,max=64"`
	ScoringType  ScoringType `json:"scoring_type,omitempty" validate:"omitempty,scoring_type"`
	TrackStarter bool        `json:"track_starter,omitempty"`
	NotifyTarget string      `json:"notify_target,omitempty" validate:"max=200"`
}

// ToLeaderboard converts a CreateLeaderboardRequest to a Leaderboard with defaults
func (r *CreateLeaderboardRequest) ToLeaderboard() Leaderboard {
	lb := Leaderboard{
		Name:         strings.TrimSpace(r.Name),
		GameType:     strings.ToLower(strings.TrimSpace(r.GameType)),
		ScoringType:  r.ScoringType,
		TrackStarter: r.TrackStarter,
		NotifyTarget: strings.TrimSpace(r.NotifyTarget),
	}
	if lb.ScoringType == "" {
		lb.ScoringType = ScoringOneVsOne
	}
	return lb
}

// SeasonKey returns the "YYYY-MM" key of the calendar month containing t (UTC).
func SeasonKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

var allTimeSuffixes = []string{" (all-time)", " (all time)", " all-time", " all time", " (legacy)"}

// BaseName strips an all-time marker from a leaderboard name.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, suffix := range allTimeSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}
	return name
}

// SeasonName builds the display name of a season leaderboard, e.g. "Pool 2025-11".
func SeasonName(allTimeName, seasonKey string) string {
	return BaseName(allTimeName) + " " + seasonKey
}

// RankedPlayer is a player with its position on a leaderboard
type RankedPlayer struct {
	Rank   int64  `json:"rank"`
	Player Player `json:"player"`
}

// StarterSummary aggregates how often the starting player won
type StarterSummary struct {
	MatchesWithStarter int     `json:"matches_with_starter"`
	StarterWins        int     `json:"starter_wins"`
	StarterWinRate     float64 `json:"starter_win_rate"`
}

// LeaderboardView is the read model returned for a single leaderboard
type LeaderboardView struct {
	Leaderboard   Leaderboard    `json:"leaderboard"`
	Players       []RankedPlayer `json:"players"`
	RecentMatches []Match        `json:"recent_matches"`
	Starters      StarterSummary `json:"starters"`
}
