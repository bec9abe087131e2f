package domain

import "time"

// DefaultRating is the rating every player starts a ledger with
const DefaultRating = 1000

// Player is one participant's standing within exactly one leaderboard.
// (LeaderboardID, ExternalID) is unique.
type Player struct {
	ID            string    `json:"id"`
	LeaderboardID string    `json:"leaderboard_id"`
	ExternalID    string    `json:"external_id"`
	Name          string    `json:"name"`
	Rating        int       `json:"rating"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Games returns the number of decided matches the player took part in
func (p Player) Games() int {
	return p.Wins + p.Losses
}

// RegisterPlayerRequest registers an identity on an all-time leaderboard and its current season
type RegisterPlayerRequest struct {
	LeaderboardID string `json:"leaderboard_id,omitempty"`
	ExternalID    string `json:"external_id" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,max=100"`
}

// RegisterPlayerResult reports which ledgers gained a new player row
type RegisterPlayerResult struct {
	AllTime        Player `json:"all_time"`
	Season         Player `json:"season"`
	AllTimeCreated bool   `json:"all_time_created"`
	SeasonCreated  bool   `json:"season_created"`
}

// StreakKind is the result type of a running streak
type StreakKind string

const (
	StreakNone StreakKind = ""
	StreakWin  StreakKind = "win"
	StreakLoss StreakKind = "loss"
)

// Streak is the player's current run of identical results
type Streak struct {
	Kind   StreakKind `json:"kind,omitempty"`
	Length int        `json:"length"`
}

// OpponentRecord is a head-to-head record against one opponent
type OpponentRecord struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRate    float64 `json:"win_rate"`
}

// Games returns decided games against the opponent
func (o OpponentRecord) Games() int {
	return o.Wins + o.Losses
}

// MatchResultKind is a player's result in one match
type MatchResultKind string

const (
	ResultWin  MatchResultKind = "win"
	ResultLoss MatchResultKind = "loss"
)

// HistoryEntry is one match from a player's point of view
type HistoryEntry struct {
	MatchID      string          `json:"match_id"`
	EventID      string          `json:"event_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Result       MatchResultKind `json:"result"`
	Rank         int             `json:"rank"`
	RatingChange int             `json:"rating_change"`
	RatingAfter  int             `json:"rating_after"`
	Opponents    []string        `json:"opponents"`
	Started      bool            `json:"started"`
}

// PlayerStats are derived statistics for a player on one ledger
type PlayerStats struct {
	Leaderboard    Leaderboard      `json:"leaderboard"`
	Player         Player           `json:"player"`
	Games          int              `json:"games"`
	WinRate        float64          `json:"win_rate"`
	PeakRating     int              `json:"peak_rating"`
	LowestRating   int              `json:"lowest_rating"`
	CurrentStreak  Streak           `json:"current_streak"`
	Opponents      []OpponentRecord `json:"opponents"`
	MostFavorable  *OpponentRecord  `json:"most_favorable,omitempty"`
	LeastFavorable *OpponentRecord  `json:"least_favorable,omitempty"`
	StarterGames   int              `json:"starter_games"`
	StarterWins    int              `json:"starter_wins"`
	StarterWinRate float64          `json:"starter_win_rate"`
	History        []HistoryEntry   `json:"history"`
}

// PlayerProfile holds a player's statistics on both ledgers of a game system
type PlayerProfile struct {
	AllTime PlayerStats  `json:"all_time"`
	Season  *PlayerStats `json:"season,omitempty"`
}
