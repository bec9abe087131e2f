package domain

import (
	"encoding/json"
	"time"
)

// OutcomeKind tags the shape of a match outcome
type OutcomeKind string

const (
	OutcomeTwoParty   OutcomeKind = "two_party"
	OutcomeMultiParty OutcomeKind = "multi_party"
)

// Outcome is either a TwoPartyOutcome or a MultiPartyOutcome.
type Outcome interface {
	Kind() OutcomeKind
	PlayerIDs() []string
}

// TwoPartyOutcome is a plain winner/loser result. RatingChange is the magnitude
// gained by the winner and lost by the loser.
type TwoPartyOutcome struct {
	WinnerID          string `json:"winner_id"`
	LoserID           string `json:"loser_id"`
	WinnerRatingAfter int    `json:"winner_rating_after"`
	LoserRatingAfter  int    `json:"loser_rating_after"`
	RatingChange      int    `json:"rating_change"`
}

func (TwoPartyOutcome) Kind() OutcomeKind { return OutcomeTwoParty }

func (o TwoPartyOutcome) PlayerIDs() []string { return []string{o.WinnerID, o.LoserID} }

// MultiPartyOutcome carries one row per participant for team and free-for-all matches.
type MultiPartyOutcome struct {
	Participants []MatchParticipant `json:"participants"`
}

func (MultiPartyOutcome) Kind() OutcomeKind { return OutcomeMultiParty }

func (o MultiPartyOutcome) PlayerIDs() []string {
	ids := make([]string, len(o.Participants))
	for i, p := range o.Participants {
		ids[i] = p.PlayerID
	}
	return ids
}

// MatchParticipant is one player's part in a multi-party match. Rank 1 is best; ties share a rank.
type MatchParticipant struct {
	MatchID      string `json:"match_id"`
	PlayerID     string `json:"player_id"`
	TeamKey      string `json:"team_key"`
	Rank         int    `json:"rank"`
	StartRating  int    `json:"start_rating"`
	RatingChange int    `json:"rating_change"`
}

// Match is one recorded result on one leaderboard. The same EventID (and Timestamp)
// appears on exactly one all-time and one season match.
type Match struct {
	ID            string    `json:"id"`
	LeaderboardID string    `json:"leaderboard_id"`
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	StarterID     string    `json:"starter_id,omitempty"`
	Outcome       Outcome   `json:"-"`
}

// Involves reports whether the player took part in the match
func (m Match) Involves(playerID string) bool {
	if m.Outcome == nil {
		return false
	}
	for _, id := range m.Outcome.PlayerIDs() {
		if id == playerID {
			return true
		}
	}
	return false
}

// MarshalJSON flattens the outcome variant with an explicit kind tag
func (m Match) MarshalJSON() ([]byte, error) {
	type view struct {
		ID            string             `json:"id"`
		LeaderboardID string             `json:"leaderboard_id"`
		EventID       string             `json:"event_id"`
		Timestamp     time.Time          `json:"timestamp"`
		StarterID     string             `json:"starter_id,omitempty"`
		Kind          OutcomeKind        `json:"kind,omitempty"`
		TwoParty      *TwoPartyOutcome   `json:"two_party,omitempty"`
		Participants  []MatchParticipant `json:"participants,omitempty"`
	}
	v := view{
		ID:            m.ID,
		LeaderboardID: m.LeaderboardID,
		EventID:       m.EventID,
		Timestamp:     m.Timestamp,
		StarterID:     m.StarterID,
	}
	switch o := m.Outcome.(type) {
	case TwoPartyOutcome:
		v.Kind = o.Kind()
		v.TwoParty = &o
	case MultiPartyOutcome:
		v.Kind = o.Kind()
		v.Participants = o.Participants
	}
	return json.Marshal(v)
}

// ParticipantInput is one entrant of a match request
type ParticipantInput struct {
	ExternalID string `json:"external_id" validate:"required,max=64"`
	Rank       int    `json:"rank" validate:"gte=0"`
	TeamKey    string `json:"team_key,omitempty"`
}

// MatchRequest records a result either as a winner/loser pair or as a participant list
type MatchRequest struct {
	LeaderboardID string             `json:"leaderboard_id,omitempty"`
	WinnerID      string             `json:"winner_id,omitempty"`
	LoserID       string             `json:"loser_id,omitempty"`
	Participants  []ParticipantInput `json:"participants,omitempty" validate:"omitempty,dive"`
	Source        string             `json:"source,omitempty"`
}

// ParticipantResult is one player's movement on one ledger
type ParticipantResult struct {
	Player       Player `json:"player"`
	Rank         int    `json:"rank"`
	TeamKey      string `json:"team_key"`
	RatingBefore int    `json:"rating_before"`
	RatingAfter  int    `json:"rating_after"`
	RatingChange int    `json:"rating_change"`
}

// LedgerResult is the effect of one logical match on one ledger
type LedgerResult struct {
	Leaderboard  Leaderboard         `json:"leaderboard"`
	Match        Match               `json:"match"`
	Participants []ParticipantResult `json:"participants"`
}

// MatchResult is returned by the recorder once both ledgers are committed
type MatchResult struct {
	EventID   string       `json:"event_id"`
	Timestamp time.Time    `json:"timestamp"`
	Season    LedgerResult `json:"season"`
	AllTime   LedgerResult `json:"all_time"`
}

// UndoResult describes a reversed match on both ledgers
type UndoResult struct {
	EventID   string       `json:"event_id"`
	Timestamp time.Time    `json:"timestamp"`
	Season    LedgerResult `json:"season"`
	AllTime   LedgerResult `json:"all_time"`
}

// StarterRequest stamps who went first on an already recorded match. EventID takes
// precedence; otherwise the match closest to Timestamp is used.
type StarterRequest struct {
	LeaderboardID     string    `json:"leaderboard_id,omitempty"`
	EventID           string    `json:"event_id,omitempty"`
	Timestamp         time.Time `json:"timestamp,omitempty"`
	StarterExternalID string    `json:"starter_id" validate:"required"`
}

// StarterResult lists the matches that were stamped
type StarterResult struct {
	EventID string  `json:"event_id"`
	Matches []Match `json:"matches"`
}

// UndoRequest selects the game system to undo on
type UndoRequest struct {
	LeaderboardID string `json:"leaderboard_id,omitempty"`
}

// TournamentRequest builds a bracket from explicit players or the active season roster
type TournamentRequest struct {
	LeaderboardID string   `json:"leaderboard_id,omitempty"`
	ExternalIDs   []string `json:"player_ids,omitempty"`
}
