package domain

import "time"

// NotificationType identifies the ledger event being announced
type NotificationType string

const (
	NotificationMatchRecorded NotificationType = "match_recorded"
	NotificationMatchUndone   NotificationType = "match_undone"
	NotificationStarterSet    NotificationType = "starter_set"
)

// Notification is the payload fanned out to webhooks, Kafka and WebSocket subscribers
// after a ledger change has been committed.
type Notification struct {
	Type          NotificationType `json:"type"`
	LeaderboardID string           `json:"leaderboard_id"`
	SeasonID      string           `json:"season_id,omitempty"`
	GameType      string           `json:"game_type"`
	Target        string           `json:"target,omitempty"`
	Source        string           `json:"source,omitempty"`
	EventID       string           `json:"event_id"`
	Timestamp     time.Time        `json:"timestamp"`
	Data          any              `json:"data,omitempty"`
}
