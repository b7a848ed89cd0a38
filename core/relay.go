package core

import "context"

// Relay rooms. A session room is joined explicitly while a chat is open;
// a user's personal room is joined once per live connection.
func SessionRoom(sessionID string) string { return "doubt:" + sessionID }
func PersonalRoom(userID string) string   { return "user:" + userID }

// Event is a named payload delivered to all live subscribers of a room.
type Event struct {
	Room string      `json:"room"`
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

// Relay fans events out to live connections. Delivery is at-most-once and
// best-effort: nothing is queued or retried when no subscriber is connected.
// Persisted state remains the source of truth; clients reconcile via a
// history fetch on reconnect.
type Relay interface {
	Publish(ctx context.Context, event Event) error
}
