package session

import "time"

// Status is the conversation's trigger state. The zero value is StatusIdle.
type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingFollowUp
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingFollowUp:
		return "awaiting_follow_up"
	default:
		return "idle"
	}
}

// BotMessage records the most recent message the bot sent into a
// conversation. It feeds the context-window check and is deliberately kept
// outside the reset path: it only ages out of relevance by time.
type BotMessage struct {
	MessageID string
	SentAt    time.Time
}

// State is the per-conversation record. One exists per conversation key,
// created lazily on first access and never persisted across restarts.
type State struct {
	Status      Status
	LastCommand string
	TurnCount   int
	LastUpdate  time.Time
	LastBot     *BotMessage
}

func (s State) Awaiting() bool {
	return s.Status == StatusAwaitingFollowUp
}

func (s State) expiredAt(now time.Time, timeout time.Duration) bool {
	if s.LastUpdate.IsZero() {
		return false
	}
	return now.Sub(s.LastUpdate) > timeout
}

// resetAt returns the fresh-defaults state. LastBot survives a reset; the
// context-window check is purely time-based.
func (s State) resetAt(now time.Time) State {
	return State{
		Status:     StatusIdle,
		LastUpdate: now,
		LastBot:    s.LastBot,
	}
}
