package session

import "time"

const (
	DefaultStateTimeout       = 60 * time.Second
	DefaultMaxContextMessages = 5
)

// Manager owns the lifecycle rules around the state store: lazy creation,
// expiry on read, the turn ceiling, and the typed transitions the dispatch
// loop drives (message handled, bot sent, forced reset).
type Manager struct {
	store    Store
	timeout  time.Duration
	maxTurns int
	now      func() time.Time
}

func NewManager(store Store, timeout time.Duration, maxTurns int) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if timeout <= 0 {
		timeout = DefaultStateTimeout
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxContextMessages
	}
	return &Manager{
		store:    store,
		timeout:  timeout,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// GetState returns the conversation's current state, lazily creating it and
// resetting it first if the state timed out or hit the turn ceiling. Callers
// always observe a non-expired state.
func (m *Manager) GetState(key string) State {
	now := m.now()
	st, ok := m.store.Get(key)
	if !ok {
		st = State{Status: StatusIdle, LastUpdate: now}
		m.store.Put(key, st)
		return st
	}
	if st.TurnCount >= m.maxTurns || st.expiredAt(now, m.timeout) {
		st = st.resetAt(now)
		m.store.Put(key, st)
	}
	return st
}

// SetState overwrites the awaiting flag, records the command when non-empty,
// increments the turn counter, and refreshes the update timestamp.
func (m *Manager) SetState(key string, awaiting bool, command string) {
	now := m.now()
	st, ok := m.store.Get(key)
	if !ok {
		st = State{}
	}
	if awaiting {
		st.Status = StatusAwaitingFollowUp
	} else {
		st.Status = StatusIdle
	}
	if command != "" {
		st.LastCommand = command
	}
	st.TurnCount++
	st.LastUpdate = now
	m.store.Put(key, st)
}

// Reset forces the conversation back to fresh defaults. Used when a fresh
// explicit trigger arrives while a follow-up was pending, so the stale
// awaiting state cannot swallow the new command.
func (m *Manager) Reset(key string) {
	now := m.now()
	st, _ := m.store.Get(key)
	m.store.Put(key, st.resetAt(now))
}

// NoteBotMessage records an outbound bot message for the context-window
// check. It does not count as a turn.
func (m *Manager) NoteBotMessage(key, messageID string) {
	now := m.now()
	st, ok := m.store.Get(key)
	if !ok {
		st = State{}
	}
	st.LastBot = &BotMessage{MessageID: messageID, SentAt: now}
	st.LastUpdate = now
	m.store.Put(key, st)
}
