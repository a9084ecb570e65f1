package session

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager() (*Manager, *MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	m := NewManager(store, 60*time.Second, 5)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m.now = clk.now
	return m, store, clk
}

func TestGetState_LazyCreate(t *testing.T) {
	m, store, clk := newTestManager()

	st := m.GetState("conv-1")
	if st.Status != StatusIdle || st.TurnCount != 0 || st.LastBot != nil {
		t.Fatalf("fresh state = %+v, want idle defaults", st)
	}
	if !st.LastUpdate.Equal(clk.t) {
		t.Fatalf("LastUpdate = %v, want %v", st.LastUpdate, clk.t)
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
}

func TestGetState_Idempotent(t *testing.T) {
	m, _, clk := newTestManager()

	first := m.GetState("conv-1")
	clk.advance(time.Second)
	second := m.GetState("conv-1")

	if first != second {
		t.Fatalf("back-to-back reads differ: %+v vs %+v", first, second)
	}
}

func TestGetState_TimeoutResets(t *testing.T) {
	m, _, clk := newTestManager()

	m.SetState("conv-1", true, "@squabble start")
	clk.advance(61 * time.Second)

	st := m.GetState("conv-1")
	if st.Awaiting() {
		t.Fatalf("state still awaiting after timeout")
	}
	if st.TurnCount != 0 || st.LastCommand != "" {
		t.Fatalf("state = %+v, want fresh defaults", st)
	}
}

func TestGetState_ExactTimeoutNotExpired(t *testing.T) {
	m, _, clk := newTestManager()

	m.SetState("conv-1", true, "@squabble start")
	clk.advance(60 * time.Second)

	if st := m.GetState("conv-1"); !st.Awaiting() {
		t.Fatalf("state expired exactly at the timeout; expiry must be strict")
	}
}

func TestGetState_TurnCeilingResets(t *testing.T) {
	m, _, _ := newTestManager()

	for i := 0; i < 5; i++ {
		m.SetState("conv-1", true, "cmd")
	}
	st := m.GetState("conv-1")
	if st.TurnCount != 0 || st.Awaiting() {
		t.Fatalf("state = %+v, want reset at the turn ceiling", st)
	}
}

func TestSetState_Semantics(t *testing.T) {
	m, _, clk := newTestManager()

	m.SetState("conv-1", true, "@squabble start")
	st := m.GetState("conv-1")
	if !st.Awaiting() || st.LastCommand != "@squabble start" || st.TurnCount != 1 {
		t.Fatalf("state = %+v", st)
	}

	// empty command keeps the previous one
	clk.advance(time.Second)
	m.SetState("conv-1", true, "")
	st = m.GetState("conv-1")
	if st.LastCommand != "@squabble start" {
		t.Fatalf("LastCommand = %q, want previous command kept", st.LastCommand)
	}
	if st.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2", st.TurnCount)
	}

	m.SetState("conv-1", false, "done")
	if st = m.GetState("conv-1"); st.Awaiting() {
		t.Fatalf("state still awaiting after clearing the flag")
	}
}

func TestReset_KeepsLastBot(t *testing.T) {
	m, _, _ := newTestManager()

	m.SetState("conv-1", true, "@squabble start")
	m.NoteBotMessage("conv-1", "bot-msg-1")
	m.Reset("conv-1")

	st := m.GetState("conv-1")
	if st.Awaiting() || st.TurnCount != 0 || st.LastCommand != "" {
		t.Fatalf("state = %+v, want fresh defaults", st)
	}
	if st.LastBot == nil || st.LastBot.MessageID != "bot-msg-1" {
		t.Fatalf("LastBot = %+v, want it to survive the reset", st.LastBot)
	}
}

func TestNoteBotMessage(t *testing.T) {
	m, _, clk := newTestManager()

	m.SetState("conv-1", true, "cmd")
	clk.advance(10 * time.Second)
	m.NoteBotMessage("conv-1", "bot-msg-1")

	st := m.GetState("conv-1")
	if st.LastBot == nil || st.LastBot.MessageID != "bot-msg-1" {
		t.Fatalf("LastBot = %+v", st.LastBot)
	}
	if !st.LastBot.SentAt.Equal(clk.t) {
		t.Fatalf("SentAt = %v, want %v", st.LastBot.SentAt, clk.t)
	}
	if st.TurnCount != 1 {
		t.Fatalf("TurnCount = %d; bot sends must not count as turns", st.TurnCount)
	}

	// noting refreshes the update timestamp, keeping the session alive
	clk.advance(55 * time.Second)
	if st = m.GetState("conv-1"); !st.Awaiting() {
		t.Fatalf("session expired even though the bot just sent")
	}
}

func TestNoteBotMessage_UnknownConversation(t *testing.T) {
	m, store, _ := newTestManager()

	m.NoteBotMessage("conv-1", "bot-msg-1")
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
	st := m.GetState("conv-1")
	if st.LastBot == nil || st.LastBot.MessageID != "bot-msg-1" {
		t.Fatalf("LastBot = %+v", st.LastBot)
	}
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(nil, 0, 0)
	if m.timeout != DefaultStateTimeout {
		t.Fatalf("timeout = %v", m.timeout)
	}
	if m.maxTurns != DefaultMaxContextMessages {
		t.Fatalf("maxTurns = %d", m.maxTurns)
	}
	if m.store == nil {
		t.Fatalf("store is nil")
	}
}
