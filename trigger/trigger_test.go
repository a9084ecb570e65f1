package trigger

import (
	"testing"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/session"
	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

const testBotID = "12D3KooWBotPeer"

func newTestEvaluator() *Evaluator {
	return NewEvaluator(Config{
		Keywords:      []string{"@squabble", "/squabble"},
		ContextWindow: 5 * time.Minute,
	}, testBotID)
}

func TestEvaluate_DecisionOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	botAt := func(age time.Duration) *session.BotMessage {
		return &session.BotMessage{MessageID: "bot-msg-1", SentAt: now.Add(-age)}
	}

	cases := []struct {
		name    string
		env     transport.MessageEnvelope
		st      session.State
		respond bool
		reason  Reason
		fresh   bool
		hint    bool
	}{
		{
			name: "empty non-reply dropped",
			env:  transport.MessageEnvelope{Content: "   "},
		},
		{
			name: "reply to bot by sender id",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: testBotID, Content: map[string]any{"content": "yes"}},
			},
			respond: true,
			reason:  ReasonReplyToBot,
		},
		{
			name: "reply to bot sender id case insensitive",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: "12d3koowbotpeer", Content: map[string]any{"content": "yes"}},
			},
			respond: true,
			reason:  ReasonReplyToBot,
		},
		{
			name: "reply to bot by reference id",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: "someone-else", ReferenceID: "bot-msg-1", Content: map[string]any{"content": "sure"}},
			},
			st:      session.State{LastBot: botAt(time.Minute)},
			respond: true,
			reason:  ReasonReplyToBot,
		},
		{
			name: "reply to bot without content still responds",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: testBotID},
			},
			respond: true,
			reason:  ReasonReplyToBot,
		},
		{
			name: "reply to bot wins over fresh keyword",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: testBotID, Content: map[string]any{"content": "@squabble again"}},
			},
			st:      session.State{Status: session.StatusAwaitingFollowUp},
			respond: true,
			reason:  ReasonReplyToBot,
		},
		{
			name:    "awaiting follow-up passes plain text through",
			env:     transport.MessageEnvelope{Content: "no bet"},
			st:      session.State{Status: session.StatusAwaitingFollowUp},
			respond: true,
			reason:  ReasonAwaitingFollowUp,
		},
		{
			name:    "fresh keyword while awaiting resets",
			env:     transport.MessageEnvelope{Content: "@squabble start over"},
			st:      session.State{Status: session.StatusAwaitingFollowUp},
			respond: true,
			reason:  ReasonKeyword,
			fresh:   true,
		},
		{
			name:    "inside context window without keyword",
			env:     transport.MessageEnvelope{Content: "make it double"},
			st:      session.State{LastBot: botAt(time.Minute)},
			respond: true,
			reason:  ReasonContextWindow,
		},
		{
			name: "outside context window without keyword",
			env:  transport.MessageEnvelope{Content: "make it double"},
			st:   session.State{LastBot: botAt(6 * time.Minute)},
		},
		{
			name:    "keyword match is case insensitive",
			env:     transport.MessageEnvelope{Content: "hey @SQUABBLE start a bet"},
			respond: true,
			reason:  ReasonKeyword,
		},
		{
			name:    "keyword wins over the window check",
			env:     transport.MessageEnvelope{Content: "@squabble new bet"},
			st:      session.State{LastBot: botAt(time.Minute)},
			respond: true,
			reason:  ReasonKeyword,
		},
		{
			name: "mention without keyword earns a help hint",
			env:  transport.MessageEnvelope{Content: "how does squabble even work"},
			hint: true,
		},
		{
			name: "unrelated chatter ignored silently",
			env:  transport.MessageEnvelope{Content: "anyone up for lunch"},
		},
		{
			name: "reply to a third party is not admitted",
			env: transport.MessageEnvelope{
				Reply: &transport.ReplyPayload{SenderID: "someone-else", ReferenceID: "other-msg", Content: map[string]any{"content": "nice one"}},
			},
			st: session.State{LastBot: botAt(6 * time.Minute)},
		},
	}

	e := newTestEvaluator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := e.Evaluate(tc.env, tc.st, now)
			if v.Respond != tc.respond {
				t.Fatalf("Respond = %v, want %v (verdict %+v)", v.Respond, tc.respond, v)
			}
			if v.Reason != tc.reason {
				t.Fatalf("Reason = %q, want %q", v.Reason, tc.reason)
			}
			if v.FreshTrigger != tc.fresh {
				t.Fatalf("FreshTrigger = %v, want %v", v.FreshTrigger, tc.fresh)
			}
			if v.HelpHint != tc.hint {
				t.Fatalf("HelpHint = %v, want %v", v.HelpHint, tc.hint)
			}
		})
	}
}

func TestEvaluate_TextIsVerbatim(t *testing.T) {
	e := newTestEvaluator()
	env := transport.MessageEnvelope{Content: "  @Squabble Bet $5 ON RAIN  "}
	v := e.Evaluate(env, session.State{}, time.Now())
	if !v.Respond {
		t.Fatalf("expected respond")
	}
	if v.Text != "@Squabble Bet $5 ON RAIN" {
		t.Fatalf("Text = %q, want original casing preserved", v.Text)
	}
}

func TestEvaluate_WindowBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEvaluator()

	st := session.State{LastBot: &session.BotMessage{MessageID: "b1", SentAt: now.Add(-5 * time.Minute)}}
	if v := e.Evaluate(transport.MessageEnvelope{Content: "still here"}, st, now); !v.Respond {
		t.Fatalf("message exactly at the window edge should be admitted")
	}

	// a bot timestamp in the future never opens the window
	st = session.State{LastBot: &session.BotMessage{MessageID: "b2", SentAt: now.Add(time.Minute)}}
	if v := e.Evaluate(transport.MessageEnvelope{Content: "still here"}, st, now); v.Respond {
		t.Fatalf("future bot timestamp must not admit messages")
	}
}

func TestNewEvaluator_DerivesHelpTerms(t *testing.T) {
	e := NewEvaluator(Config{Keywords: []string{"@Squabble", "/squabble"}}, testBotID)
	v := e.Evaluate(transport.MessageEnvelope{Content: "is squabble around?"}, session.State{}, time.Now())
	if v.Respond || !v.HelpHint {
		t.Fatalf("verdict = %+v, want help hint on ignore path", v)
	}
}
