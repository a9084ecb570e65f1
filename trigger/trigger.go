// Package trigger decides, for every inbound message, whether the bot should
// act and what literal text counts as the command. The evaluator is pure:
// it reads conversation state but never mutates it, and it cannot fail.
package trigger

import (
	"strings"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/session"
	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

const DefaultContextWindow = 5 * time.Minute

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonReplyToBot       Reason = "reply_to_bot"
	ReasonAwaitingFollowUp Reason = "awaiting_follow_up"
	ReasonContextWindow    Reason = "context_window"
	ReasonKeyword          Reason = "keyword"
)

type Config struct {
	// Keywords admit a message on case-insensitive substring match.
	Keywords []string
	// HelpTerms earn a help hint on the ignore path. Derived from Keywords
	// when empty.
	HelpTerms []string
	// ContextWindow keeps untriggered messages admitted for a while after
	// the bot's own last send.
	ContextWindow time.Duration
}

// Verdict is the single output of the decision: respond or not, the text to
// forward, and what tipped the decision.
type Verdict struct {
	Respond bool
	Text    string
	Reason  Reason
	// FreshTrigger is set when a trigger keyword arrived while a follow-up
	// was pending. The caller must reset the conversation state before
	// running the command so the message is handled as a brand-new trigger.
	FreshTrigger bool
	// HelpHint is set on the ignore path when the text mentions the bot
	// without a valid trigger keyword.
	HelpHint bool
}

type Evaluator struct {
	keywords  []string
	helpTerms []string
	window    time.Duration
	botID     string
}

func NewEvaluator(cfg Config, botID string) *Evaluator {
	keywords := normalizeKeywords(cfg.Keywords)
	helpTerms := normalizeKeywords(cfg.HelpTerms)
	if len(helpTerms) == 0 {
		helpTerms = helpTermsFromKeywords(keywords)
	}
	window := cfg.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &Evaluator{
		keywords:  keywords,
		helpTerms: helpTerms,
		window:    window,
		botID:     strings.TrimSpace(botID),
	}
}

// Evaluate runs the decision order: empty non-reply → ignore; reply-to-bot →
// respond unconditionally; pending follow-up → respond (a fresh keyword
// resets first); recent bot send within the context window → respond;
// keyword → respond; otherwise ignore, with an optional help hint.
//
// Reply-to-bot deliberately wins over a fresh keyword in the same message:
// the user chose to thread onto the bot's message, so the text is treated as
// a continuation even if it repeats a trigger word.
func (e *Evaluator) Evaluate(env transport.MessageEnvelope, st session.State, now time.Time) Verdict {
	text := Extract(env)
	norm := strings.ToLower(strings.TrimSpace(text))

	if norm == "" && !env.IsReply() {
		return Verdict{}
	}

	if e.isReplyToBot(env, st) {
		return Verdict{Respond: true, Text: text, Reason: ReasonReplyToBot}
	}

	hasKeyword := containsAny(norm, e.keywords)

	if st.Awaiting() {
		if hasKeyword {
			return Verdict{Respond: true, Text: text, Reason: ReasonKeyword, FreshTrigger: true}
		}
		return Verdict{Respond: true, Text: text, Reason: ReasonAwaitingFollowUp}
	}

	if !hasKeyword && e.inContextWindow(st, now) {
		return Verdict{Respond: true, Text: text, Reason: ReasonContextWindow}
	}

	if hasKeyword {
		return Verdict{Respond: true, Text: text, Reason: ReasonKeyword}
	}

	return Verdict{HelpHint: containsAny(norm, e.helpTerms)}
}

func (e *Evaluator) isReplyToBot(env transport.MessageEnvelope, st session.State) bool {
	if env.Reply == nil {
		return false
	}
	if e.botID != "" && strings.EqualFold(strings.TrimSpace(env.Reply.SenderID), e.botID) {
		return true
	}
	ref := strings.TrimSpace(env.Reply.ReferenceID)
	return ref != "" && st.LastBot != nil && ref == st.LastBot.MessageID
}

func (e *Evaluator) inContextWindow(st session.State, now time.Time) bool {
	if st.LastBot == nil {
		return false
	}
	elapsed := now.Sub(st.LastBot.SentAt)
	return elapsed >= 0 && elapsed <= e.window
}
