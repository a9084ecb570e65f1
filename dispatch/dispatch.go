// Package dispatch consumes the transport's inbound streams and drives the
// trigger decision, the agent runner, and the session lifecycle per message.
// Messages on the main stream are handled to completion in arrival order;
// the membership watcher runs alongside as a supervised task.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/agent"
	"github.com/builders-garden/squabble-agent-xmtp/audit"
	"github.com/builders-garden/squabble-agent-xmtp/session"
	"github.com/builders-garden/squabble-agent-xmtp/transport"
	"github.com/builders-garden/squabble-agent-xmtp/trigger"
	"github.com/builders-garden/squabble-agent-xmtp/wallet"
)

// EvaluateFunc is the trigger decision the dispatcher runs per message.
// (*trigger.Evaluator).Evaluate satisfies it.
type EvaluateFunc func(env transport.MessageEnvelope, st session.State, now time.Time) trigger.Verdict

const (
	DefaultApology      = "Sorry, something went wrong on my side. Please try again."
	DefaultWelcomeDelay = 3 * time.Second
)

type Config struct {
	// BotID is the bot's own sender identity; matching messages are skipped
	// before any state is touched.
	BotID string
	// HelpHint is sent when a message mentions the bot without a valid
	// trigger keyword. Empty disables the hint.
	HelpHint string
	// Apology is the generic user-visible failure reply.
	Apology string
	// Welcome is the one-time message sent after the bot joins a
	// conversation. Empty disables the welcome.
	Welcome      string
	WelcomeDelay time.Duration
	// Audit receives one event per evaluated message. Nil disables the
	// trail; emit failures are logged and never block dispatch.
	Audit audit.Sink
}

type Dispatcher struct {
	transport transport.Transport
	sessions  *session.Manager
	eval      EvaluateFunc
	runner    agent.Runner
	wallets   wallet.Store
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	welcomeMu sync.Mutex
	welcomed  map[string]bool
}

func New(t transport.Transport, sessions *session.Manager, eval EvaluateFunc, runner agent.Runner, wallets wallet.Store, logger *slog.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Apology) == "" {
		cfg.Apology = DefaultApology
	}
	if cfg.WelcomeDelay <= 0 {
		cfg.WelcomeDelay = DefaultWelcomeDelay
	}
	return &Dispatcher{
		transport: t,
		sessions:  sessions,
		eval:      eval,
		runner:    runner,
		wallets:   wallets,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		welcomed:  make(map[string]bool),
	}
}

// Run blocks until the message stream closes or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	msgs, err := d.transport.StreamMessages(ctx)
	if err != nil {
		return err
	}
	members, err := d.transport.StreamMembershipChanges(ctx)
	if err != nil {
		return err
	}

	go d.watchMembership(ctx, members)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-msgs:
			if !ok {
				return nil
			}
			d.handleMessage(ctx, env)
		}
	}
}

// handleMessage applies the full admission pipeline to one envelope. All
// failure is confined here: errors are logged and answered with a generic
// apology when a conversation handle exists, and the loop moves on.
func (d *Dispatcher) handleMessage(ctx context.Context, env transport.MessageEnvelope) {
	if strings.EqualFold(strings.TrimSpace(env.SenderID), strings.TrimSpace(d.cfg.BotID)) {
		d.logger.Debug("dispatch_self_skip", "message_id", env.ID)
		return
	}

	var conv transport.Conversation
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch_panic", "message_id", env.ID, "panic", r)
			d.apologize(ctx, conv)
		}
	}()

	conv, err := d.transport.GetConversation(ctx, env.ConversationID)
	if err != nil {
		d.logger.Warn("dispatch_conversation_error",
			"conversation_id", env.ConversationID,
			"message_id", env.ID,
			"error", err.Error(),
		)
		return
	}

	key := env.ConversationID
	st := d.sessions.GetState(key)
	v := d.eval(env, st, d.now())
	if v.FreshTrigger {
		d.sessions.Reset(key)
	}

	if !v.Respond {
		d.audit(env, v, "")
		if v.HelpHint && strings.TrimSpace(d.cfg.HelpHint) != "" {
			if _, err := conv.Send(ctx, d.cfg.HelpHint); err != nil {
				d.logger.Warn("dispatch_help_hint_error", "conversation_id", key, "error", err.Error())
			}
		}
		return
	}

	d.logger.Info("dispatch_admitted",
		"conversation_id", key,
		"reason", string(v.Reason),
		"text_len", len(v.Text),
	)

	d.ensureWallet(ctx, env.SenderID)

	out, err := d.runner.Run(ctx, key, v.Text)
	if err != nil {
		d.logger.Warn("dispatch_agent_error", "conversation_id", key, "error", err.Error())
		d.audit(env, v, err.Error())
		d.apologize(ctx, conv)
		return
	}
	d.audit(env, v, "")

	// The run itself advances the session: the next message in this
	// conversation is a follow-up whether or not a reply gets sent.
	d.sessions.SetState(key, true, v.Text)

	if agent.IsAlreadySent(out) || strings.TrimSpace(out) == "" {
		d.logger.Debug("dispatch_response_suppressed", "conversation_id", key)
		return
	}

	msgID, err := conv.Send(ctx, out)
	if err != nil {
		d.logger.Warn("dispatch_send_error", "conversation_id", key, "error", err.Error())
		d.apologize(ctx, conv)
		return
	}
	d.sessions.NoteBotMessage(key, msgID)
}

func (d *Dispatcher) audit(env transport.MessageEnvelope, v trigger.Verdict, runErr string) {
	if d.cfg.Audit == nil {
		return
	}
	err := d.cfg.Audit.Emit(audit.Event{
		Time:           d.now().UTC(),
		ConversationID: env.ConversationID,
		MessageID:      env.ID,
		SenderID:       env.SenderID,
		Responded:      v.Respond,
		Reason:         string(v.Reason),
		Error:          runErr,
	})
	if err != nil {
		d.logger.Warn("dispatch_audit_error", "message_id", env.ID, "error", err.Error())
	}
}

func (d *Dispatcher) apologize(ctx context.Context, conv transport.Conversation) {
	if conv == nil {
		return
	}
	if _, err := conv.Send(ctx, d.cfg.Apology); err != nil {
		d.logger.Warn("dispatch_apology_error", "conversation_id", conv.ID(), "error", err.Error())
	}
}

// ensureWallet seeds a write-once wallet record for the sender. Failures are
// logged and never block the message.
func (d *Dispatcher) ensureWallet(ctx context.Context, senderID string) {
	if d.wallets == nil {
		return
	}
	if _, ok, err := d.wallets.Load(senderID); err != nil || ok {
		if err != nil {
			d.logger.Warn("dispatch_wallet_load_error", "sender_id", senderID, "error", err.Error())
		}
		return
	}
	addr, err := d.transport.ResolveWalletAddress(ctx, senderID)
	if err != nil {
		d.logger.Warn("dispatch_wallet_resolve_error", "sender_id", senderID, "error", err.Error())
		return
	}
	if addr == "" {
		return
	}
	if err := d.wallets.Save(senderID, []byte(addr)); err != nil {
		d.logger.Warn("dispatch_wallet_save_error", "sender_id", senderID, "error", err.Error())
	}
}
