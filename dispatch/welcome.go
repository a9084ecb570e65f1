package dispatch

import (
	"context"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

// watchMembership consumes conversation-membership events and sends a
// one-time welcome into each newly joined conversation. It is independent of
// the trigger evaluator and must never take down the process: each event is
// handled behind a recover, and panics only cost that one welcome.
func (d *Dispatcher) watchMembership(ctx context.Context, members <-chan transport.Conversation) {
	for {
		select {
		case <-ctx.Done():
			return
		case conv, ok := <-members:
			if !ok {
				return
			}
			// Each welcome waits out its own delay; joins must not queue
			// behind one another.
			go d.welcomeSafely(ctx, conv)
		}
	}
}

func (d *Dispatcher) welcomeSafely(ctx context.Context, conv transport.Conversation) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("membership_welcome_panic", "panic", r)
		}
	}()
	d.welcome(ctx, conv)
}

func (d *Dispatcher) welcome(ctx context.Context, conv transport.Conversation) {
	if conv == nil || d.cfg.Welcome == "" {
		return
	}
	id := conv.ID()

	d.welcomeMu.Lock()
	already := d.welcomed[id]
	d.welcomed[id] = true
	d.welcomeMu.Unlock()
	if already {
		return
	}

	// Give the membership change a moment to settle client-side before the
	// bot introduces itself.
	select {
	case <-ctx.Done():
		return
	case <-time.After(d.cfg.WelcomeDelay):
	}

	msgID, err := conv.Send(ctx, d.cfg.Welcome)
	if err != nil {
		d.logger.Warn("membership_welcome_error", "conversation_id", id, "error", err.Error())
		return
	}
	d.logger.Info("membership_welcome_sent", "conversation_id", id, "message_id", msgID)
	d.sessions.NoteBotMessage(id, msgID)
}
