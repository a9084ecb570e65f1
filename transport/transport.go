// Package transport defines the collaborator surface the bot consumes from
// the underlying messaging network: a combined inbound message stream, a
// membership-change stream, conversation lookup, and sender wallet
// resolution. Implementations live elsewhere (see the mesh package).
package transport

import (
	"context"
	"time"
)

// MessageEnvelope is a single inbound message as delivered by the network.
// Content carries the decoded payload of a plain message and may be any JSON
// shape; Reply is non-nil when the message is a threaded reply.
type MessageEnvelope struct {
	ID             string
	ConversationID string
	SenderID       string
	SentAt         time.Time
	Content        any
	Reply          *ReplyPayload
}

// ReplyPayload is the threaded-reply portion of an envelope. Clients disagree
// on its shape, so Content stays untyped and Fallback keeps whatever text the
// sending client rendered.
type ReplyPayload struct {
	ReferenceID string `json:"reference_id,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	Content     any    `json:"content,omitempty"`
	Fallback    string `json:"fallback,omitempty"`
}

func (e MessageEnvelope) IsReply() bool {
	return e.Reply != nil
}

// Conversation is a handle the bot can send into.
type Conversation interface {
	ID() string
	// Send delivers text into the conversation and returns the id of the
	// sent message.
	Send(ctx context.Context, text string) (string, error)
}

type Transport interface {
	// StreamMessages returns the combined inbound stream across all
	// conversations. The channel is closed when the transport shuts down.
	StreamMessages(ctx context.Context) (<-chan MessageEnvelope, error)
	// StreamMembershipChanges emits a conversation handle each time the bot
	// is added to a conversation it has not seen before.
	StreamMembershipChanges(ctx context.Context) (<-chan Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	// ResolveWalletAddress returns the wallet address associated with a
	// sender, or empty when unknown.
	ResolveWalletAddress(ctx context.Context, senderID string) (string, error)
}
