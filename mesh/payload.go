package mesh

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

// chatPayload is the JSON frame exchanged on the chat protocol. Content is
// kept raw: plain messages usually carry a JSON string, but peers may send
// arbitrary shapes and the extractor downstream has to cope either way.
type chatPayload struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	SenderID       string          `json:"sender_id,omitempty"`
	SentAt         string          `json:"sent_at,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	Reply          *replyPayload   `json:"reply,omitempty"`
}

type replyPayload struct {
	ReferenceID string          `json:"reference_id,omitempty"`
	SenderID    string          `json:"sender_id,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Fallback    string          `json:"fallback,omitempty"`
}

// presencePayload announces membership on the presence protocol. A "join"
// from a peer means the bot is now part of that conversation.
type presencePayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	WalletAddress  string `json:"wallet_address,omitempty"`
}

func parseChatPayload(raw []byte) (chatPayload, error) {
	var p chatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return chatPayload{}, fmt.Errorf("invalid chat payload json: %w", err)
	}
	if strings.TrimSpace(p.MessageID) == "" {
		return chatPayload{}, fmt.Errorf("chat payload message_id is required")
	}
	return p, nil
}

// envelope converts a wire payload into the transport envelope. The stream's
// authenticated remote peer always wins over whatever sender the payload
// claims, and a missing conversation id collapses to the sender (a direct
// message).
func (p chatPayload) envelope(remotePeerID string, received time.Time) transport.MessageEnvelope {
	env := transport.MessageEnvelope{
		ID:             strings.TrimSpace(p.MessageID),
		ConversationID: strings.TrimSpace(p.ConversationID),
		SenderID:       remotePeerID,
		SentAt:         received,
		Content:        decodeRawContent(p.Content),
	}
	if env.ConversationID == "" {
		env.ConversationID = remotePeerID
	}
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(p.SentAt)); err == nil {
		env.SentAt = ts
	}
	if p.Reply != nil {
		env.Reply = &transport.ReplyPayload{
			ReferenceID: strings.TrimSpace(p.Reply.ReferenceID),
			SenderID:    strings.TrimSpace(p.Reply.SenderID),
			Content:     decodeRawContent(p.Reply.Content),
			Fallback:    p.Reply.Fallback,
		}
	}
	return env
}

// decodeRawContent best-effort decodes raw JSON into a Go value. Payloads
// that are not valid JSON degrade to their literal text rather than being
// dropped.
func decodeRawContent(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
