// Package audit keeps an append-only trail of trigger decisions. Every
// admitted or ignored message becomes one JSONL record, so operators can
// reconstruct why the bot spoke (or stayed silent) in any conversation.
package audit

import (
	"strings"
	"time"

	"github.com/builders-garden/squabble-agent-xmtp/internal/fsstore"
)

// Event is one trigger decision.
type Event struct {
	Time           time.Time `json:"time"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Responded      bool      `json:"responded"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
}

type Sink interface {
	Emit(e Event) error
	Close() error
}

type JSONLSink struct {
	writer *fsstore.JSONLWriter
}

func NewJSONLSink(path string, rotateMaxBytes int64) (*JSONLSink, error) {
	writer, err := fsstore.NewJSONLWriter(strings.TrimSpace(path), fsstore.JSONLOptions{
		RotateMaxBytes: rotateMaxBytes,
		FlushEachWrite: true,
	})
	if err != nil {
		return nil, err
	}
	return &JSONLSink{writer: writer}, nil
}

func (s *JSONLSink) Emit(e Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return s.writer.AppendJSON(e)
}

func (s *JSONLSink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
