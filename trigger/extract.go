package trigger

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

// Reply clients render fallback text like:
//
//	Replied with "double it" to an earlier message
var replyFallbackPattern = regexp.MustCompile(`Replied with "(.*)" to an earlier message`)

// Extract normalizes an inbound envelope into the single text string the
// trigger decision runs on. It is total: malformed payloads degrade to an
// empty string, never an error.
func Extract(env transport.MessageEnvelope) string {
	if env.Reply != nil {
		return extractReply(env.Reply)
	}
	return coerceText(env.Content)
}

// extractStrategy is one attempt at pulling text out of a reply payload. The
// first strategy that reports ok wins; order matters.
type extractStrategy struct {
	name string
	fn   func(r *transport.ReplyPayload) (string, bool)
}

var replyStrategies = []extractStrategy{
	{name: "nested_content", fn: replyNestedField("content")},
	{name: "nested_text", fn: replyNestedField("text")},
	{name: "nested_message", fn: replyNestedField("message")},
	{name: "fallback_pattern", fn: replyFallbackMatch},
	{name: "fallback_raw", fn: replyFallbackRaw},
	{name: "payload_json", fn: replyPayloadJSON},
}

func extractReply(r *transport.ReplyPayload) string {
	for _, s := range replyStrategies {
		if text, ok := s.fn(r); ok {
			return text
		}
	}
	return ""
}

func replyNestedField(field string) func(r *transport.ReplyPayload) (string, bool) {
	return func(r *transport.ReplyPayload) (string, bool) {
		nested, ok := r.Content.(map[string]any)
		if !ok {
			return "", false
		}
		raw, ok := nested[field]
		if !ok {
			return "", false
		}
		text := coerceText(raw)
		if text == "" {
			return "", false
		}
		return text, true
	}
}

func replyFallbackMatch(r *transport.ReplyPayload) (string, bool) {
	m := replyFallbackPattern.FindStringSubmatch(r.Fallback)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

func replyFallbackRaw(r *transport.ReplyPayload) (string, bool) {
	fallback := strings.TrimSpace(r.Fallback)
	if fallback == "" {
		return "", false
	}
	return fallback, true
}

// replyPayloadJSON serializes the whole reply payload, not just its content,
// so metadata-only replies still yield text. A payload with nothing in it
// stays empty; Extract is total either way.
func replyPayloadJSON(r *transport.ReplyPayload) (string, bool) {
	if r.Content == nil && r.ReferenceID == "" && r.SenderID == "" &&
		strings.TrimSpace(r.Fallback) == "" {
		return "", false
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func coerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case bool, int, int64, float32, float64, json.Number:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
