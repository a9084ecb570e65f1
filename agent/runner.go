// Package agent wraps the LLM-driven action agent behind the single
// operation the dispatch loop needs: run a command text under a thread key
// and get text back.
package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/builders-garden/squabble-agent-xmtp/llm"
)

// AlreadySent is the sentinel a runner returns when it has already delivered
// its reply out-of-band (e.g. through a tool call that messaged the
// conversation directly). The dispatch loop suppresses it instead of sending.
const AlreadySent = "<already-sent>"

func IsAlreadySent(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), AlreadySent)
}

// Runner is the external agent collaborator. Implementations are stateful
// per thread key and may perform arbitrary side-effecting tool calls before
// returning.
type Runner interface {
	Run(ctx context.Context, threadKey, text string) (string, error)
}

const DefaultHistoryMax = 20

// LLMRunner is a chat-completion backed Runner keeping a bounded per-thread
// message history in memory.
type LLMRunner struct {
	client     llm.Client
	model      string
	system     string
	historyMax int

	mu        sync.Mutex
	histories map[string][]llm.Message
}

func NewLLMRunner(client llm.Client, model, systemPrompt string, historyMax int) *LLMRunner {
	if historyMax <= 0 {
		historyMax = DefaultHistoryMax
	}
	return &LLMRunner{
		client:     client,
		model:      model,
		system:     systemPrompt,
		historyMax: historyMax,
		histories:  make(map[string][]llm.Message),
	}
}

func (r *LLMRunner) Run(ctx context.Context, threadKey, text string) (string, error) {
	r.mu.Lock()
	history := append([]llm.Message(nil), r.histories[threadKey]...)
	r.mu.Unlock()

	messages := make([]llm.Message, 0, len(history)+2)
	if strings.TrimSpace(r.system) != "" {
		messages = append(messages, llm.Message{Role: "system", Content: r.system})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: text})

	res, err := r.client.Chat(ctx, llm.Request{Model: r.model, Messages: messages})
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	cur := r.histories[threadKey]
	cur = append(cur,
		llm.Message{Role: "user", Content: text},
		llm.Message{Role: "assistant", Content: res.Text},
	)
	if len(cur) > r.historyMax {
		cur = cur[len(cur)-r.historyMax:]
	}
	r.histories[threadKey] = cur
	r.mu.Unlock()

	return res.Text, nil
}

// Reset drops the accumulated history for a thread.
func (r *LLMRunner) Reset(threadKey string) {
	r.mu.Lock()
	delete(r.histories, threadKey)
	r.mu.Unlock()
}
