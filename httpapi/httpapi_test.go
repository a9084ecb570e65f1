package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

type fakeConversation struct {
	id      string
	sendErr error
	sent    []string
}

func (c *fakeConversation) ID() string { return c.id }

func (c *fakeConversation) Send(ctx context.Context, text string) (string, error) {
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, text)
	return "msg-1", nil
}

type fakeTransport struct {
	conv    *fakeConversation
	convErr error
}

func (t *fakeTransport) StreamMessages(ctx context.Context) (<-chan transport.MessageEnvelope, error) {
	return nil, errors.New("not used")
}

func (t *fakeTransport) StreamMembershipChanges(ctx context.Context) (<-chan transport.Conversation, error) {
	return nil, errors.New("not used")
}

func (t *fakeTransport) GetConversation(ctx context.Context, id string) (transport.Conversation, error) {
	if t.convErr != nil {
		return nil, t.convErr
	}
	return t.conv, nil
}

func (t *fakeTransport) ResolveWalletAddress(ctx context.Context, senderID string) (string, error) {
	return "", nil
}

func newTestApp(tr *fakeTransport) *fiber.App {
	return New(tr, Config{
		AgentSecret: "s3cret",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func postSendMessage(t *testing.T, app *fiber.App, secret, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/send-message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("x-agent-secret", secret)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestSendMessage_Unauthorized(t *testing.T) {
	app := newTestApp(&fakeTransport{conv: &fakeConversation{id: "conv-1"}})

	for _, secret := range []string{"", "wrong"} {
		resp := postSendMessage(t, app, secret, `{"conversationId":"conv-1","message":"hi"}`)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("secret %q: status = %d, want 401", secret, resp.StatusCode)
		}
	}
}

func TestSendMessage_BadRequest(t *testing.T) {
	app := newTestApp(&fakeTransport{conv: &fakeConversation{id: "conv-1"}})

	cases := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{not json`},
		{name: "missing message", body: `{"conversationId":"conv-1"}`},
		{name: "blank fields", body: `{"conversationId":"  ","message":" "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSendMessage(t, app, "s3cret", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSendMessage_ConversationNotFound(t *testing.T) {
	app := newTestApp(&fakeTransport{convErr: errors.New("unknown peer")})

	resp := postSendMessage(t, app, "s3cret", `{"conversationId":"conv-404","message":"hi"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSendMessage_SendFailure(t *testing.T) {
	app := newTestApp(&fakeTransport{conv: &fakeConversation{id: "conv-1", sendErr: errors.New("peer gone")}})

	resp := postSendMessage(t, app, "s3cret", `{"conversationId":"conv-1","message":"hi"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSendMessage_OK(t *testing.T) {
	conv := &fakeConversation{id: "conv-1"}
	app := newTestApp(&fakeTransport{conv: conv})

	resp := postSendMessage(t, app, "s3cret", `{"conversationId":"conv-1","message":"hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		ConversationID string `json:"conversationId"`
		Message        string `json:"message"`
		MessageID      string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ConversationID != "conv-1" || out.Message != "hello there" || out.MessageID != "msg-1" {
		t.Fatalf("response = %+v", out)
	}
	if len(conv.sent) != 1 || conv.sent[0] != "hello there" {
		t.Fatalf("sent = %v", conv.sent)
	}
}
