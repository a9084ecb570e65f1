package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path, 0)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}

	events := []Event{
		{ConversationID: "conv-1", MessageID: "m1", SenderID: "alice", Responded: true, Reason: "keyword"},
		{ConversationID: "conv-1", MessageID: "m2", SenderID: "bob", Responded: false},
	}
	for _, e := range events {
		if err := sink.Emit(e); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].MessageID != "m1" || got[0].Reason != "keyword" || !got[0].Responded {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[0].Time.IsZero() {
		t.Fatalf("Emit did not stamp the event time")
	}
	if got[1].Responded {
		t.Fatalf("second event = %+v", got[1])
	}
}

func TestJSONLSink_ExplicitTimeKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path, 0)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}
	defer sink.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sink.Emit(Event{Time: ts, MessageID: "m1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !e.Time.Equal(ts) {
		t.Fatalf("Time = %v, want %v", e.Time, ts)
	}
}
