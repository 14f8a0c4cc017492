package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
)

type sseEvent struct {
	name string
	data string
}

// readEvents parses server-sent events from body until it closes.
func readEvents(body *bufio.Scanner) <-chan sseEvent {
	ch := make(chan sseEvent, 64)
	go func() {
		defer close(ch)
		var ev sseEvent
		for body.Scan() {
			line := body.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.name != "":
				ch <- ev
				ev = sseEvent{}
			}
		}
	}()
	return ch
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream ended")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event within 2s")
	}
	return sseEvent{}
}

func nextMessage(t *testing.T, events <-chan sseEvent) model.Message {
	t.Helper()
	ev := nextEvent(t, events)
	if ev.name != "message" {
		t.Fatalf("got %q event (%s), want message", ev.name, ev.data)
	}
	var msg model.Message
	if err := json.Unmarshal([]byte(ev.data), &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestStreamReplaysThenGoesLive(t *testing.T) {
	srv := newTestServer(t, nil)
	visitor := map[string]string{"X-Visitor-ID": "visitor-1"}

	rec := srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{}`, visitor)
	var started model.StartConversationResponse
	decodeBody(t, rec, &started)
	convID := started.Conversation.ID

	// Committed before the stream opens, and announced only after it.
	late := &model.Message{
		ID:             "0190c2a4-6f1e-7c3b-9a55-000000000001",
		ConversationID: convID,
		SenderType:     model.SenderBot,
		Content:        "Dinner starts at 8pm.",
	}
	if _, err := srv.repo.InsertMessage(context.Background(), late); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/chat/conversations/"+convID+"/stream", nil)
	req.Header.Set("X-Visitor-ID", "visitor-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	events := readEvents(bufio.NewScanner(resp.Body))

	if ev := nextEvent(t, events); ev.name != "connected" {
		t.Fatalf("first event = %q, want connected", ev.name)
	}
	if msg := nextMessage(t, events); msg.ID != started.Messages[0].ID {
		t.Errorf("replayed %s first, want the welcome", msg.ID)
	}
	if msg := nextMessage(t, events); msg.ID != late.ID {
		t.Errorf("replayed %s second, want %s", msg.ID, late.ID)
	}
	ev := nextEvent(t, events)
	if ev.name != "replay_complete" {
		t.Fatalf("got %q, want replay_complete", ev.name)
	}
	var replay ReplayCompleteEvent
	if err := json.Unmarshal([]byte(ev.data), &replay); err != nil || replay.MessageCount != 2 {
		t.Errorf("replay_complete = %s", ev.data)
	}

	change, err := feed.NewChangeEvent(feed.TableMessages, feed.OpInsert, late.ID, convID, late)
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.changes.Publish(context.Background(), change); err != nil {
		t.Fatal(err)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+convID+"/messages", `{"content":"Is it on tonight?"}`, visitor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send = %d: %s", rec.Code, rec.Body)
	}

	if msg := nextMessage(t, events); msg.Content != "Is it on tonight?" {
		t.Fatalf("live message = %q (%s), want the visitor's", msg.Content, msg.ID)
	}
	if msg := nextMessage(t, events); msg.SenderType != model.SenderBot || msg.Content != "you said Is it on tonight?" {
		t.Errorf("bot reply = %+v", msg)
	}
}

func TestStreamRejectsOtherVisitor(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{}`, map[string]string{"X-Visitor-ID": "visitor-1"})
	var started model.StartConversationResponse
	decodeBody(t, rec, &started)

	rec = srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+started.Conversation.ID+"/stream", "",
		map[string]string{"X-Visitor-ID": "visitor-2"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stream for another visitor = %d, want 403", rec.Code)
	}
}
