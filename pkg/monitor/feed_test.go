package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, feed *Feed, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for feed.SubscriberCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, feed.SubscriberCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	feed := NewFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	conn := dialFeed(t, srv)
	defer conn.Close()
	waitForSubscribers(t, feed, 1)

	feed.Publish(Event{CallID: "C1", ClientID: "acme", Type: EventCallStarted})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.CallID != "C1" || ev.Type != EventCallStarted {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Time.IsZero() {
		t.Fatalf("expected publish to stamp the event time")
	}
}

func TestPublishFansOut(t *testing.T) {
	feed := NewFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	a := dialFeed(t, srv)
	defer a.Close()
	b := dialFeed(t, srv)
	defer b.Close()
	waitForSubscribers(t, feed, 2)

	feed.Publish(Event{CallID: "C1", Type: EventCallerTurn, Text: "hello"})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.Contains(string(msg), "caller_turn") {
			t.Fatalf("unexpected frame: %s", msg)
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	feed := NewFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	// Connect but never read, so the send buffer fills up.
	conn := dialFeed(t, srv)
	defer conn.Close()
	waitForSubscribers(t, feed, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			feed.Publish(Event{CallID: "C1", Type: EventCallerTurn, Text: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	feed := NewFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	conn := dialFeed(t, srv)
	defer conn.Close()
	waitForSubscribers(t, feed, 1)

	feed.Close()
	if feed.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected read to fail after close")
	}
}

func TestPublishOnNilFeedIsNoop(t *testing.T) {
	var feed *Feed
	feed.Publish(Event{CallID: "C1", Type: EventEnded})
}
