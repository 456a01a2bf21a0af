package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: BuildStarted, Data: map[string]string{"run_id": "r1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: build.started") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"run_id":"r1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishProgress_Throttle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishProgress(map[string]int{"done": 1})
	b.PublishProgress(map[string]int{"done": 2})
	b.Publish(Event{Type: BuildFinished, Data: map[string]string{}})

	time.Sleep(50 * time.Millisecond)
	var progress, finished int
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "event: build.progress"):
			progress++
		case strings.Contains(s, "event: build.finished"):
			finished++
		}
	}
	if progress != 1 {
		t.Errorf("progress events = %d, want 1 (throttled)", progress)
	}
	if finished != 1 {
		t.Errorf("finished events = %d, want 1", finished)
	}
}

func TestBuildStartedResetsThrottle(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishProgress(map[string]int{"done": 1})
	b.Publish(Event{Type: BuildStarted, Data: map[string]string{}})
	b.PublishProgress(map[string]int{"done": 1})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[1], "build.started") || !strings.Contains(msgs[2], "build.progress") {
		t.Errorf("unexpected order: %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: BuildFinished, Data: map[string]string{"run_id": "r1"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: build.finished") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Client buffer holds 64; the rest must be dropped without blocking.
	for range 70 {
		b.Publish(Event{Type: BuildFinished, Data: map[string]string{}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: BuildFinished, Data: map[string]string{}})
	b.PublishProgress(map[string]int{"done": 1})
}
