package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
)

type fakeStore struct {
	ch chan eventlog.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{ch: make(chan eventlog.Event, 4)}
}

func (f *fakeStore) Subscribe() (<-chan eventlog.Event, func()) {
	return f.ch, func() { close(f.ch) }
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	pub := NewPublisher("127.0.0.1:0")
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx, store)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}

func TestRunDrainsEventsWithoutBlocking(t *testing.T) {
	store := newFakeStore()
	pub := NewPublisher("127.0.0.1:0")
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx, store)
		close(done)
	}()

	store.ch <- eventlog.Event{Seq: 1, Type: eventlog.TypeGenesis}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}
