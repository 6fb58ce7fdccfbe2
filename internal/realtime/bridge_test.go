package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tgarchive/viewer/internal/massop"
	"github.com/tgarchive/viewer/internal/storage"
)

// fakeAdapter embeds the interface (nil) so it satisfies storage.Adapter
// without implementing every method; tests only exercise the handful
// the bridge actually calls.
type fakeAdapter struct {
	storage.Adapter

	events chan storage.ChangeEvent

	mu        sync.Mutex
	edits     []int64
	deletes   []int64
	failApply bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{events: make(chan storage.ChangeEvent, 16)}
}

func (f *fakeAdapter) ChangeEvents() <-chan storage.ChangeEvent { return f.events }

func (f *fakeAdapter) ApplyEdit(ctx context.Context, chatID, messageID int64, newText string, editDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failApply {
		return errors.New("storage unavailable")
	}
	f.edits = append(f.edits, messageID)
	return nil
}

func (f *fakeAdapter) ApplyDelete(ctx context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	newMsgs []int64
	edited  []int64
	deleted []int64
}

func (s *fakeSink) BroadcastNewMessage(chatID int64, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newMsgs = append(s.newMsgs, chatID)
}

func (s *fakeSink) BroadcastEdit(chatID, messageID int64, newText string, editDate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edited = append(s.edited, messageID)
}

func (s *fakeSink) BroadcastDelete(chatID, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, messageID)
}

func TestBridgeForwardsNewMessageImmediately(t *testing.T) {
	adapter := newFakeAdapter()
	sink := &fakeSink{}
	protector := massop.New(10, time.Minute, time.Hour)
	bridge := New(adapter, protector, sink, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	defer bridge.Stop()

	adapter.events <- storage.ChangeEvent{ChatID: 42, Kind: storage.ChangeNewMessage, Data: map[string]any{}}

	deadline := time.After(time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.newMsgs)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for new message broadcast")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestBridgeBuffersEditsThroughProtector(t *testing.T) {
	adapter := newFakeAdapter()
	sink := &fakeSink{}
	protector := massop.New(10, time.Minute, 5*time.Millisecond)
	bridge := New(adapter, protector, sink, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	defer bridge.Stop()

	adapter.events <- storage.ChangeEvent{
		ChatID: 1,
		Kind:   storage.ChangeEdit,
		Data:   map[string]any{"message_id": int64(5), "new_text": "hi"},
	}

	deadline := time.After(time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.edited)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for buffered edit to be applied and broadcast")
		case <-time.After(time.Millisecond):
		}
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.edits) != 1 || adapter.edits[0] != 5 {
		t.Errorf("adapter.edits = %v, want [5]", adapter.edits)
	}
}

func TestBridgeCountsApplyErrors(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failApply = true
	sink := &fakeSink{}
	protector := massop.New(10, time.Minute, 5*time.Millisecond)
	bridge := New(adapter, protector, sink, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	defer bridge.Stop()

	adapter.events <- storage.ChangeEvent{
		ChatID: 3,
		Kind:   storage.ChangeEdit,
		Data:   map[string]any{"message_id": int64(9), "new_text": "hi"},
	}

	deadline := time.After(time.Second)
	for {
		if bridge.Stats().Errors == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for apply-error counter to increment")
		case <-time.After(time.Millisecond):
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.edited) != 0 {
		t.Errorf("BroadcastEdit called despite apply failure: %v", sink.edited)
	}
}
