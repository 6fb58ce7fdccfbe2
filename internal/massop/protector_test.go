package massop

import (
	"testing"
	"time"
)

func TestQueueUnderThresholdStaysQueued(t *testing.T) {
	p := New(5, time.Minute, 10*time.Millisecond)

	for i := 0; i < 4; i++ {
		if got := p.Queue(1, "edit", nil); got != Queued {
			t.Fatalf("Queue() = %v, want Queued", got)
		}
	}

	stats := p.Stats()
	if stats.Pending != 4 {
		t.Errorf("Pending = %d, want 4", stats.Pending)
	}
	if stats.CurrentlyBlocked != 0 {
		t.Errorf("CurrentlyBlocked = %d, want 0", stats.CurrentlyBlocked)
	}
}

func TestQueueAtThresholdBlocksAndDropsZeroFootprint(t *testing.T) {
	p := New(3, time.Minute, time.Hour)

	p.Queue(1, "delete", nil)
	p.Queue(1, "delete", nil)
	got := p.Queue(1, "delete", nil)

	if got != Blocked {
		t.Fatalf("3rd Queue() = %v, want Blocked", got)
	}

	// Zero-footprint: nothing from the burst should ever be releasable.
	released := p.Release()
	if len(released) != 0 {
		t.Errorf("Release() returned %d ops, want 0 (zero-footprint burst)", len(released))
	}

	stats := p.Stats()
	if stats.BurstsDetected != 1 {
		t.Errorf("BurstsDetected = %d, want 1", stats.BurstsDetected)
	}
	if stats.Discarded != 3 {
		t.Errorf("Discarded = %d, want 3", stats.Discarded)
	}
	if stats.CurrentlyBlocked != 1 {
		t.Errorf("CurrentlyBlocked = %d, want 1", stats.CurrentlyBlocked)
	}

	// Further ops for the blocked chat are rejected outright.
	if got := p.Queue(1, "edit", nil); got != Blocked {
		t.Errorf("Queue() on blocked chat = %v, want Blocked", got)
	}
}

func TestBlockRecordCountKeepsCountingWhileBlocked(t *testing.T) {
	p := New(3, time.Minute, time.Hour)

	p.Queue(4, "delete", nil)
	p.Queue(4, "delete", nil)
	p.Queue(4, "delete", nil) // arms the block, count starts at 3

	p.mu.Lock()
	rec := p.blocked[4]
	p.mu.Unlock()
	if rec.count != 3 {
		t.Fatalf("blockRecord.count after arming = %d, want 3", rec.count)
	}

	p.Queue(4, "delete", nil)
	p.Queue(4, "delete", nil)

	p.mu.Lock()
	rec = p.blocked[4]
	p.mu.Unlock()
	if rec.count != 5 {
		t.Errorf("blockRecord.count after 2 more rejected queues = %d, want 5", rec.count)
	}
}

func TestReleaseAfterBufferDelay(t *testing.T) {
	p := New(10, time.Minute, 5*time.Millisecond)

	p.Queue(7, "edit", map[string]any{"message_id": 1})
	time.Sleep(10 * time.Millisecond)

	released := p.Release()
	if len(released) != 1 {
		t.Fatalf("Release() returned %d ops, want 1", len(released))
	}
	if released[0].ChatID != 7 {
		t.Errorf("ChatID = %d, want 7", released[0].ChatID)
	}

	stats := p.Stats()
	if stats.Applied != 1 {
		t.Errorf("Applied = %d, want 1", stats.Applied)
	}
	if stats.Pending != 0 {
		t.Errorf("Pending = %d, want 0", stats.Pending)
	}
}

func TestReleaseWithheldBeforeBufferDelay(t *testing.T) {
	p := New(10, time.Minute, time.Hour)

	p.Queue(2, "edit", nil)
	released := p.Release()
	if len(released) != 0 {
		t.Errorf("Release() returned %d ops before buffer delay elapsed, want 0", len(released))
	}
}

func TestBlockExpires(t *testing.T) {
	p := New(2, 5*time.Millisecond, time.Millisecond)

	p.Queue(9, "delete", nil)
	p.Queue(9, "delete", nil) // triggers block

	time.Sleep(10 * time.Millisecond)

	if got := p.Queue(9, "delete", nil); got != Queued {
		t.Errorf("Queue() after block expiry = %v, want Queued", got)
	}
}
