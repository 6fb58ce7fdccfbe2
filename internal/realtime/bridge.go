// Package realtime wires the storage adapter's change-event stream
// through the mass-operation protector into the WebSocket fan-out and
// push dispatcher.
package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/massop"
	"github.com/tgarchive/viewer/internal/storage"
)

// Sink receives a normalised envelope ready to hand to the WebSocket hub
// and/or push dispatcher.
type Sink interface {
	BroadcastNewMessage(chatID int64, data map[string]any)
	BroadcastEdit(chatID, messageID int64, newText string, editDate time.Time)
	BroadcastDelete(chatID, messageID int64)
}

// Pusher receives new-message events for out-of-band delivery (Web Push).
// Edits and deletes are never pushed.
type Pusher interface {
	NotifyChangeEvent(ctx context.Context, chatID int64, data map[string]any)
}

// Bridge subscribes to an adapter's change events, routes new messages
// straight through, and routes edits/deletes through the mass-operation
// protector before applying and forwarding them.
type Bridge struct {
	Store     storage.Adapter
	Protector *massop.Protector
	Sink      Sink
	Pusher    Pusher // optional; nil disables push fan-out

	releaseInterval time.Duration
	stopProtector   func()
	applyErrors     atomic.Int64
}

// Stats is the protector's statistics plus the bridge's own apply-failure
// counter, exposed together as the release loop's externally visible
// counters.
type Stats struct {
	massop.Stats
	Errors int64 `json:"errors"`
}

// Stats returns a snapshot combining the protector's counters with the
// count of apply failures the release loop has logged.
func (b *Bridge) Stats() Stats {
	return Stats{Stats: b.Protector.Stats(), Errors: b.applyErrors.Load()}
}

// New builds a bridge over an already-open adapter. releaseInterval
// governs how often the protector's buffered queue is drained (spec.md
// §4.4 suggests ~500ms). pusher may be nil when push notifications are
// disabled.
func New(store storage.Adapter, protector *massop.Protector, sink Sink, pusher Pusher, releaseInterval time.Duration) *Bridge {
	if releaseInterval <= 0 {
		releaseInterval = 500 * time.Millisecond
	}
	return &Bridge{Store: store, Protector: protector, Sink: sink, Pusher: pusher, releaseInterval: releaseInterval}
}

// Run consumes change events until ctx is cancelled, reconnecting the
// subscribe loop with exponential backoff if the underlying channel
// closes. Neither storage adapter closes its channel, so with them the
// loop exits only on ctx cancellation; the postgres adapter re-dials its
// own LISTEN connection internally.
func (b *Bridge) Run(ctx context.Context) {
	b.stopProtector = b.Protector.Run(b.releaseInterval, func(op massop.PendingOperation) {
		b.applyReleased(ctx, op)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; the bridge lives for the process lifetime

	for {
		events := b.Store.ChangeEvents()
		b.consume(ctx, events)

		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := bo.NextBackOff()
		log.Warn().Dur("retry_in", wait).Msg("realtime bridge: change-event stream closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Stop halts the protector's release loop. Callers should cancel the
// context passed to Run first so the consume loop exits, then call Stop.
func (b *Bridge) Stop() {
	if b.stopProtector != nil {
		b.stopProtector()
	}
}

func (b *Bridge) consume(ctx context.Context, events <-chan storage.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handle(ev)
		}
	}
}

func (b *Bridge) handle(ev storage.ChangeEvent) {
	switch ev.Kind {
	case storage.ChangeNewMessage:
		// New messages are never subject to mass-op protection.
		b.Sink.BroadcastNewMessage(ev.ChatID, ev.Data)
		if b.Pusher != nil {
			b.Pusher.NotifyChangeEvent(context.Background(), ev.ChatID, ev.Data)
		}
	case storage.ChangeEdit, storage.ChangeDelete:
		b.Protector.Queue(ev.ChatID, string(ev.Kind), ev.Data)
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("realtime bridge: unknown change event kind")
	}
}

func (b *Bridge) applyReleased(ctx context.Context, op massop.PendingOperation) {
	// Payloads decoded from JSON carry numbers as float64 and dates as
	// RFC 3339 strings; in-process callers may pass int64 / time.Time.
	var messageID int64
	switch v := op.Payload["message_id"].(type) {
	case int64:
		messageID = v
	case float64:
		messageID = int64(v)
	}

	switch op.Kind {
	case string(storage.ChangeEdit):
		newText, _ := op.Payload["new_text"].(string)
		editDate, _ := op.Payload["edit_date"].(time.Time)
		if s, ok := op.Payload["edit_date"].(string); ok {
			editDate, _ = time.Parse(time.RFC3339, s)
		}
		if err := b.Store.ApplyEdit(ctx, op.ChatID, messageID, newText, editDate); err != nil {
			b.applyErrors.Add(1)
			log.Error().Str("component", "realtime_bridge").Int64("chat_id", op.ChatID).Str("kind", op.Kind).Err(err).Msg("failed to apply edit")
			return
		}
		b.Sink.BroadcastEdit(op.ChatID, messageID, newText, editDate)
	case string(storage.ChangeDelete):
		if err := b.Store.ApplyDelete(ctx, op.ChatID, messageID); err != nil {
			b.applyErrors.Add(1)
			log.Error().Str("component", "realtime_bridge").Int64("chat_id", op.ChatID).Str("kind", op.Kind).Err(err).Msg("failed to apply delete")
			return
		}
		b.Sink.BroadcastDelete(op.ChatID, messageID)
	}
}
