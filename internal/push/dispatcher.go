// Package push dispatches Web Push notifications for new-message events
// to subscribed browser endpoints, best-effort. Deliveries are not
// rate-limited: every matching subscription is sent every notification.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/storage"
)

// Mode mirrors config.PushMode: the dispatcher is a no-op unless Full.
type Mode string

const (
	ModeOff   Mode = "off"
	ModeBasic Mode = "basic"
	ModeFull  Mode = "full"
)

// Config holds the VAPID key pair and operating mode.
type Config struct {
	Mode      Mode
	VAPIDPub  string
	VAPIDPriv string
	Subject   string // mailto: or https: contact URL required by the VAPID spec
}

// payload is the JSON body delivered to the browser's service worker.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Data  struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	} `json:"data"`
}

// Dispatcher sends Web Push notifications for new-message events. Edit
// and delete events are never pushed in the default operating mode.
type Dispatcher struct {
	Store storage.Adapter
	Cfg   Config

	// send is overridable in tests; defaults to webpush.SendNotification.
	send func(message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)
}

// New builds a dispatcher bound to store for subscription lookups/cleanup.
func New(store storage.Adapter, cfg Config) *Dispatcher {
	return &Dispatcher{
		Store: store,
		Cfg:   cfg,
		send:  webpush.SendNotification,
	}
}

// Enabled reports whether the dispatcher should do any work at all.
func (d *Dispatcher) Enabled() bool {
	return d.Cfg.Mode == ModeFull && d.Cfg.VAPIDPub != "" && d.Cfg.VAPIDPriv != ""
}

// NotifyNewMessage fans a new-message event on chatID out to every
// subscription whose own allowed_chat_ids (if any) includes chatID.
func (d *Dispatcher) NotifyNewMessage(ctx context.Context, chat *model.Chat, msg *model.Message) {
	if !d.Enabled() {
		return
	}

	subs, err := d.Store.GetPushSubscriptions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("push: failed to load subscriptions")
		return
	}

	body := truncatedBody(ctx, d.Store, msg)
	pl := payload{Title: chatTitle(chat), Body: body, Icon: "/icons/notification.png"}
	pl.Data.ChatID = msg.ChatID
	pl.Data.MessageID = msg.ID

	raw, err := json.Marshal(pl)
	if err != nil {
		log.Error().Err(err).Msg("push: failed to marshal payload")
		return
	}

	for _, sub := range subs {
		if sub.AllowedChatIDs != nil && !containsInt64(*sub.AllowedChatIDs, msg.ChatID) {
			continue
		}
		d.deliver(ctx, sub, raw)
	}
}

// NotifyChangeEvent adapts a raw change-event payload (as delivered by
// the storage adapter's change stream) into a NotifyNewMessage call. The
// payload's shape matches the normalised envelope described in spec.md
// §6; fields are read defensively since Data is a loosely-typed map.
func (d *Dispatcher) NotifyChangeEvent(ctx context.Context, chatID int64, data map[string]any) {
	if !d.Enabled() {
		return
	}

	chat, err := d.Store.GetChat(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("push: failed to load chat for notification")
		return
	}

	msg := &model.Message{ChatID: chatID}
	if v, ok := data["message_id"].(float64); ok {
		msg.ID = int64(v)
	} else if v, ok := data["message_id"].(int64); ok {
		msg.ID = v
	}
	if v, ok := data["text"].(string); ok {
		msg.Text = v
	}
	switch v := data["sender_id"].(type) {
	case float64:
		senderID := int64(v)
		msg.SenderID = &senderID
	case int64:
		senderID := v
		msg.SenderID = &senderID
	}

	d.NotifyNewMessage(ctx, chat, msg)
}

func (d *Dispatcher) deliver(ctx context.Context, sub model.PushSubscription, raw []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.AuthSecret,
		},
	}

	resp, err := d.send(raw, wpSub, &webpush.Options{
		Subscriber:      d.Cfg.Subject,
		VAPIDPublicKey:  d.Cfg.VAPIDPub,
		VAPIDPrivateKey: d.Cfg.VAPIDPriv,
		TTL:             60,
	})
	if err != nil {
		log.Warn().Err(err).Str("endpoint", redactEndpoint(sub.Endpoint)).Msg("push: delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if err := d.Store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Error().Err(err).Msg("push: failed to delete stale subscription")
		}
	}
}

// truncatedBody resolves the sender's display name the same way
// handle_realtime_notification does upstream: first name, falling back
// to username, falling back to the raw numeric ID if the sender is
// unknown or the lookup fails.
func truncatedBody(ctx context.Context, store storage.Adapter, msg *model.Message) string {
	if msg.Text == "" {
		return "[Media]"
	}
	const maxLen = 120
	text := msg.Text
	if len(text) > maxLen {
		text = text[:maxLen] + "…"
	}
	return senderName(ctx, store, msg.SenderID) + ": " + text
}

func senderName(ctx context.Context, store storage.Adapter, senderID *int64) string {
	if senderID == nil {
		return "Someone"
	}
	user, err := store.GetUserByID(ctx, *senderID)
	if err != nil {
		log.Warn().Err(err).Int64("sender_id", *senderID).Msg("push: failed to resolve sender name")
	}
	if user == nil {
		return fmt.Sprintf("%d", *senderID)
	}
	if user.FirstName != nil && *user.FirstName != "" {
		return *user.FirstName
	}
	if user.Username != nil && *user.Username != "" {
		return *user.Username
	}
	return fmt.Sprintf("%d", *senderID)
}

func chatTitle(chat *model.Chat) string {
	if chat == nil || chat.Title == nil || *chat.Title == "" {
		return "New message"
	}
	return *chat.Title
}

func containsInt64(s []int64, v int64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// redactEndpoint keeps only the push service host in logs, never the
// full subscription URL (which is effectively a bearer credential).
func redactEndpoint(endpoint string) string {
	const prefix = "https://"
	if !strings.HasPrefix(endpoint, prefix) {
		return "redacted"
	}
	rest := endpoint[len(prefix):]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return prefix + rest[:idx]
	}
	return prefix + rest
}
