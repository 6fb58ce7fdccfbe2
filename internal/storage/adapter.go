// Package storage defines the single capability set the viewer's query
// façade, session store, and real-time bridge run against, and provides
// two concrete backends behind it: an embedded SQLite file and a pooled
// PostgreSQL server. Neither backend performs scope filtering — every
// call is explicit and callers intersect results with the caller's
// access scope themselves (see internal/scope).
package storage

import (
	"context"
	"time"

	"github.com/tgarchive/viewer/internal/model"
)

// ChangeKind enumerates the three normalised change-event shapes the
// archiver (or the embedded loop-back push endpoint) can emit.
type ChangeKind string

const (
	ChangeNewMessage ChangeKind = "new_message"
	ChangeEdit       ChangeKind = "edit"
	ChangeDelete     ChangeKind = "delete"
)

// ChangeEvent is the normalised shape every backend's change stream
// produces, before the real-time bridge routes it onward.
type ChangeEvent struct {
	ChatID int64
	Kind   ChangeKind
	Data   map[string]any
}

// ChatFilter narrows list_chats/count_chats.
type ChatFilter struct {
	Search   string
	Archived *bool
	FolderID *int
	// Scope is the caller's effective chat-ID allow-set, or nil for
	// unrestricted. An empty (non-nil) slice means "nothing visible".
	Scope *[]int64
}

// MessageFilter narrows get_messages_paginated.
type MessageFilter struct {
	Search     string
	BeforeDate *time.Time
	BeforeID   *int64
	TopicID    *int64
	Limit      int
	Offset     int
}

// ExportRow is one row yielded by a streaming export iterator.
type ExportRow struct {
	Message model.Message
	Err     error
}

// Adapter is the uniform async capability set described in spec.md
// §4.1. Both backend variants implement it in full.
type Adapter interface {
	GetChat(ctx context.Context, chatID int64) (*model.Chat, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	ListChats(ctx context.Context, filter ChatFilter, limit, offset int) ([]model.Chat, error)
	CountChats(ctx context.Context, filter ChatFilter) (int64, error)

	GetMessagesPaginated(ctx context.Context, chatID int64, filter MessageFilter) ([]model.Message, error)
	FindMessageByDate(ctx context.Context, chatID int64, dateUTC time.Time) (*model.Message, error)
	GetPinned(ctx context.Context, chatID int64) ([]model.Message, error)
	GetFolders(ctx context.Context) ([]model.Folder, error)
	GetTopics(ctx context.Context, chatID int64) ([]model.Topic, error)
	GetChatStats(ctx context.Context, chatID int64) (*model.ChatStats, error)
	GetCachedStatistics(ctx context.Context) (*model.Statistics, error)
	RefreshStatistics(ctx context.Context) (*model.Statistics, error)

	GetMetadata(ctx context.Context, key string) (string, bool, error)
	SetMetadata(ctx context.Context, key, value string) error

	// IterMessagesForExport streams chatID's messages, oldest-first, one
	// row at a time, without materialising the full result set. The
	// returned function must be called until it returns false.
	IterMessagesForExport(ctx context.Context, chatID int64) (func() (ExportRow, bool), error)

	ApplyEdit(ctx context.Context, chatID, messageID int64, newText string, editDate time.Time) error
	ApplyDelete(ctx context.Context, chatID, messageID int64) error

	GetViewerAccount(ctx context.Context, id int) (*model.ViewerAccount, error)
	GetViewerByUsername(ctx context.Context, username string) (*model.ViewerAccount, error)
	ListViewerAccounts(ctx context.Context) ([]model.ViewerAccount, error)
	CreateViewerAccount(ctx context.Context, v *model.ViewerAccount) error
	UpdateViewerAccount(ctx context.Context, v *model.ViewerAccount) error
	DeleteViewerAccount(ctx context.Context, id int) error
	TouchViewerLogin(ctx context.Context, username string, at time.Time) error

	CreateAuditLog(ctx context.Context, entry model.AuditEntry) error
	GetAuditLogs(ctx context.Context, username string, limit, offset int) ([]model.AuditEntry, int64, error)

	GetPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	UpsertPushSubscription(ctx context.Context, sub model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error

	// ChangeEvents returns the adapter's single-consumer change-event
	// channel (matches the "single-consumer lazy sequence" contract in
	// spec.md §4.1). Every call returns the same channel, so calling it
	// again does not create a second subscription; the channel is never
	// closed, including by Close.
	ChangeEvents() <-chan ChangeEvent

	// Close releases pooled connections / background goroutines.
	Close(ctx context.Context) error
}
