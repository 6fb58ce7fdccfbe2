// Package model holds the archive's persisted data shapes. Nothing here
// talks to a database; storage.Adapter implementations translate rows to
// and from these types.
package model

import "time"

// ChatType enumerates the chat kinds recognised by the archive.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatBot        ChatType = "bot"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// SupergroupMagnitude is the smallest magnitude a marked chat ID can have
// for a supergroup or channel (as opposed to a small group).
const SupergroupMagnitude = int64(1_000_000_000_000)

// Chat is a single archived conversation, identified by its marked ID.
type Chat struct {
	ID                   int64      `json:"id"`
	Type                 ChatType   `json:"type"`
	Title                *string    `json:"title,omitempty"`
	Username             *string    `json:"username,omitempty"`
	AvatarPhotoID        *int64     `json:"avatar_photo_id,omitempty"`
	Archived             bool       `json:"archived"`
	FolderID             *int       `json:"folder_id,omitempty"`
	FolderPosition       *int       `json:"folder_position,omitempty"`
	LastMessageDate      time.Time  `json:"last_message_date"`
	LastSyncedMessageID  int64      `json:"last_synced_message_id"`
}

// MediaType enumerates the media kinds a message may carry.
type MediaType string

const (
	MediaPhoto     MediaType = "photo"
	MediaVideo     MediaType = "video"
	MediaVoice     MediaType = "voice"
	MediaVideoNote MediaType = "video_note"
	MediaAudio     MediaType = "audio"
	MediaAnimation MediaType = "animation"
	MediaSticker   MediaType = "sticker"
	MediaDocument  MediaType = "document"
)

// Message is one archived message. Identity is the pair (ChatID, ID).
type Message struct {
	ID             int64      `json:"id"`
	ChatID         int64      `json:"chat_id"`
	SenderID       *int64     `json:"sender_id,omitempty"`
	Date           time.Time  `json:"date"`
	Text           string     `json:"text"`
	ReplyToMsgID   *int64     `json:"reply_to_msg_id,omitempty"`
	ForwardFromID  *int64     `json:"forward_from_id,omitempty"`
	EditDate       *time.Time `json:"edit_date,omitempty"`
	MediaType      *MediaType `json:"media_type,omitempty"`
	MediaID        *string    `json:"media_id,omitempty"`
	MediaPath      *string    `json:"media_path,omitempty"`
	AlbumID        *string    `json:"album_id,omitempty"`
	TopicID        *int64     `json:"topic_id,omitempty"`
	IsPinned       bool       `json:"is_pinned"`
	IsOutgoing     bool       `json:"is_outgoing"`
	Raw            []byte     `json:"-"`
}

// User is a Telegram account referenced by Message.SenderID. There is no
// cascade from users to messages: messages survive unknown senders.
type User struct {
	ID        int64   `json:"id"`
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	IsBot     bool    `json:"is_bot"`
}

// Media describes one downloaded (or pending) file on disk under the
// configured media root. FilePath is relative to that root.
type Media struct {
	ID         string    `json:"id"`
	MessageID  int64     `json:"message_id"`
	ChatID     int64     `json:"chat_id"`
	Type       MediaType `json:"type"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	MimeType   *string   `json:"mime_type,omitempty"`
	Width      *int      `json:"width,omitempty"`
	Height     *int      `json:"height,omitempty"`
	Duration   *int      `json:"duration,omitempty"`
	Downloaded bool      `json:"downloaded"`
}

// Role distinguishes the privileged master operator from scoped viewers.
type Role string

const (
	RoleMaster Role = "master"
	RoleViewer Role = "viewer"
)

// ViewerAccount is a storage-resident login, optionally restricted to a
// subset of chats. AllowedChatIDs == nil means "defer to the master
// display filter"; a non-nil (possibly empty) slice restricts further.
type ViewerAccount struct {
	ID              int        `json:"id"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	Salt            string     `json:"-"`
	AllowedChatIDs  *[]int64   `json:"allowed_chat_ids"`
	IsActive        bool       `json:"is_active"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// AuditEntry is one append-only row in the audit log.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Action    string    `json:"action"`
	Endpoint  *string   `json:"endpoint,omitempty"`
	ChatID    *int64    `json:"chat_id,omitempty"`
	IPAddress *string   `json:"ip_address,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PushSubscription is one browser endpoint registered for Web Push.
type PushSubscription struct {
	Endpoint       string    `json:"endpoint"`
	P256dh         string    `json:"p256dh"`
	AuthSecret     string    `json:"auth_secret"`
	Username       *string   `json:"username,omitempty"`
	AllowedChatIDs *[]int64  `json:"allowed_chat_ids,omitempty"`
	UserAgent      *string   `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Folder groups chats for the folder view, with a chat count.
type Folder struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	ChatCount  int    `json:"chat_count"`
}

// Topic is a forum topic within a supergroup chat.
type Topic struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ChatStats is the set of counters the per-chat stats endpoint returns.
type ChatStats struct {
	ChatID       int64 `json:"chat_id"`
	MessageCount int64 `json:"message_count"`
	MediaCount   int64 `json:"media_count"`
	FirstDate    *time.Time `json:"first_date,omitempty"`
	LastDate     *time.Time `json:"last_date,omitempty"`
}

// Statistics is the cached, archive-wide statistics blob.
type Statistics struct {
	TotalChats       int64     `json:"total_chats"`
	TotalMessages    int64     `json:"total_messages"`
	TotalMedia       int64     `json:"total_media"`
	ComputedAt       time.Time `json:"computed_at"`
}

// IsSupergroupOrChannel reports whether a marked chat ID's magnitude puts
// it in the supergroup/channel range (as opposed to a small group).
func IsSupergroupOrChannel(markedID int64) bool {
	if markedID >= 0 {
		return false
	}
	if markedID == -markedID { // overflow guard for MinInt64, never a real chat id
		return false
	}
	magnitude := -markedID
	return magnitude >= SupergroupMagnitude
}

// MarkedGroupID converts a positive upstream chat id into its small-group
// marked form (negation), mirroring the archiver's own convention.
func MarkedGroupID(id int64) int64 {
	return -id
}

// MarkedSupergroupID converts a positive upstream chat id into its
// supergroup/channel marked form: -(10^12 + id).
func MarkedSupergroupID(id int64) int64 {
	return -(SupergroupMagnitude + id)
}
