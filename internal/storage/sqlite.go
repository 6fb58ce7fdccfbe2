package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog/log"
	"github.com/tgarchive/viewer/internal/model"
)

// SQLiteAdapter is the embedded storage backend: a single file opened
// through the pure-Go modernc.org/sqlite driver (no cgo, no libsqlite3
// runtime dependency). Change events arrive over the loop-back HTTP push
// endpoint (see httpapi's /internal/push handler) rather than a native
// subscription mechanism, since SQLite has no notification primitive.
type SQLiteAdapter struct {
	db     *sql.DB
	events chan ChangeEvent
}

// OpenSQLite opens (and lightly prepares) the archive file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite tolerates exactly one writer; keep the pool small so busy
	// errors surface as contention rather than silent serialisation.
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite archive opened")

	return &SQLiteAdapter{
		db:     db,
		events: make(chan ChangeEvent, 256),
	}, nil
}

func (a *SQLiteAdapter) ChangeEvents() <-chan ChangeEvent { return a.events }

func (a *SQLiteAdapter) Close(ctx context.Context) error {
	return a.db.Close()
}

// IngestChangeEvent is called by the loop-back push handler once it has
// verified the request originated from a loopback/private address. It
// never blocks indefinitely: a full buffer means the bridge's consumer
// is behind, and the event is dropped with a logged warning rather than
// stalling the archiver's HTTP client.
func (a *SQLiteAdapter) IngestChangeEvent(ev ChangeEvent) {
	select {
	case a.events <- ev:
	default:
		log.Warn().Int64("chat_id", ev.ChatID).Str("kind", string(ev.Kind)).
			Msg("sqlite push ingest: change-event channel full, dropping")
	}
}

func (a *SQLiteAdapter) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, type, title, username, avatar_photo_id, archived, folder_id,
		       folder_position, last_message_date, last_synced_message_id
		FROM chats WHERE id = ?`, chatID)
	c, err := scanChatRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (a *SQLiteAdapter) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, phone, is_bot
		FROM users WHERE id = ?`, userID)
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.IsBot); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChatRow(row rowScanner) (*model.Chat, error) {
	var c model.Chat
	var chatType string
	if err := row.Scan(&c.ID, &chatType, &c.Title, &c.Username, &c.AvatarPhotoID,
		&c.Archived, &c.FolderID, &c.FolderPosition, &c.LastMessageDate, &c.LastSyncedMessageID); err != nil {
		return nil, err
	}
	c.Type = model.ChatType(chatType)
	return &c, nil
}

func buildSQLiteChatWhere(filter ChatFilter, args *[]any) string {
	where := "WHERE 1=1"
	if filter.Search != "" {
		*args = append(*args, "%"+filter.Search+"%")
		where += " AND (title LIKE ? COLLATE NOCASE OR username LIKE ? COLLATE NOCASE)"
		*args = append(*args, "%"+filter.Search+"%")
	}
	if filter.Archived != nil {
		*args = append(*args, *filter.Archived)
		where += " AND archived = ?"
	}
	if filter.FolderID != nil {
		*args = append(*args, *filter.FolderID)
		where += " AND folder_id = ?"
	}
	if filter.Scope != nil {
		if len(*filter.Scope) == 0 {
			where += " AND 0"
		} else {
			placeholders := ""
			for i, id := range *filter.Scope {
				if i > 0 {
					placeholders += ","
				}
				placeholders += "?"
				*args = append(*args, id)
			}
			where += " AND id IN (" + placeholders + ")"
		}
	}
	return where
}

func (a *SQLiteAdapter) ListChats(ctx context.Context, filter ChatFilter, limit, offset int) ([]model.Chat, error) {
	var args []any
	where := buildSQLiteChatWhere(filter, &args)
	args = append(args, limit, offset)

	q := fmt.Sprintf(`
		SELECT id, type, title, username, avatar_photo_id, archived, folder_id,
		       folder_position, last_message_date, last_synced_message_id
		FROM chats %s ORDER BY last_message_date DESC LIMIT ? OFFSET ?`, where)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chat
	for rows.Next() {
		c, err := scanChatRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) CountChats(ctx context.Context, filter ChatFilter) (int64, error) {
	var args []any
	where := buildSQLiteChatWhere(filter, &args)
	var n int64
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats "+where, args...).Scan(&n)
	return n, err
}

func scanMessageRow(row rowScanner) (*model.Message, error) {
	var m model.Message
	var mediaType *string
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Date, &m.Text, &m.ReplyToMsgID,
		&m.ForwardFromID, &m.EditDate, &mediaType, &m.MediaID, &m.MediaPath, &m.AlbumID,
		&m.TopicID, &m.IsPinned, &m.IsOutgoing); err != nil {
		return nil, err
	}
	if mediaType != nil {
		mt := model.MediaType(*mediaType)
		m.MediaType = &mt
	}
	return &m, nil
}

const messageCols = `id, chat_id, sender_id, date, text, reply_to_msg_id, forward_from_id,
		       edit_date, media_type, media_id, media_path, album_id, topic_id,
		       is_pinned, is_outgoing`

func (a *SQLiteAdapter) GetMessagesPaginated(ctx context.Context, chatID int64, filter MessageFilter) ([]model.Message, error) {
	args := []any{chatID}
	where := "WHERE chat_id = ?"

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += " AND text LIKE ? COLLATE NOCASE"
	}
	if filter.TopicID != nil {
		args = append(args, *filter.TopicID)
		where += " AND topic_id = ?"
	}

	var orderLimit string
	if filter.BeforeDate != nil && filter.BeforeID != nil {
		where += " AND (date < ? OR (date = ? AND id < ?))"
		args = append(args, *filter.BeforeDate, *filter.BeforeDate, *filter.BeforeID)
		args = append(args, filter.Limit)
		orderLimit = "ORDER BY date DESC, id DESC LIMIT ?"
	} else {
		args = append(args, filter.Limit, filter.Offset)
		orderLimit = "ORDER BY date DESC, id DESC LIMIT ? OFFSET ?"
	}

	q := fmt.Sprintf("SELECT %s FROM messages %s %s", messageCols, where, orderLimit)
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) FindMessageByDate(ctx context.Context, chatID int64, dateUTC time.Time) (*model.Message, error) {
	row := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM messages WHERE chat_id = ? AND date >= ?
		ORDER BY date ASC, id ASC LIMIT 1`, messageCols), chatID, dateUTC)
	m, err := scanMessageRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (a *SQLiteAdapter) GetPinned(ctx context.Context, chatID int64) ([]model.Message, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM messages WHERE chat_id = ? AND is_pinned = 1
		ORDER BY date DESC`, messageCols), chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) GetFolders(ctx context.Context) ([]model.Folder, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT f.id, f.title, COUNT(c.id)
		FROM folders f LEFT JOIN chats c ON c.folder_id = f.id
		GROUP BY f.id, f.title ORDER BY f.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Title, &f.ChatCount); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) GetTopics(ctx context.Context, chatID int64) ([]model.Topic, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT topic_id, title FROM topics WHERE chat_id = ? ORDER BY topic_id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) GetChatStats(ctx context.Context, chatID int64) (*model.ChatStats, error) {
	var s model.ChatStats
	s.ChatID = chatID
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(media_id), MIN(date), MAX(date)
		FROM messages WHERE chat_id = ?`, chatID).
		Scan(&s.MessageCount, &s.MediaCount, &s.FirstDate, &s.LastDate)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *SQLiteAdapter) GetCachedStatistics(ctx context.Context) (*model.Statistics, error) {
	raw, ok, err := a.GetMetadata(ctx, "cached_statistics")
	if err != nil {
		return nil, err
	}
	if !ok {
		return a.RefreshStatistics(ctx)
	}
	var s model.Statistics
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return a.RefreshStatistics(ctx)
	}
	return &s, nil
}

func (a *SQLiteAdapter) RefreshStatistics(ctx context.Context) (*model.Statistics, error) {
	var s model.Statistics
	err := a.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM chats),
		       (SELECT COUNT(*) FROM messages),
		       (SELECT COUNT(*) FROM media)`).
		Scan(&s.TotalChats, &s.TotalMessages, &s.TotalMedia)
	if err != nil {
		return nil, err
	}
	s.ComputedAt = time.Now().UTC()
	if buf, err := json.Marshal(s); err == nil {
		_ = a.SetMetadata(ctx, "cached_statistics", string(buf))
	}
	return &s, nil
}

func (a *SQLiteAdapter) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := a.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return v, err == nil, err
}

func (a *SQLiteAdapter) SetMetadata(ctx context.Context, key, value string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (a *SQLiteAdapter) IterMessagesForExport(ctx context.Context, chatID int64) (func() (ExportRow, bool), error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM messages WHERE chat_id = ? ORDER BY date ASC, id ASC`, messageCols), chatID)
	if err != nil {
		return nil, err
	}
	return func() (ExportRow, bool) {
		if !rows.Next() {
			rows.Close()
			return ExportRow{}, false
		}
		m, err := scanMessageRow(rows)
		if err != nil {
			return ExportRow{Err: err}, true
		}
		return ExportRow{Message: *m}, true
	}, nil
}

func (a *SQLiteAdapter) ApplyEdit(ctx context.Context, chatID, messageID int64, newText string, editDate time.Time) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE messages SET text = ?, edit_date = ? WHERE chat_id = ? AND id = ?`,
		newText, editDate, chatID, messageID)
	return err
}

func (a *SQLiteAdapter) ApplyDelete(ctx context.Context, chatID, messageID int64) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ? AND id = ?", chatID, messageID)
	return err
}

const viewerSQLiteCols = `id, username, password_hash, salt, allowed_chat_ids, is_active, created_by, created_at, updated_at, last_login_at`

func scanViewerRow(row rowScanner) (*model.ViewerAccount, error) {
	var v model.ViewerAccount
	var allowedRaw *string
	if err := row.Scan(&v.ID, &v.Username, &v.PasswordHash, &v.Salt, &allowedRaw,
		&v.IsActive, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt, &v.LastLoginAt); err != nil {
		return nil, err
	}
	if allowedRaw != nil {
		var ids []int64
		if err := json.Unmarshal([]byte(*allowedRaw), &ids); err == nil {
			v.AllowedChatIDs = &ids
		}
	}
	return &v, nil
}

func (a *SQLiteAdapter) GetViewerAccount(ctx context.Context, id int) (*model.ViewerAccount, error) {
	v, err := scanViewerRow(a.db.QueryRowContext(ctx, "SELECT "+viewerSQLiteCols+" FROM viewer_accounts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (a *SQLiteAdapter) GetViewerByUsername(ctx context.Context, username string) (*model.ViewerAccount, error) {
	v, err := scanViewerRow(a.db.QueryRowContext(ctx, "SELECT "+viewerSQLiteCols+" FROM viewer_accounts WHERE username = ?", username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (a *SQLiteAdapter) ListViewerAccounts(ctx context.Context) ([]model.ViewerAccount, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT "+viewerSQLiteCols+" FROM viewer_accounts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ViewerAccount
	for rows.Next() {
		v, err := scanViewerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) CreateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	allowed, err := allowedChatIDsJSON(v)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO viewer_accounts (username, password_hash, salt, allowed_chat_ids, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Username, v.PasswordHash, v.Salt, allowed, v.IsActive, v.CreatedBy, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = int(id)
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

func (a *SQLiteAdapter) UpdateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	allowed, err := allowedChatIDsJSON(v)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `
		UPDATE viewer_accounts
		SET username = ?, password_hash = ?, salt = ?, allowed_chat_ids = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		v.Username, v.PasswordHash, v.Salt, allowed, v.IsActive, time.Now().UTC(), v.ID)
	return err
}

func (a *SQLiteAdapter) DeleteViewerAccount(ctx context.Context, id int) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM viewer_accounts WHERE id = ?", id)
	return err
}

func (a *SQLiteAdapter) TouchViewerLogin(ctx context.Context, username string, at time.Time) error {
	_, err := a.db.ExecContext(ctx, "UPDATE viewer_accounts SET last_login_at = ? WHERE username = ?", at, username)
	return err
}

func (a *SQLiteAdapter) CreateAuditLog(ctx context.Context, e model.AuditEntry) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (username, role, action, endpoint, chat_id, ip_address, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Username, string(e.Role), e.Action, e.Endpoint, e.ChatID, e.IPAddress, e.UserAgent, e.Timestamp)
	return err
}

func (a *SQLiteAdapter) GetAuditLogs(ctx context.Context, username string, limit, offset int) ([]model.AuditEntry, int64, error) {
	where := "WHERE 1=1"
	var args []any
	if username != "" {
		where += " AND username = ?"
		args = append(args, username)
	}

	var total int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`
		SELECT id, username, role, action, endpoint, chat_id, ip_address, user_agent, timestamp
		FROM audit_log %s ORDER BY timestamp DESC LIMIT ? OFFSET ?`, where)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var role string
		if err := rows.Scan(&e.ID, &e.Username, &role, &e.Action, &e.Endpoint, &e.ChatID,
			&e.IPAddress, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		e.Role = model.Role(role)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (a *SQLiteAdapter) GetPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT endpoint, p256dh, auth_secret, username, allowed_chat_ids, user_agent, created_at
		FROM push_subscriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PushSubscription
	for rows.Next() {
		var s model.PushSubscription
		var allowedRaw *string
		if err := rows.Scan(&s.Endpoint, &s.P256dh, &s.AuthSecret, &s.Username, &allowedRaw,
			&s.UserAgent, &s.CreatedAt); err != nil {
			return nil, err
		}
		if allowedRaw != nil {
			var ids []int64
			if err := json.Unmarshal([]byte(*allowedRaw), &ids); err == nil {
				s.AllowedChatIDs = &ids
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) UpsertPushSubscription(ctx context.Context, s model.PushSubscription) error {
	var allowed any
	if s.AllowedChatIDs != nil {
		buf, err := json.Marshal(*s.AllowedChatIDs)
		if err != nil {
			return err
		}
		allowed = string(buf)
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (endpoint, p256dh, auth_secret, username, allowed_chat_ids, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
		  p256dh = excluded.p256dh, auth_secret = excluded.auth_secret,
		  username = excluded.username, allowed_chat_ids = excluded.allowed_chat_ids,
		  user_agent = excluded.user_agent`,
		s.Endpoint, s.P256dh, s.AuthSecret, s.Username, allowed, s.UserAgent, time.Now().UTC())
	return err
}

func (a *SQLiteAdapter) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	return err
}
