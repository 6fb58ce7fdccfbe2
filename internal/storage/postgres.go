package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/model"
)

// changeChannel is the dedicated LISTEN/NOTIFY channel the archiver
// publishes mutations on; see spec.md §4.1, server backend.
const changeChannel = "archive_changes"

// PostgresAdapter is the server storage backend: a pgxpool-backed query
// path plus one pool connection held for the lifetime of the LISTEN
// session; the other pool connections keep serving queries.
type PostgresAdapter struct {
	pool   *pgxpool.Pool
	events chan ChangeEvent
	cancel context.CancelFunc
}

// OpenPostgres dials the pool the same way the teacher's internal/db.Open
// does (bounded pool, health checks, connectivity probe on startup), then
// starts the dedicated LISTEN loop for change events.
func OpenPostgres(ctx context.Context, url string) (*PostgresAdapter, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	listenCtx, cancel := context.WithCancel(context.Background())
	a := &PostgresAdapter{
		pool:   pool,
		events: make(chan ChangeEvent, 256),
		cancel: cancel,
	}
	go a.listenLoop(listenCtx)
	return a, nil
}

func (a *PostgresAdapter) ChangeEvents() <-chan ChangeEvent { return a.events }

func (a *PostgresAdapter) Close(ctx context.Context) error {
	a.cancel()
	a.pool.Close()
	return nil
}

// notifyPayload is the JSON shape the archiver publishes via pg_notify;
// it matches the normalised change-event envelope in spec.md §6.
type notifyPayload struct {
	Type   string         `json:"type"`
	ChatID int64          `json:"chat_id"`
	Data   map[string]any `json:"data"`
}

// listenLoop holds one dedicated connection on LISTEN and re-dials it
// whenever it drops. Failed acquire or LISTEN attempts are retried with
// exponential backoff (1s doubling to 30s, reset once LISTEN succeeds).
// The events channel stays open across re-dials.
func (a *PostgresAdapter) listenLoop(ctx context.Context) {
	delay := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := a.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("postgres listen: failed to acquire connection")
			time.Sleep(delay)
			delay = min(delay*2, 30*time.Second)
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
			log.Error().Err(err).Msg("postgres listen: LISTEN failed")
			conn.Release()
			time.Sleep(delay)
			delay = min(delay*2, 30*time.Second)
			continue
		}

		delay = time.Second
		a.waitForNotifications(ctx, conn)
		conn.Release()
	}
}

func (a *PostgresAdapter) waitForNotifications(ctx context.Context, conn *pgxpool.Conn) {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("postgres listen: connection dropped, reconnecting")
			}
			return
		}

		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			log.Error().Err(err).Str("payload", n.Payload).Msg("postgres listen: malformed notification")
			continue
		}

		select {
		case a.events <- ChangeEvent{ChatID: p.ChatID, Kind: ChangeKind(p.Type), Data: p.Data}:
		case <-ctx.Done():
			return
		default:
			log.Warn().Int64("chat_id", p.ChatID).Msg("postgres listen: change-event channel full, dropping")
		}
	}
}

func (a *PostgresAdapter) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT id, type, title, username, avatar_photo_id, archived, folder_id,
		       folder_position, last_message_date, last_synced_message_id
		FROM chats WHERE id = $1`, chatID)
	var c model.Chat
	var chatType string
	if err := row.Scan(&c.ID, &chatType, &c.Title, &c.Username, &c.AvatarPhotoID,
		&c.Archived, &c.FolderID, &c.FolderPosition, &c.LastMessageDate, &c.LastSyncedMessageID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Type = model.ChatType(chatType)
	return &c, nil
}

func (a *PostgresAdapter) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, phone, is_bot
		FROM users WHERE id = $1`, userID)
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.IsBot); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func buildChatWhere(filter ChatFilter, args *[]any) string {
	where := "WHERE 1=1"
	if filter.Search != "" {
		*args = append(*args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (title ILIKE $%d OR username ILIKE $%d)", len(*args), len(*args))
	}
	if filter.Archived != nil {
		*args = append(*args, *filter.Archived)
		where += fmt.Sprintf(" AND archived = $%d", len(*args))
	}
	if filter.FolderID != nil {
		*args = append(*args, *filter.FolderID)
		where += fmt.Sprintf(" AND folder_id = $%d", len(*args))
	}
	if filter.Scope != nil {
		if len(*filter.Scope) == 0 {
			where += " AND FALSE"
		} else {
			*args = append(*args, *filter.Scope)
			where += fmt.Sprintf(" AND id = ANY($%d)", len(*args))
		}
	}
	return where
}

func (a *PostgresAdapter) ListChats(ctx context.Context, filter ChatFilter, limit, offset int) ([]model.Chat, error) {
	var args []any
	where := buildChatWhere(filter, &args)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`
		SELECT id, type, title, username, avatar_photo_id, archived, folder_id,
		       folder_position, last_message_date, last_synced_message_id
		FROM chats %s
		ORDER BY last_message_date DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := a.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Chat
	for rows.Next() {
		var c model.Chat
		var chatType string
		if err := rows.Scan(&c.ID, &chatType, &c.Title, &c.Username, &c.AvatarPhotoID,
			&c.Archived, &c.FolderID, &c.FolderPosition, &c.LastMessageDate, &c.LastSyncedMessageID); err != nil {
			return nil, err
		}
		c.Type = model.ChatType(chatType)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) CountChats(ctx context.Context, filter ChatFilter) (int64, error) {
	var args []any
	where := buildChatWhere(filter, &args)
	q := "SELECT COUNT(*) FROM chats " + where
	var n int64
	if err := a.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *PostgresAdapter) GetMessagesPaginated(ctx context.Context, chatID int64, filter MessageFilter) ([]model.Message, error) {
	args := []any{chatID}
	where := "WHERE chat_id = $1"

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND text ILIKE $%d", len(args))
	}
	if filter.TopicID != nil {
		args = append(args, *filter.TopicID)
		where += fmt.Sprintf(" AND topic_id = $%d", len(args))
	}

	var orderLimit string
	if filter.BeforeDate != nil && filter.BeforeID != nil {
		args = append(args, *filter.BeforeDate, *filter.BeforeID)
		where += fmt.Sprintf(" AND (date, id) < ($%d, $%d)", len(args)-1, len(args))
		args = append(args, filter.Limit)
		orderLimit = fmt.Sprintf("ORDER BY date DESC, id DESC LIMIT $%d", len(args))
	} else {
		args = append(args, filter.Limit, filter.Offset)
		orderLimit = fmt.Sprintf("ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	q := fmt.Sprintf(`
		SELECT id, chat_id, sender_id, date, text, reply_to_msg_id, forward_from_id,
		       edit_date, media_type, media_id, media_path, album_id, topic_id,
		       is_pinned, is_outgoing
		FROM messages %s %s`, where, orderLimit)

	rows, err := a.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	var out []model.Message
	for rows.Next() {
		var m model.Message
		var mediaType *string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Date, &m.Text, &m.ReplyToMsgID,
			&m.ForwardFromID, &m.EditDate, &mediaType, &m.MediaID, &m.MediaPath, &m.AlbumID,
			&m.TopicID, &m.IsPinned, &m.IsOutgoing); err != nil {
			return nil, err
		}
		if mediaType != nil {
			mt := model.MediaType(*mediaType)
			m.MediaType = &mt
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) FindMessageByDate(ctx context.Context, chatID int64, dateUTC time.Time) (*model.Message, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT id, chat_id, sender_id, date, text, reply_to_msg_id, forward_from_id,
		       edit_date, media_type, media_id, media_path, album_id, topic_id,
		       is_pinned, is_outgoing
		FROM messages WHERE chat_id = $1 AND date >= $2
		ORDER BY date ASC, id ASC LIMIT 1`, chatID, dateUTC)

	var m model.Message
	var mediaType *string
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Date, &m.Text, &m.ReplyToMsgID,
		&m.ForwardFromID, &m.EditDate, &mediaType, &m.MediaID, &m.MediaPath, &m.AlbumID,
		&m.TopicID, &m.IsPinned, &m.IsOutgoing); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if mediaType != nil {
		mt := model.MediaType(*mediaType)
		m.MediaType = &mt
	}
	return &m, nil
}

func (a *PostgresAdapter) GetPinned(ctx context.Context, chatID int64) ([]model.Message, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, chat_id, sender_id, date, text, reply_to_msg_id, forward_from_id,
		       edit_date, media_type, media_id, media_path, album_id, topic_id,
		       is_pinned, is_outgoing
		FROM messages WHERE chat_id = $1 AND is_pinned = TRUE
		ORDER BY date DESC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (a *PostgresAdapter) GetFolders(ctx context.Context) ([]model.Folder, error) {
	rows, err := a.pool.Query(ctx, `
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

func (a *PostgresAdapter) GetTopics(ctx context.Context, chatID int64) ([]model.Topic, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT topic_id, title FROM topics WHERE chat_id = $1 ORDER BY topic_id`, chatID)
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

func (a *PostgresAdapter) GetChatStats(ctx context.Context, chatID int64) (*model.ChatStats, error) {
	var s model.ChatStats
	s.ChatID = chatID
	err := a.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(media_id), MIN(date), MAX(date)
		FROM messages WHERE chat_id = $1`, chatID).
		Scan(&s.MessageCount, &s.MediaCount, &s.FirstDate, &s.LastDate)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *PostgresAdapter) GetCachedStatistics(ctx context.Context) (*model.Statistics, error) {
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

func (a *PostgresAdapter) RefreshStatistics(ctx context.Context) (*model.Statistics, error) {
	var s model.Statistics
	err := a.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM chats),
		       (SELECT COUNT(*) FROM messages),
		       (SELECT COUNT(*) FROM media)`).
		Scan(&s.TotalChats, &s.TotalMessages, &s.TotalMedia)
	if err != nil {
		return nil, err
	}
	s.ComputedAt = time.Now().UTC()

	buf, err := json.Marshal(s)
	if err == nil {
		_ = a.SetMetadata(ctx, "cached_statistics", string(buf))
	}
	return &s, nil
}

func (a *PostgresAdapter) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := a.pool.QueryRow(ctx, `SELECT value FROM metadata WHERE key = $1`, key).Scan(&v)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (a *PostgresAdapter) SetMetadata(ctx context.Context, key, value string) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (a *PostgresAdapter) IterMessagesForExport(ctx context.Context, chatID int64) (func() (ExportRow, bool), error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, chat_id, sender_id, date, text, reply_to_msg_id, forward_from_id,
		       edit_date, media_type, media_id, media_path, album_id, topic_id,
		       is_pinned, is_outgoing
		FROM messages WHERE chat_id = $1 ORDER BY date ASC, id ASC`, chatID)
	if err != nil {
		return nil, err
	}

	return func() (ExportRow, bool) {
		if !rows.Next() {
			rows.Close()
			return ExportRow{}, false
		}
		var m model.Message
		var mediaType *string
		err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Date, &m.Text, &m.ReplyToMsgID,
			&m.ForwardFromID, &m.EditDate, &mediaType, &m.MediaID, &m.MediaPath, &m.AlbumID,
			&m.TopicID, &m.IsPinned, &m.IsOutgoing)
		if err != nil {
			return ExportRow{Err: err}, true
		}
		if mediaType != nil {
			mt := model.MediaType(*mediaType)
			m.MediaType = &mt
		}
		return ExportRow{Message: m}, true
	}, nil
}

func (a *PostgresAdapter) ApplyEdit(ctx context.Context, chatID, messageID int64, newText string, editDate time.Time) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE messages SET text = $1, edit_date = $2
		WHERE chat_id = $3 AND id = $4`, newText, editDate, chatID, messageID)
	return err
}

func (a *PostgresAdapter) ApplyDelete(ctx context.Context, chatID, messageID int64) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1 AND id = $2`, chatID, messageID)
	return err
}

func scanViewer(row pgx.Row) (*model.ViewerAccount, error) {
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

const viewerCols = `id, username, password_hash, salt, allowed_chat_ids, is_active, created_by, created_at, updated_at, last_login_at`

func (a *PostgresAdapter) GetViewerAccount(ctx context.Context, id int) (*model.ViewerAccount, error) {
	v, err := scanViewer(a.pool.QueryRow(ctx, "SELECT "+viewerCols+" FROM viewer_accounts WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (a *PostgresAdapter) GetViewerByUsername(ctx context.Context, username string) (*model.ViewerAccount, error) {
	v, err := scanViewer(a.pool.QueryRow(ctx, "SELECT "+viewerCols+" FROM viewer_accounts WHERE username = $1", username))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (a *PostgresAdapter) ListViewerAccounts(ctx context.Context) ([]model.ViewerAccount, error) {
	rows, err := a.pool.Query(ctx, "SELECT "+viewerCols+" FROM viewer_accounts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ViewerAccount
	for rows.Next() {
		v, err := scanViewer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func allowedChatIDsJSON(v *model.ViewerAccount) (any, error) {
	if v.AllowedChatIDs == nil {
		return nil, nil
	}
	buf, err := json.Marshal(*v.AllowedChatIDs)
	return string(buf), err
}

func (a *PostgresAdapter) CreateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	allowed, err := allowedChatIDsJSON(v)
	if err != nil {
		return err
	}
	return a.pool.QueryRow(ctx, `
		INSERT INTO viewer_accounts (username, password_hash, salt, allowed_chat_ids, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		v.Username, v.PasswordHash, v.Salt, allowed, v.IsActive, v.CreatedBy,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

func (a *PostgresAdapter) UpdateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	allowed, err := allowedChatIDsJSON(v)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
		UPDATE viewer_accounts
		SET username = $1, password_hash = $2, salt = $3, allowed_chat_ids = $4,
		    is_active = $5, updated_at = NOW()
		WHERE id = $6`,
		v.Username, v.PasswordHash, v.Salt, allowed, v.IsActive, v.ID)
	return err
}

func (a *PostgresAdapter) DeleteViewerAccount(ctx context.Context, id int) error {
	_, err := a.pool.Exec(ctx, "DELETE FROM viewer_accounts WHERE id = $1", id)
	return err
}

func (a *PostgresAdapter) TouchViewerLogin(ctx context.Context, username string, at time.Time) error {
	_, err := a.pool.Exec(ctx, "UPDATE viewer_accounts SET last_login_at = $1 WHERE username = $2", at, username)
	return err
}

func (a *PostgresAdapter) CreateAuditLog(ctx context.Context, e model.AuditEntry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_log (username, role, action, endpoint, chat_id, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Username, string(e.Role), e.Action, e.Endpoint, e.ChatID, e.IPAddress, e.UserAgent, e.Timestamp)
	return err
}

func (a *PostgresAdapter) GetAuditLogs(ctx context.Context, username string, limit, offset int) ([]model.AuditEntry, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	if username != "" {
		args = append(args, username)
		where += fmt.Sprintf(" AND username = $%d", len(args))
	}

	var total int64
	if err := a.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`
		SELECT id, username, role, action, endpoint, chat_id, ip_address, user_agent, timestamp
		FROM audit_log %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := a.pool.Query(ctx, q, args...)
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

func (a *PostgresAdapter) GetPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	rows, err := a.pool.Query(ctx, `
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

func (a *PostgresAdapter) UpsertPushSubscription(ctx context.Context, s model.PushSubscription) error {
	var allowed any
	if s.AllowedChatIDs != nil {
		buf, err := json.Marshal(*s.AllowedChatIDs)
		if err != nil {
			return err
		}
		allowed = string(buf)
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO push_subscriptions (endpoint, p256dh, auth_secret, username, allowed_chat_ids, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (endpoint) DO UPDATE SET
		  p256dh = excluded.p256dh, auth_secret = excluded.auth_secret,
		  username = excluded.username, allowed_chat_ids = excluded.allowed_chat_ids,
		  user_agent = excluded.user_agent`,
		s.Endpoint, s.P256dh, s.AuthSecret, s.Username, allowed, s.UserAgent)
	return err
}

func (a *PostgresAdapter) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := a.pool.Exec(ctx, "DELETE FROM push_subscriptions WHERE endpoint = $1", endpoint)
	return err
}
