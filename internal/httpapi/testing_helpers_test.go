package httpapi

import (
	"context"
	"time"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/config"
	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/storage"
	"github.com/tgarchive/viewer/internal/wsfanout"
)

// fakeStore is an in-memory storage.Adapter good enough to drive the
// handler tests without a real database. Embedding the interface means
// any method a given test doesn't care about panics loudly if called,
// rather than silently doing the wrong thing.
type fakeStore struct {
	storage.Adapter

	chats   map[int64]*model.Chat
	viewers map[int]*model.ViewerAccount
	byUser  map[string]*model.ViewerAccount
	audit   []model.AuditEntry
	stats   *model.Statistics
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:   make(map[int64]*model.Chat),
		viewers: make(map[int]*model.ViewerAccount),
		byUser:  make(map[string]*model.ViewerAccount),
		stats:   &model.Statistics{ComputedAt: time.Now().UTC()},
		nextID:  1,
	}
}

func (f *fakeStore) GetChat(ctx context.Context, chatID int64) (*model.Chat, error) {
	return f.chats[chatID], nil
}

func (f *fakeStore) ListChats(ctx context.Context, filter storage.ChatFilter, limit, offset int) ([]model.Chat, error) {
	var out []model.Chat
	for _, c := range f.chats {
		if filter.Scope != nil {
			found := false
			for _, id := range *filter.Scope {
				if id == c.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) CountChats(ctx context.Context, filter storage.ChatFilter) (int64, error) {
	chats, _ := f.ListChats(ctx, filter, 0, 0)
	return int64(len(chats)), nil
}

func (f *fakeStore) GetChatStats(ctx context.Context, chatID int64) (*model.ChatStats, error) {
	return &model.ChatStats{ChatID: chatID}, nil
}

func (f *fakeStore) GetCachedStatistics(ctx context.Context) (*model.Statistics, error) {
	return f.stats, nil
}

func (f *fakeStore) RefreshStatistics(ctx context.Context) (*model.Statistics, error) {
	return f.stats, nil
}

func (f *fakeStore) GetViewerAccount(ctx context.Context, id int) (*model.ViewerAccount, error) {
	return f.viewers[id], nil
}

func (f *fakeStore) GetViewerByUsername(ctx context.Context, username string) (*model.ViewerAccount, error) {
	return f.byUser[username], nil
}

func (f *fakeStore) ListViewerAccounts(ctx context.Context) ([]model.ViewerAccount, error) {
	var out []model.ViewerAccount
	for _, v := range f.viewers {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeStore) CreateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	v.ID = f.nextID
	f.nextID++
	f.viewers[v.ID] = v
	f.byUser[v.Username] = v
	return nil
}

func (f *fakeStore) UpdateViewerAccount(ctx context.Context, v *model.ViewerAccount) error {
	f.viewers[v.ID] = v
	f.byUser[v.Username] = v
	return nil
}

func (f *fakeStore) DeleteViewerAccount(ctx context.Context, id int) error {
	if v, ok := f.viewers[id]; ok {
		delete(f.byUser, v.Username)
		delete(f.viewers, id)
	}
	return nil
}

func (f *fakeStore) TouchViewerLogin(ctx context.Context, username string, at time.Time) error {
	return nil
}

func (f *fakeStore) CreateAuditLog(ctx context.Context, entry model.AuditEntry) error {
	f.audit = append(f.audit, entry)
	return nil
}

func (f *fakeStore) GetAuditLogs(ctx context.Context, username string, limit, offset int) ([]model.AuditEntry, int64, error) {
	return f.audit, int64(len(f.audit)), nil
}

func (f *fakeStore) GetPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	return nil, nil
}

func (f *fakeStore) UpsertPushSubscription(ctx context.Context, sub model.PushSubscription) error {
	return nil
}

func (f *fakeStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return nil
}

const testMasterUsername = "master"
const testMasterPassword = "masterpw123"

// newTestServer builds a Server wired to a fakeStore and fresh in-memory
// auth machinery, with testMasterPassword already hashed into cfg.
// Push, Media and Bridge are left unset: the push-config and ops handlers
// are nil-safe, but ServeMedia is not, so tests exercising media set up
// their own Server.
func newTestServer() (*Server, *fakeStore) {
	salt, err := auth.GenerateSalt()
	if err != nil {
		panic(err)
	}
	hash, err := auth.HashPassword(testMasterPassword, salt)
	if err != nil {
		panic(err)
	}

	cfg := &config.Config{
		MasterUsername:     testMasterUsername,
		MasterPasswordHash: hash,
		MasterSalt:         salt,
		AuthSessionSeconds: 3600,
		LoginRateLimit:     100,
		LoginRateWindowSec: 60,
		MaxSessionsPerUser: 5,
		AllowedOrigins:     map[string]bool{"*": true},
		ViewerTimezone:     "UTC",
		PushNotifications:  config.PushOff,
	}

	store := newFakeStore()
	sessions := auth.NewSessionStore(time.Duration(cfg.AuthSessionSeconds)*time.Second, cfg.MaxSessionsPerUser)
	rateLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimit, time.Duration(cfg.LoginRateWindowSec)*time.Second)
	login := &auth.LoginService{
		Store:       store,
		Sessions:    sessions,
		RateLimiter: rateLimiter,
		Master: auth.MasterCredentials{
			Username:     cfg.MasterUsername,
			PasswordHash: cfg.MasterPasswordHash,
			Salt:         cfg.MasterSalt,
		},
	}

	return &Server{
		Cfg:      cfg,
		Store:    store,
		Sessions: sessions,
		Login:    login,
		Hub:      wsfanout.NewHub(),
	}, store
}
