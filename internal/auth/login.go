package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/apperr"
	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/scope"
	"github.com/tgarchive/viewer/internal/storage"
)

// MasterCredentials holds the single configured master operator account.
// PasswordHash/Salt follow the same PBKDF2 scheme as viewer accounts.
type MasterCredentials struct {
	Username     string
	PasswordHash string
	Salt         string
}

// LoginService ties the session store, rate limiter, storage adapter and
// scope resolver into the login/logout sequence described in spec.md
// §4.2: enforce the rate limit for the caller-supplied IP, check viewer
// accounts before the master account, create a session on success, and
// audit every attempt that gets past the rate limit.
type LoginService struct {
	Store       storage.Adapter
	Sessions    *SessionStore
	RateLimiter *LoginRateLimiter
	Master      MasterCredentials
	MasterScope *[]int64 // process-level master display filter, nil = unrestricted
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Session *Session
	Account *model.ViewerAccount // nil when the master account logged in
}

// Login authenticates username/password from ip, returning a new session
// on success. Successful and failed credential checks are recorded as
// audit log entries; an attempt rejected by the rate limiter is not.
func (l *LoginService) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	if !l.RateLimiter.Allow(ip) {
		return nil, apperr.RateLimitedf("too many login attempts, try again later")
	}

	if viewer, err := l.Store.GetViewerByUsername(ctx, username); err == nil && viewer != nil {
		if viewer.IsActive && VerifyPassword(password, viewer.Salt, viewer.PasswordHash) {
			return l.succeed(ctx, username, model.RoleViewer, viewer, ip, userAgent)
		}
		l.audit(ctx, username, model.RoleViewer, "login_failed", ip, userAgent)
		return nil, apperr.Unauthenticatedf("invalid username or password")
	}

	if ConstantTimeEqual(username, l.Master.Username) &&
		VerifyPassword(password, l.Master.Salt, l.Master.PasswordHash) {
		return l.succeed(ctx, username, model.RoleMaster, nil, ip, userAgent)
	}

	l.audit(ctx, username, model.RoleViewer, "login_failed", ip, userAgent)
	return nil, apperr.Unauthenticatedf("invalid username or password")
}

func (l *LoginService) succeed(ctx context.Context, username string, role model.Role, viewer *model.ViewerAccount, ip, userAgent string) (*LoginResult, error) {
	var allowed *[]int64
	if viewer != nil {
		allowed = viewer.AllowedChatIDs
	}
	effective := scope.Resolve(scope.Caller{IsMaster: role == model.RoleMaster, AllowedChatIDs: allowed}, l.MasterScope)

	sess, err := l.Sessions.Create(username, role, effective)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := l.Store.TouchViewerLogin(ctx, username, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to record last_login_at")
	}

	l.audit(ctx, username, role, "login_success", ip, userAgent)
	return &LoginResult{Session: sess, Account: viewer}, nil
}

// Logout invalidates token and records a logout audit entry.
func (l *LoginService) Logout(ctx context.Context, token, ip, userAgent string) {
	sess, ok := l.Sessions.Validate(token)
	if !ok {
		return
	}
	l.Sessions.Delete(token)
	l.audit(ctx, sess.Username, sess.Role, "logout", ip, userAgent)
}

func (l *LoginService) audit(ctx context.Context, username string, role model.Role, action, ip, userAgent string) {
	entry := model.AuditEntry{
		Username:  username,
		Role:      role,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	if err := l.Store.CreateAuditLog(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to write audit log entry")
	}
}
