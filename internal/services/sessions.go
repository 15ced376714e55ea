package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Identity is the caller resolved for one request.
type Identity struct {
	User      *models.User
	SessionID string
}

// IsAdmin reports whether the caller holds admin privileges.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.User != nil && i.User.IsAdmin
}

// UserID returns the caller's user ID, or zero for a nil identity.
func (i *Identity) UserID() uint {
	if i == nil || i.User == nil {
		return 0
	}
	return i.User.ID
}

type identityKey struct{}

// WithIdentity attaches the identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// ClientInfo is the network origin of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// SessionService logs users in and out and resolves the identity behind a
// session token.
type SessionService struct {
	creds  *CredentialService
	audit  *AuditService
	store  SessionStore
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(cfg *config.Config, creds *CredentialService, audit *AuditService, store SessionStore) *SessionService {
	return &SessionService{
		creds:  creds,
		audit:  audit,
		store:  store,
		secret: []byte(cfg.Session.Secret),
		issuer: cfg.Session.Issuer,
		ttl:    cfg.SessionTTL(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the backing session store (used by health checks).
func (s *SessionService) Store() SessionStore {
	return s.store
}

// TTL is the lifetime of newly created sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Login verifies credentials and opens a session. Every call records exactly
// one login attempt, successful or not.
func (s *SessionService) Login(ctx context.Context, login, password string, client ClientInfo) (*LoginResult, error) {
	attempt := LoginAttempt{Username: login, Client: client, At: s.now()}

	user, err := s.creds.Authenticate(ctx, login, password)
	attempt.User = user
	if err != nil {
		attempt.Reason = loginFailureReason(err)
		s.audit.RecordLogin(ctx, attempt)
		return nil, err
	}

	result, err := s.open(ctx, user, attempt.At)
	if err != nil {
		attempt.Reason = models.FailureInternalError
		s.audit.RecordLogin(ctx, attempt)
		return nil, err
	}

	attempt.Success = true
	s.audit.RecordLogin(ctx, attempt)

	log.WithFields(log.Fields{"user_id": user.ID, "ip": client.IP}).Info("user logged in")
	return result, nil
}

func loginFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return models.FailureUserNotFound
	case errors.Is(err, ErrBadPassword):
		return models.FailureBadPassword
	case errors.Is(err, ErrAccountInactive):
		return models.FailureAccountInactive
	default:
		return models.FailureInternalError
	}
}

// open creates the session, signs its token and stamps last_login. A
// partially opened session is removed again.
func (s *SessionService) open(ctx context.Context, user *models.User, at time.Time) (*LoginResult, error) {
	rec := SessionRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: at,
		ExpiresAt: at.Add(s.ttl),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.signToken(rec)
	if err == nil {
		if err = s.creds.TouchLastLogin(ctx, user); err != nil {
			err = fmt.Errorf("update last login: %w", err)
		}
	}
	if err != nil {
		_ = s.store.Delete(ctx, rec.ID)
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// Logout destroys the session. Unknown or already-removed sessions are fine.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}

// Resolve turns a session token into the calling identity. It returns
// ErrUnauthorized when the token is missing, malformed, expired, revoked,
// or bound to an account that no longer exists or is inactive.
func (s *SessionService) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	sessionID, err := s.parseToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	user, err := s.creds.GetUser(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return &Identity{User: user, SessionID: rec.ID}, nil
}

// RequireAuthenticated fails with ErrUnauthorized when no identity resolved.
func RequireAuthenticated(id *Identity) error {
	if id == nil || id.User == nil {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin fails with ErrUnauthorized for anonymous callers and
// ErrForbidden for authenticated non-admins.
func RequireAdmin(id *Identity) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if !id.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

type sessionClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

func (s *SessionService) signToken(rec SessionRecord) (string, error) {
	claims := sessionClaims{
		UserID: rec.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(rec.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *SessionService) parseToken(raw string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidSessionToken
	}
	if claims.ID == "" {
		return "", ErrInvalidSessionToken
	}
	return claims.ID, nil
}
