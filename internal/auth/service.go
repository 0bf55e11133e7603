// Package auth implements the credential and session manager: it issues,
// validates, rotates and revokes the token pairs that establish a
// request's acting identity. Handlers depend on this package, never on
// the repositories directly.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/repository"
	"github.com/automlhq/auth-service/internal/store"
	"github.com/automlhq/auth-service/internal/utils"
)

// UserStore is the slice of the identity store the service needs.
// Implemented by repository.UserRepo; faked in tests.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmailHash(ctx context.Context, emailHash string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	Deactivate(ctx context.Context) error
	Delete(ctx context.Context) error
}

// CredentialStore persists refresh tokens and sessions as pairs.
// Implemented by repository.CredentialRepo.
type CredentialStore interface {
	Issue(ctx context.Context, p repository.IssuedPair) error
	LookupRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, p repository.IssuedPair) error
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context) error
	SessionByJTI(ctx context.Context, jti string) (model.UserSession, error)
	RevokeSession(ctx context.Context, jti string) error
}

// SessionCache is an optional lookaside for validated sessions. A nil
// cache is valid and simply means every validation hits the database.
type SessionCache interface {
	Get(ctx context.Context, jti string) (model.UserSession, bool)
	Set(ctx context.Context, s model.UserSession)
	Invalidate(ctx context.Context, jti string)
}

// Tokens is the issued credential pair returned to clients. Refresh.Raw
// is handed out exactly once and never persisted.
type Tokens struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// ClientMeta is the audit metadata recorded on each session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Service wires the identity and credential stores to the token
// collaborators (bcrypt, HS256 JWT, random refresh secrets).
type Service struct {
	users      UserStore
	creds      CredentialStore
	cache      SessionCache
	log        *zap.Logger
	jwtSecret  string
	accessTTL  int // minutes
	refreshTTL int // days
	bcryptCost int
	now        func() time.Time
}

// NewService constructs the credential/session manager. cache may be nil.
func NewService(users UserStore, creds CredentialStore, cache SessionCache, log *zap.Logger,
	jwtSecret string, accessTTLMin, refreshTTLDays, bcryptCost int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:      users,
		creds:      creds,
		cache:      cache,
		log:        log,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTLMin,
		refreshTTL: refreshTTLDays,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user account and logs it in immediately, returning
// the first credential pair. Two concurrent registrations of the same
// email resolve to one success and one ErrDuplicateEmail via the unique
// key on email_hash.
func (s *Service) Register(ctx context.Context, email, password, name string, meta ClientMeta) (model.User, Tokens, error) {
	if err := utils.ValidatePassword(password); err != nil {
		return model.User{}, Tokens{}, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:           uuid.New(),
		Email:        utils.NormalizeEmail(email),
		EmailHash:    utils.HashEmail(email),
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, Tokens{}, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID.String()))

	// The fresh account is the acting identity for its own first issuance.
	tokens, err := s.issue(store.WithActor(ctx, u.ID), meta)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	return u, tokens, nil
}

// Login verifies credentials and issues a new pair. Unknown email and
// wrong password both come back as ErrInvalidCredentials; a matching but
// deactivated account is ErrAccountInactive.
func (s *Service) Login(ctx context.Context, email, password string, meta ClientMeta) (model.User, Tokens, error) {
	u, err := s.users.GetByEmailHash(ctx, utils.HashEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, Tokens{}, ErrInvalidCredentials
		}
		return model.User{}, Tokens{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.log.Warn("invalid password attempt", zap.String("user_id", u.ID.String()))
		return model.User{}, Tokens{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		s.log.Warn("login attempt on inactive account", zap.String("user_id", u.ID.String()))
		return model.User{}, Tokens{}, ErrAccountInactive
	}

	tokens, err := s.issue(store.WithActor(ctx, u.ID), meta)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	s.log.Info("user logged in", zap.String("user_id", u.ID.String()))
	return u, tokens, nil
}

// Refresh exchanges a refresh secret for a new credential pair, revoking
// the old token in the same transaction (rotation). On any failure no
// state changes. Replaying a rotated secret fails with ErrTokenRevoked —
// of two concurrent exchanges of the same secret, exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, rawSecret string, meta ClientMeta) (model.User, Tokens, error) {
	oldHash := utils.HashRefreshRaw(rawSecret)
	t, err := s.creds.LookupRefresh(ctx, oldHash)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	if t.IsRevoked {
		s.log.Warn("replay of revoked refresh token", zap.String("user_id", t.UserID.String()))
		return model.User{}, Tokens{}, repository.ErrTokenRevoked
	}
	if t.Expired(s.now()) {
		return model.User{}, Tokens{}, repository.ErrTokenExpired
	}

	// Possession of a live refresh secret resolves the acting identity.
	ctx = store.WithActor(ctx, t.UserID)

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return model.User{}, Tokens{}, err
	}
	if !u.IsActive {
		return model.User{}, Tokens{}, ErrAccountInactive
	}

	access, err := utils.NewAccessToken(s.jwtSecret, u.ID, s.accessTTL)
	if err != nil {
		return model.User{}, Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return model.User{}, Tokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.creds.Rotate(ctx, oldHash, s.pair(access, refresh, meta)); err != nil {
		return model.User{}, Tokens{}, err
	}
	s.log.Info("refresh token rotated", zap.String("user_id", u.ID.String()))
	return u, Tokens{Access: access, Refresh: refresh}, nil
}

// Logout revokes the refresh token matching the presented secret. The
// secret itself names the session being ended, so no access token is
// required; a second logout with the same secret is a no-op.
func (s *Service) Logout(ctx context.Context, rawSecret string) error {
	hash := utils.HashRefreshRaw(rawSecret)
	t, err := s.creds.LookupRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil // already gone; logout is idempotent
		}
		return err
	}
	return s.creds.RevokeRefresh(store.WithActor(ctx, t.UserID), hash)
}

// LogoutAll revokes every live token and session of the acting user.
func (s *Service) LogoutAll(ctx context.Context) error {
	return s.creds.RevokeAll(ctx)
}

// RevokeSession marks the acting user's session with the given jti
// revoked and drops it from the cache. Idempotent.
func (s *Service) RevokeSession(ctx context.Context, jti string) error {
	if err := s.creds.RevokeSession(ctx, jti); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, jti)
	}
	return nil
}

// ValidateAccessToken resolves a presented access token to its user.
// The chain is: verify signature and expiry, bind the claimed subject as
// the acting identity, then confirm the jti still names a live session
// in that identity's scope. Session state is checked lazily: a row past
// expires_at is ErrSessionExpired even though it is still present.
func (s *Service) ValidateAccessToken(ctx context.Context, rawToken string) (model.User, utils.AccessClaims, error) {
	claims, err := utils.ParseAccessToken(s.jwtSecret, rawToken)
	if err != nil {
		return model.User{}, utils.AccessClaims{}, ErrInvalidCredentials
	}
	ctx = store.WithActor(ctx, claims.UserID)

	sess, ok := s.cachedSession(ctx, claims.JTI)
	if !ok {
		sess, err = s.creds.SessionByJTI(ctx, claims.JTI)
		if err != nil {
			return model.User{}, utils.AccessClaims{}, err
		}
	}
	if sess.IsRevoked {
		return model.User{}, utils.AccessClaims{}, repository.ErrSessionRevoked
	}
	if sess.Expired(s.now()) {
		return model.User{}, utils.AccessClaims{}, repository.ErrSessionExpired
	}
	if s.cache != nil && !ok {
		s.cache.Set(ctx, sess)
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return model.User{}, utils.AccessClaims{}, err
	}
	if !u.IsActive {
		return model.User{}, utils.AccessClaims{}, ErrAccountInactive
	}
	return u, claims, nil
}

// Deactivate clears the acting user's is_active flag and revokes all of
// their live credentials.
func (s *Service) Deactivate(ctx context.Context) error {
	if err := s.users.Deactivate(ctx); err != nil {
		return err
	}
	return s.creds.RevokeAll(ctx)
}

// DeleteAccount removes the acting user's row; the schema cascades to
// tokens, sessions and rate-limit windows. Self-service only – the
// owner predicate makes deleting anyone else impossible.
func (s *Service) DeleteAccount(ctx context.Context) error {
	return s.users.Delete(ctx)
}

// issue creates and stores a fresh credential pair for the acting user
// already bound to ctx.
func (s *Service) issue(ctx context.Context, meta ClientMeta) (Tokens, error) {
	access, err := utils.NewAccessToken(s.jwtSecret, mustActor(ctx), s.accessTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.creds.Issue(ctx, s.pair(access, refresh, meta)); err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

func (s *Service) pair(access utils.AccessToken, refresh utils.RefreshToken, meta ClientMeta) repository.IssuedPair {
	return repository.IssuedPair{
		TokenID:    uuid.New(),
		TokenHash:  utils.HashRefreshRaw(refresh.Raw),
		TokenExp:   refresh.Exp,
		SessionID:  uuid.New(),
		JTI:        access.JTI,
		SessionExp: access.Exp,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
}

func (s *Service) cachedSession(ctx context.Context, jti string) (model.UserSession, bool) {
	if s.cache == nil {
		return model.UserSession{}, false
	}
	return s.cache.Get(ctx, jti)
}

// mustActor reads the actor bound by the caller. issue() is only ever
// called after identity resolution, so a missing actor is a bug.
func mustActor(ctx context.Context) uuid.UUID {
	id, ok := store.ActorFrom(ctx)
	if !ok {
		panic("auth: issue called without acting identity")
	}
	return id
}
