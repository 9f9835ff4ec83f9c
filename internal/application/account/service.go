package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/id"
)

// MaxCustomTokenTTL bounds the lifetime a caller may request for a custom token.
const MaxCustomTokenTTL = 30 * 24 * time.Hour

var (
	ErrIncorrectAccount = fmt.Errorf("incorrect account information: %w", domain.ErrUnauthorized)
	ErrEmailRegistered  = fmt.Errorf("email registered: %w", domain.ErrConflict)
	ErrInvalidRefresh   = fmt.Errorf("invalid refresh token: %w", domain.ErrForbidden)
	ErrNoFile           = fmt.Errorf("no files found: %w", domain.ErrBadRequest)
	ErrNotOwner         = fmt.Errorf("account does not belong to caller: %w", domain.ErrForbidden)
)

// AuthResult is a user together with a freshly issued token pair.
type AuthResult struct {
	User         *domain.User
	Token        string
	RefreshToken string
}

// Image is an uploaded profile picture. A name containing "avatar" replaces
// the avatar, anything else the background.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Service interface {
	SignIn(ctx context.Context, idToken string) (*AuthResult, error)
	SignUp(ctx context.Context, userName, idToken string) (*AuthResult, error)
	Profile(ctx context.Context, callerUID, userID string) (*AuthResult, error)
	UpdateInformation(ctx context.Context, callerUID string, req domain.UpdateInformationRequest) (*domain.User, error)
	UpdateImage(ctx context.Context, callerUID, userID string, img Image) (*domain.User, bool, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, string, error)
	AccountLink(ctx context.Context, callerUID, userID string, provider domain.ProviderInfo) (*domain.User, error)
	AccountUnlink(ctx context.Context, callerUID, userID, providerID string) (*domain.User, error)
	DeleteAccount(ctx context.Context, callerUID, idToken string) error
	CheckAccount(ctx context.Context, email, providerID string) (bool, error)
	CustomToken(ctx context.Context, ttl time.Duration) (string, error)
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUID(ctx context.Context, uid string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type identityProvider interface {
	GetUserFromToken(ctx context.Context, idToken string) (*domain.IdentityUser, error)
	DeleteAccount(ctx context.Context, uid string) error
}

type tokenIssuer interface {
	CreateTokens(uid string) (string, string, error)
	VerifyRefreshToken(token string) (string, error)
	CreateCustomToken(ttl time.Duration) (string, error)
}

type blobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type ServiceDeps struct {
	UserRepo    userStore
	Identity    identityProvider
	Tokens      tokenIssuer
	Blobs       blobStore
	ImageURLTTL time.Duration
	Now         func() time.Time
}

type service struct {
	users       userStore
	identity    identityProvider
	tokens      tokenIssuer
	blobs       blobStore
	imageURLTTL time.Duration
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:       deps.UserRepo,
		identity:    deps.Identity,
		tokens:      deps.Tokens,
		blobs:       deps.Blobs,
		imageURLTTL: deps.ImageURLTTL,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) SignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	idu, err := s.identity.GetUserFromToken(ctx, idToken)
	if err != nil {
		return nil, ErrIncorrectAccount
	}

	u, err := s.users.GetByUID(ctx, idu.UID)
	switch {
	case err == nil:
		if u, err = s.syncFromIdentity(ctx, u, idu); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		u = newUser(idu, "", s.now().UTC())
		if err := s.users.Put(ctx, u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		slog.Info("user created on sign-in", "user_id", u.UserID)
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return s.withTokens(ctx, u)
}

func (s *service) SignUp(ctx context.Context, userName, idToken string) (*AuthResult, error) {
	idu, err := s.identity.GetUserFromToken(ctx, idToken)
	if err != nil {
		return nil, ErrIncorrectAccount
	}

	if idu.Email != "" {
		_, err := s.users.GetByEmail(ctx, idu.Email)
		if err == nil {
			return nil, ErrEmailRegistered
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
	}
	if _, err := s.users.GetByUID(ctx, idu.UID); err == nil {
		return nil, ErrEmailRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	u := newUser(idu, userName, s.now().UTC())
	if err := s.users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user signed up", "user_id", u.UserID, "provider", idu.FirstProvider())
	return s.withTokens(ctx, u)
}

func (s *service) RefreshToken(_ context.Context, refreshToken string) (string, string, error) {
	uid, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil || uid == "" {
		return "", "", ErrInvalidRefresh
	}
	token, refresh, err := s.tokens.CreateTokens(uid)
	if err != nil {
		return "", "", err
	}
	return token, refresh, nil
}

func (s *service) CustomToken(_ context.Context, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxCustomTokenTTL {
		return "", fmt.Errorf("expiresIn must be between 1s and %s: %w", MaxCustomTokenTTL, domain.ErrBadRequest)
	}
	return s.tokens.CreateCustomToken(ttl)
}

// syncFromIdentity copies provider-side changes onto the stored user.
func (s *service) syncFromIdentity(ctx context.Context, u *domain.User, idu *domain.IdentityUser) (*domain.User, error) {
	updates := map[string]interface{}{}
	if !sameProviders(u.ProviderData, idu.Providers) {
		updates[domain.FieldProviderData] = providersOrEmpty(idu.Providers)
	}
	if idu.EmailVerified && !u.EmailVerified {
		updates[domain.FieldEmailVerified] = true
	}
	if u.PhotoURL == nil {
		if photo := idu.GooglePhoto(); photo != "" {
			updates[domain.FieldPhotoURL] = photo
		}
	}
	if len(updates) == 0 {
		return u, nil
	}
	updated, err := s.users.Update(ctx, u.UserID, updates)
	if err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}
	return updated, nil
}

func (s *service) withTokens(ctx context.Context, u *domain.User) (*AuthResult, error) {
	token, refresh, err := s.tokens.CreateTokens(u.UID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: s.present(ctx, u), Token: token, RefreshToken: refresh}, nil
}

// owned loads userID and checks it belongs to the caller.
func (s *service) owned(ctx context.Context, callerUID, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.UID != callerUID {
		return nil, ErrNotOwner
	}
	return u, nil
}

func newUser(idu *domain.IdentityUser, userName string, now time.Time) *domain.User {
	name := idu.DisplayName
	if name == "" {
		name = userName
	}
	u := &domain.User{
		UserID:        id.New(),
		UID:           idu.UID,
		Email:         idu.Email,
		UserName:      name,
		EmailVerified: idu.EmailVerified,
		ProviderData:  providersOrEmpty(idu.Providers),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	switch idu.FirstProvider() {
	case domain.ProviderFacebook:
		// Facebook does not report verification; the address came from Facebook itself.
		u.EmailVerified = true
	case domain.ProviderGoogle:
		if idu.PhotoURL != "" {
			photo := idu.PhotoURL
			u.PhotoURL = &photo
		}
	}
	return u
}

func sameProviders(a, b []domain.ProviderInfo) bool {
	return slices.EqualFunc(a, b, func(x, y domain.ProviderInfo) bool {
		return x.ProviderID == y.ProviderID && x.UID == y.UID && x.Email == y.Email
	})
}

func providersOrEmpty(p []domain.ProviderInfo) []domain.ProviderInfo {
	if p == nil {
		return []domain.ProviderInfo{}
	}
	return p
}
