package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func userOrNil(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	return userOrNil(m.Called(ctx, userID))
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return userOrNil(m.Called(ctx, email))
}
func (m *mockUserStore) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	return userOrNil(m.Called(ctx, uid))
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	return userOrNil(m.Called(ctx, userID, updates))
}
func (m *mockUserStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockIdentity struct{ mock.Mock }

func (m *mockIdentity) GetUserFromToken(ctx context.Context, idToken string) (*domain.IdentityUser, error) {
	args := m.Called(ctx, idToken)
	if u, _ := args.Get(0).(*domain.IdentityUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIdentity) DeleteAccount(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) CreateTokens(uid string) (string, string, error) {
	args := m.Called(uid)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *mockTokens) VerifyRefreshToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
func (m *mockTokens) CreateCustomToken(ttl time.Duration) (string, error) {
	args := m.Called(ttl)
	return args.String(0), args.Error(1)
}

type mockBlobs struct{ mock.Mock }

func (m *mockBlobs) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	return m.Called(ctx, key, r, contentType).Error(0)
}
func (m *mockBlobs) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockBlobs) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- helpers ---

var fixedNow = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

type fixture struct {
	users    *mockUserStore
	identity *mockIdentity
	tokens   *mockTokens
	blobs    *mockBlobs
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(mockUserStore),
		identity: new(mockIdentity),
		tokens:   new(mockTokens),
		blobs:    new(mockBlobs),
	}
	f.svc = NewService(ServiceDeps{
		UserRepo:    f.users,
		Identity:    f.identity,
		Tokens:      f.tokens,
		Blobs:       f.blobs,
		ImageURLTTL: time.Hour,
		Now:         func() time.Time { return fixedNow },
	})
	return f
}

func notFound() error { return fmt.Errorf("user not found: %w", domain.ErrNotFound) }

func strPtr(s string) *string { return &s }

// --- SignIn ---

func TestSignIn_BadToken(t *testing.T) {
	f := newFixture()
	f.identity.On("GetUserFromToken", mock.Anything, "bad").Return(nil, domain.ErrUnauthorized)

	_, err := f.svc.SignIn(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrIncorrectAccount)
	f.users.AssertNotCalled(t, "GetByUID", mock.Anything, mock.Anything)
}

func TestSignIn_CreatesUnknownUser(t *testing.T) {
	f := newFixture()
	idu := &domain.IdentityUser{
		UID: "fb-1", Email: "a@b.com", DisplayName: "Alice",
		Providers: []domain.ProviderInfo{{ProviderID: domain.ProviderPassword, UID: "a@b.com"}},
	}
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(idu, nil)
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(nil, notFound())
	f.users.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.UID == "fb-1" && u.UserName == "Alice" && u.UserID != "" && u.CreatedAt.Equal(fixedNow)
	})).Return(nil)
	f.tokens.On("CreateTokens", "fb-1").Return("access", "refresh", nil)

	res, err := f.svc.SignIn(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "access", res.Token)
	assert.Equal(t, "refresh", res.RefreshToken)
	f.users.AssertExpectations(t)
}

func TestSignIn_SyncsProviderState(t *testing.T) {
	f := newFixture()
	stored := &domain.User{UserID: "u-1", UID: "fb-1", Email: "a@b.com"}
	idu := &domain.IdentityUser{
		UID: "fb-1", Email: "a@b.com", EmailVerified: true,
		Providers: []domain.ProviderInfo{{ProviderID: domain.ProviderGoogle, UID: "g-1", PhotoURL: "https://lh3/p.png"}},
	}
	synced := &domain.User{UserID: "u-1", UID: "fb-1", Email: "a@b.com", EmailVerified: true, PhotoURL: strPtr("https://lh3/p.png")}

	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(idu, nil)
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(stored, nil)
	f.users.On("Update", mock.Anything, "u-1", mock.MatchedBy(func(m map[string]interface{}) bool {
		_, hasProviders := m[domain.FieldProviderData]
		return m[domain.FieldEmailVerified] == true && m[domain.FieldPhotoURL] == "https://lh3/p.png" && hasProviders
	})).Return(synced, nil)
	f.tokens.On("CreateTokens", "fb-1").Return("a", "r", nil)

	res, err := f.svc.SignIn(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, res.User.EmailVerified)
	f.users.AssertExpectations(t)
}

func TestSignIn_NoChangesSkipsUpdate(t *testing.T) {
	f := newFixture()
	providers := []domain.ProviderInfo{{ProviderID: domain.ProviderPassword, UID: "a@b.com"}}
	stored := &domain.User{UserID: "u-1", UID: "fb-1", EmailVerified: true, ProviderData: providers}
	idu := &domain.IdentityUser{UID: "fb-1", EmailVerified: true, Providers: providers}

	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(idu, nil)
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(stored, nil)
	f.tokens.On("CreateTokens", "fb-1").Return("a", "r", nil)

	_, err := f.svc.SignIn(context.Background(), "tok")
	require.NoError(t, err)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// --- SignUp ---

func TestSignUp_EmailRegistered(t *testing.T) {
	f := newFixture()
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(&domain.IdentityUser{UID: "fb-1", Email: "a@b.com"}, nil)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{UserID: "u-1"}, nil)

	_, err := f.svc.SignUp(context.Background(), "alice", "tok")
	assert.ErrorIs(t, err, ErrEmailRegistered)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSignUp_FacebookAccountsAreVerified(t *testing.T) {
	f := newFixture()
	idu := &domain.IdentityUser{UID: "fb-1", Email: "a@b.com", Providers: []domain.ProviderInfo{{ProviderID: domain.ProviderFacebook}}}
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(idu, nil)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, notFound())
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(nil, notFound())
	f.users.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.EmailVerified && u.UserName == "alice" && u.PhotoURL == nil
	})).Return(nil)
	f.tokens.On("CreateTokens", "fb-1").Return("a", "r", nil)

	_, err := f.svc.SignUp(context.Background(), "alice", "tok")
	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

func TestSignUp_GoogleAccountsTakePhoto(t *testing.T) {
	f := newFixture()
	idu := &domain.IdentityUser{UID: "g-uid", Email: "a@b.com", PhotoURL: "https://photo", Providers: []domain.ProviderInfo{{ProviderID: domain.ProviderGoogle}}}
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(idu, nil)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, notFound())
	f.users.On("GetByUID", mock.Anything, "g-uid").Return(nil, notFound())
	f.users.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.PhotoURL != nil && *u.PhotoURL == "https://photo" && !u.EmailVerified
	})).Return(nil)
	f.tokens.On("CreateTokens", "g-uid").Return("a", "r", nil)

	_, err := f.svc.SignUp(context.Background(), "alice", "tok")
	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

// --- tokens ---

func TestRefreshToken(t *testing.T) {
	f := newFixture()
	f.tokens.On("VerifyRefreshToken", "good").Return("fb-1", nil)
	f.tokens.On("VerifyRefreshToken", "bad").Return("", errors.New("expired"))
	f.tokens.On("CreateTokens", "fb-1").Return("a2", "r2", nil)

	a, r, err := f.svc.RefreshToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "a2", a)
	assert.Equal(t, "r2", r)

	_, _, err = f.svc.RefreshToken(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCustomToken_Bounds(t *testing.T) {
	f := newFixture()
	f.tokens.On("CreateCustomToken", time.Hour).Return("custom", nil)

	tok, err := f.svc.CustomToken(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "custom", tok)

	_, err = f.svc.CustomToken(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	_, err = f.svc.CustomToken(context.Background(), MaxCustomTokenTTL+time.Second)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- profile ---

func TestProfile_RejectsOtherCaller(t *testing.T) {
	f := newFixture()
	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1"}, nil)

	_, err := f.svc.Profile(context.Background(), "fb-2", "u-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateInformation_PartialFields(t *testing.T) {
	f := newFixture()
	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1"}, nil)
	f.users.On("Update", mock.Anything, "u-1", map[string]interface{}{
		domain.FieldUserName: "Alice",
		domain.FieldLocation: "Da Nang",
	}).Return(&domain.User{UserID: "u-1", UserName: "Alice"}, nil)

	u, err := f.svc.UpdateInformation(context.Background(), "fb-1", domain.UpdateInformationRequest{
		ID: "u-1", UserName: strPtr(" Alice "), Location: strPtr("Da Nang"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.UserName)
	f.users.AssertExpectations(t)
}

func TestUpdateImage_AvatarReplacesPrevious(t *testing.T) {
	f := newFixture()
	old := "https://bucket.s3.amazonaws.com/user_images/u-1/1_avatar.png?X-Amz-Signature=abc"
	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1", PhotoURL: &old}, nil)

	wantKey := fmt.Sprintf("user_images/u-1/%d_my_avatar.png", fixedNow.UnixMilli())
	f.blobs.On("Upload", mock.Anything, wantKey, mock.Anything, "image/png").Return(nil)
	f.users.On("Update", mock.Anything, "u-1", map[string]interface{}{domain.FieldPhotoURL: wantKey}).
		Return(&domain.User{UserID: "u-1", PhotoURL: strPtr(wantKey)}, nil)
	f.blobs.On("SignedURL", mock.Anything, wantKey, time.Hour).Return("https://signed/new", nil)
	f.blobs.On("Delete", mock.Anything, "user_images/u-1/1_avatar.png").Return(nil)

	u, avatar, err := f.svc.UpdateImage(context.Background(), "fb-1", "u-1", Image{
		Filename: "my avatar.png", Body: strings.NewReader("png"),
	})
	require.NoError(t, err)
	assert.True(t, avatar)
	assert.Equal(t, "https://signed/new", *u.PhotoURL)
	f.blobs.AssertExpectations(t)
}

func TestUpdateImage_BackgroundKeepsProviderPhoto(t *testing.T) {
	f := newFixture()
	google := "https://lh3.googleusercontent.com/a/photo"
	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1", BackgroundURL: &google}, nil)
	wantKey := fmt.Sprintf("user_images/u-1/%d_cover.jpg", fixedNow.UnixMilli())
	f.blobs.On("Upload", mock.Anything, wantKey, mock.Anything, "image/jpeg").Return(nil)
	f.users.On("Update", mock.Anything, "u-1", map[string]interface{}{domain.FieldBackgroundURL: wantKey}).
		Return(&domain.User{UserID: "u-1"}, nil)

	_, avatar, err := f.svc.UpdateImage(context.Background(), "fb-1", "u-1", Image{
		Filename: "cover.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg"),
	})
	require.NoError(t, err)
	assert.False(t, avatar)
	f.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdateImage_Validation(t *testing.T) {
	f := newFixture()
	_, _, err := f.svc.UpdateImage(context.Background(), "fb-1", "u-1", Image{})
	assert.ErrorIs(t, err, ErrNoFile)

	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1"}, nil)
	_, _, err = f.svc.UpdateImage(context.Background(), "fb-1", "u-1", Image{
		Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// clockBlobs signs URLs that expire ttl after the shared clock's current time.
type clockBlobs struct {
	now func() time.Time
}

func (b *clockBlobs) Upload(context.Context, string, io.Reader, string) error { return nil }
func (b *clockBlobs) Delete(context.Context, string) error { return nil }
func (b *clockBlobs) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.example/%s?expires=%d", key, b.now().Add(ttl).Unix()), nil
}

func expiresAt(t *testing.T, signed string) time.Time {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	sec, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	return time.Unix(sec, 0)
}

func TestProfile_ImageLinksOutliveSigningTTL(t *testing.T) {
	now := fixedNow
	clock := func() time.Time { return now }
	users := new(mockUserStore)
	tokens := new(mockTokens)
	svc := NewService(ServiceDeps{
		UserRepo:    users,
		Tokens:      tokens,
		Blobs:       &clockBlobs{now: clock},
		ImageURLTTL: 7 * 24 * time.Hour,
		Now:         clock,
	})

	key := "user_images/u-1/1_avatar.png"
	users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1", PhotoURL: strPtr(key)}, nil)
	tokens.On("CreateTokens", "fb-1").Return("a", "r", nil)

	first, err := svc.Profile(context.Background(), "fb-1", "u-1")
	require.NoError(t, err)
	assert.True(t, expiresAt(t, *first.User.PhotoURL).After(now))

	now = now.Add(30 * 24 * time.Hour)
	second, err := svc.Profile(context.Background(), "fb-1", "u-1")
	require.NoError(t, err)
	assert.True(t, expiresAt(t, *second.User.PhotoURL).After(now), "link must still be valid a month later")
	assert.Contains(t, *second.User.PhotoURL, key)
}

func TestProfile_ResignsLegacyPresignedURL(t *testing.T) {
	f := newFixture()
	legacy := "https://bucket.s3.amazonaws.com/user_images/u-1/1_bg.png?X-Amz-Expires=604800"
	google := "https://lh3.googleusercontent.com/a/photo"
	f.users.On("Get", mock.Anything, "u-1").Return(&domain.User{UserID: "u-1", UID: "fb-1", PhotoURL: &google, BackgroundURL: &legacy}, nil)
	f.tokens.On("CreateTokens", "fb-1").Return("a", "r", nil)
	f.blobs.On("SignedURL", mock.Anything, "user_images/u-1/1_bg.png", time.Hour).Return("https://signed/bg", nil)

	res, err := f.svc.Profile(context.Background(), "fb-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, google, *res.User.PhotoURL)
	assert.Equal(t, "https://signed/bg", *res.User.BackgroundURL)
	f.blobs.AssertExpectations(t)
}

// --- links ---

func TestAccountLinkAndUnlink(t *testing.T) {
	f := newFixture()
	stored := &domain.User{UserID: "u-1", UID: "fb-1", ProviderData: []domain.ProviderInfo{
		{ProviderID: domain.ProviderPassword, UID: "a@b.com"},
		{ProviderID: domain.ProviderGoogle, UID: "old"},
	}}
	f.users.On("Get", mock.Anything, "u-1").Return(stored, nil)

	linked := []domain.ProviderInfo{
		{ProviderID: domain.ProviderPassword, UID: "a@b.com"},
		{ProviderID: domain.ProviderGoogle, UID: "new"},
	}
	f.users.On("Update", mock.Anything, "u-1", map[string]interface{}{domain.FieldProviderData: linked}).
		Return(&domain.User{UserID: "u-1", ProviderData: linked}, nil).Once()

	u, err := f.svc.AccountLink(context.Background(), "fb-1", "u-1", domain.ProviderInfo{ProviderID: domain.ProviderGoogle, UID: "new"})
	require.NoError(t, err)
	assert.Len(t, u.ProviderData, 2)

	unlinked := []domain.ProviderInfo{{ProviderID: domain.ProviderPassword, UID: "a@b.com"}}
	f.users.On("Update", mock.Anything, "u-1", map[string]interface{}{domain.FieldProviderData: unlinked}).
		Return(&domain.User{UserID: "u-1", ProviderData: unlinked}, nil).Once()

	u, err = f.svc.AccountUnlink(context.Background(), "fb-1", "u-1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Len(t, u.ProviderData, 1)
}

func TestCheckAccount(t *testing.T) {
	f := newFixture()
	f.users.On("GetByEmail", mock.Anything, "new@b.com").Return(nil, notFound())
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{
		ProviderData: []domain.ProviderInfo{{ProviderID: domain.ProviderGoogle}},
	}, nil)

	ok, err := f.svc.CheckAccount(context.Background(), "New@B.com", domain.ProviderFacebook)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CheckAccount(context.Background(), "a@b.com", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CheckAccount(context.Background(), "a@b.com", domain.ProviderFacebook)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture()
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(&domain.IdentityUser{UID: "fb-1"}, nil)
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(&domain.User{UserID: "u-1", UID: "fb-1"}, nil)
	f.users.On("Delete", mock.Anything, "u-1").Return(nil)
	f.identity.On("DeleteAccount", mock.Anything, "fb-1").Return(nil)

	require.NoError(t, f.svc.DeleteAccount(context.Background(), "fb-1", "tok"))
	f.users.AssertExpectations(t)
	f.identity.AssertExpectations(t)
}

func TestDeleteAccount_ProviderFailureFails(t *testing.T) {
	f := newFixture()
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(&domain.IdentityUser{UID: "fb-1"}, nil)
	f.users.On("GetByUID", mock.Anything, "fb-1").Return(nil, notFound())
	f.identity.On("DeleteAccount", mock.Anything, "fb-1").Return(errors.New("provider down"))

	err := f.svc.DeleteAccount(context.Background(), "fb-1", "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "provider down")
}

func TestDeleteAccount_OtherCaller(t *testing.T) {
	f := newFixture()
	f.identity.On("GetUserFromToken", mock.Anything, "tok").Return(&domain.IdentityUser{UID: "fb-1"}, nil)

	err := f.svc.DeleteAccount(context.Background(), "fb-2", "tok")
	assert.ErrorIs(t, err, ErrNotOwner)
	f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.identity.AssertNotCalled(t, "DeleteAccount", mock.Anything, mock.Anything)
}

// --- helpers ---

func TestObjectKeyFromURL(t *testing.T) {
	cases := map[string]struct {
		url  string
		key  string
		want bool
	}{
		"virtual host": {"https://b.s3.us-east-1.amazonaws.com/user_images/u-1/1_a.png?X-Amz-Expires=10", "user_images/u-1/1_a.png", true},
		"path style":   {"http://localhost:4566/bucket/user_images/u-1/2_b.jpg", "user_images/u-1/2_b.jpg", true},
		"foreign":      {"https://lh3.googleusercontent.com/a/xyz", "", false},
		"prefix only":  {"https://b.s3.amazonaws.com/user_images/", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			key, ok := objectKeyFromURL(tc.url)
			assert.Equal(t, tc.want, ok)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "my_avatar.png", sanitizeFilename("my avatar.png"))
	assert.Equal(t, "x.png", sanitizeFilename(`C:\Users\x.png`))
	assert.Equal(t, "_", sanitizeFilename(".."))
}
