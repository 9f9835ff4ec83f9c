package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	p, err := NewProvider(&config.Config{
		JWTPrivateKeyPath:  privPath,
		JWTPublicKeyPath:   pubPath,
		JWTExpiry:          time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func TestCreateTokens_RoundTrip(t *testing.T) {
	p := newTestProvider(t)

	access, refresh, err := p.CreateTokens("firebase-uid")
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := p.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", claims.UID)
	assert.Equal(t, TypeAccess, claims.Type)

	uid, err := p.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", uid)
}

func TestVerify_RejectsWrongTokenType(t *testing.T) {
	p := newTestProvider(t)
	access, refresh, err := p.CreateTokens("uid")
	require.NoError(t, err)

	_, err = p.Verify(refresh)
	assert.ErrorIs(t, err, errWrongType)

	_, err = p.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, errWrongType)

	custom, err := p.CreateCustomToken(time.Minute)
	require.NoError(t, err)
	_, err = p.Verify(custom)
	assert.ErrorIs(t, err, errWrongType)
}

func TestVerify_Expired(t *testing.T) {
	p := newTestProvider(t)
	issued := time.Now().Add(-2 * time.Hour)
	p.now = func() time.Time { return issued }
	access, _, err := p.CreateTokens("uid")
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Verify(access)
	assert.Error(t, err)
}

func TestVerify_ForeignKey(t *testing.T) {
	a := newTestProvider(t)
	b := newTestProvider(t)
	access, _, err := a.CreateTokens("uid")
	require.NoError(t, err)

	_, err = b.Verify(access)
	assert.Error(t, err)
}

func TestNewProvider_MissingKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: "/does/not/exist.pem"})
	assert.ErrorContains(t, err, "read private key")
}
