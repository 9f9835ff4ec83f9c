package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeCustom  = "custom"
)

var errWrongType = errors.New("unexpected token type")

// Claims holds the JWT payload fields.
type Claims struct {
	UID  string `json:"uid,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	expiry        time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey:    privKey,
		publicKey:     pubKey,
		expiry:        cfg.JWTExpiry,
		refreshExpiry: cfg.RefreshTokenExpiry,
		now:           time.Now,
	}, nil
}

// CreateTokens issues an access and refresh token pair for uid.
func (p *Provider) CreateTokens(uid string) (string, string, error) {
	access, err := p.sign(uid, TypeAccess, p.expiry)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := p.sign(uid, TypeRefresh, p.refreshExpiry)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, nil
}

// VerifyRefreshToken returns the uid carried by a valid refresh token.
func (p *Provider) VerifyRefreshToken(tokenStr string) (string, error) {
	claims, err := p.parse(tokenStr, TypeRefresh)
	if err != nil {
		return "", err
	}
	return claims.UID, nil
}

// CreateCustomToken issues a token not bound to any account.
func (p *Provider) CreateCustomToken(ttl time.Duration) (string, error) {
	return p.sign("", TypeCustom, ttl)
}

// Verify validates an access token.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	return p.parse(tokenStr, TypeAccess)
}

func (p *Provider) sign(uid, typ string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		UID:  uid,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) parse(tokenStr, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Type != typ {
		return nil, errWrongType
	}
	return claims, nil
}
