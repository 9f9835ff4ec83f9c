// Package identity talks to the Firebase account service (Identity Toolkit).
package identity

import (
	"context"
	"fmt"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Provider resolves and manages accounts held by the identity provider.
type Provider struct {
	rp *identitytoolkit.RelyingpartyService
}

// NewProvider builds a client from service-account credentials. When
// cfg.Identity.Endpoint is set (auth emulator) requests go there unauthenticated.
func NewProvider(ctx context.Context, cfg *config.Config, extra ...option.ClientOption) (*Provider, error) {
	var opts []option.ClientOption
	if cfg.Identity.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Identity.CredentialsFile))
	}
	if cfg.Identity.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.Identity.ProjectID))
	}
	if cfg.Identity.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Identity.Endpoint), option.WithoutAuthentication())
	}
	opts = append(opts, extra...)

	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create identity toolkit client: %w", err)
	}
	return &Provider{rp: svc.Relyingparty}, nil
}

// GetUserFromToken resolves the account behind an ID token. Any failure is
// reported as ErrUnauthorized.
func (p *Provider) GetUserFromToken(ctx context.Context, idToken string) (*domain.IdentityUser, error) {
	if idToken == "" {
		return nil, fmt.Errorf("empty id token: %w", domain.ErrUnauthorized)
	}
	resp, err := p.rp.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get account info: %w", domain.ErrUnauthorized)
	}
	if len(resp.Users) == 0 || resp.Users[0] == nil {
		return nil, fmt.Errorf("no account for token: %w", domain.ErrUnauthorized)
	}
	return toIdentityUser(resp.Users[0]), nil
}

func (p *Provider) DeleteAccount(ctx context.Context, uid string) error {
	_, err := p.rp.DeleteAccount(&identitytoolkit.IdentitytoolkitRelyingpartyDeleteAccountRequest{
		LocalId: uid,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete identity account: %w", err)
	}
	return nil
}

// MarkEmailVerified sets the provider-side email_verified flag.
func (p *Provider) MarkEmailVerified(ctx context.Context, uid string) error {
	_, err := p.rp.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		LocalId:       uid,
		EmailVerified: true,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	return nil
}

func toIdentityUser(u *identitytoolkit.UserInfo) *domain.IdentityUser {
	out := &domain.IdentityUser{
		UID:           u.LocalId,
		Email:         domain.NormalizeEmail(u.Email),
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoUrl,
		EmailVerified: u.EmailVerified,
	}
	for _, pi := range u.ProviderUserInfo {
		if pi == nil {
			continue
		}
		uid := pi.RawId
		if uid == "" {
			uid = pi.FederatedId
		}
		out.Providers = append(out.Providers, domain.ProviderInfo{
			ProviderID:  pi.ProviderId,
			UID:         uid,
			Email:       pi.Email,
			DisplayName: pi.DisplayName,
			PhotoURL:    pi.PhotoUrl,
			PhoneNumber: pi.PhoneNumber,
		})
	}
	return out
}
