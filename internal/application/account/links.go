package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-account-api/internal/domain"
)

// AccountLink adds provider to the account, replacing an entry with the same provider id.
func (s *service) AccountLink(ctx context.Context, callerUID, userID string, provider domain.ProviderInfo) (*domain.User, error) {
	u, err := s.owned(ctx, callerUID, userID)
	if err != nil {
		return nil, err
	}
	providers := make([]domain.ProviderInfo, 0, len(u.ProviderData)+1)
	for _, p := range u.ProviderData {
		if p.ProviderID != provider.ProviderID {
			providers = append(providers, p)
		}
	}
	providers = append(providers, provider)
	return s.updateProviders(ctx, u.UserID, providers)
}

func (s *service) AccountUnlink(ctx context.Context, callerUID, userID, providerID string) (*domain.User, error) {
	u, err := s.owned(ctx, callerUID, userID)
	if err != nil {
		return nil, err
	}
	providers := make([]domain.ProviderInfo, 0, len(u.ProviderData))
	for _, p := range u.ProviderData {
		if p.ProviderID != providerID {
			providers = append(providers, p)
		}
	}
	return s.updateProviders(ctx, u.UserID, providers)
}

func (s *service) updateProviders(ctx context.Context, userID string, providers []domain.ProviderInfo) (*domain.User, error) {
	updated, err := s.users.Update(ctx, userID, map[string]interface{}{domain.FieldProviderData: providers})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, updated), nil
}

// DeleteAccount removes both the stored user and the provider account.
// Both are attempted; the call fails if either fails.
func (s *service) DeleteAccount(ctx context.Context, callerUID, idToken string) error {
	idu, err := s.identity.GetUserFromToken(ctx, idToken)
	if err != nil {
		return ErrIncorrectAccount
	}
	if idu.UID != callerUID {
		return ErrNotOwner
	}

	var localErr error
	u, err := s.users.GetByUID(ctx, idu.UID)
	if err != nil {
		localErr = fmt.Errorf("lookup user: %w", err)
	} else {
		localErr = s.users.Delete(ctx, u.UserID)
	}

	providerErr := s.identity.DeleteAccount(ctx, idu.UID)
	if err := errors.Join(localErr, providerErr); err != nil {
		return err
	}

	for _, img := range []*string{u.PhotoURL, u.BackgroundURL} {
		if img != nil {
			s.removeImage(ctx, *img)
		}
	}
	slog.Info("account deleted", "user_id", u.UserID)
	return nil
}

// CheckAccount reports whether email may sign in with providerID: unknown
// addresses are free, known ones must already have the provider linked.
func (s *service) CheckAccount(ctx context.Context, email, providerID string) (bool, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return u.HasProvider(providerID), nil
}
