package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/tasks"
)

// DefaultWindow is how long an issued code stays valid.
const DefaultWindow = 2 * time.Minute

const taskMarkVerified = "identity.mark_email_verified"

type Service interface {
	// SendCode issues a fresh code for a registered email and delivers it.
	// Any previously issued code for that email stops working.
	SendCode(ctx context.Context, email string) error
	// VerifyCode marks the owning account verified when code is current.
	VerifyCode(ctx context.Context, code string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error)
}

type codeStore interface {
	Upsert(ctx context.Context, email, code string, at time.Time) error
	GetByCode(ctx context.Context, code string) (*domain.VerificationRecord, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

type deliverer interface {
	SendCode(ctx context.Context, to, code string) error
}

type identityProvider interface {
	MarkEmailVerified(ctx context.Context, uid string) error
}

type taskQueue interface {
	Submit(name string, fn tasks.Func) error
}

type ServiceDeps struct {
	UserRepo  userStore
	CodeRepo  codeStore
	Generator codeGenerator
	Delivery  deliverer
	Identity  identityProvider
	Tasks     taskQueue
	Window    time.Duration
	Now       func() time.Time
}

type service struct {
	users     userStore
	codes     codeStore
	generator codeGenerator
	delivery  deliverer
	identity  identityProvider
	tasks     taskQueue
	window    time.Duration
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:     deps.UserRepo,
		codes:     deps.CodeRepo,
		generator: deps.Generator,
		delivery:  deps.Delivery,
		identity:  deps.Identity,
		tasks:     deps.Tasks,
		window:    deps.Window,
		now:       deps.Now,
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) SendCode(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrEmailNotAssociated
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := s.generator.Generate()
	if err != nil {
		return err
	}
	if err := s.codes.Upsert(ctx, email, code, s.now()); err != nil {
		slog.Error("store verification code", "user_id", u.UserID, "err", err)
		return err
	}
	if err := s.delivery.SendCode(ctx, email, code); err != nil {
		slog.Error("deliver verification code", "user_id", u.UserID, "err", err)
		return err
	}
	slog.Info("verification code sent", "user_id", u.UserID)
	return nil
}

func (s *service) VerifyCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrCodeInvalid
	}

	rec, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrCodeInvalid
		}
		return fmt.Errorf("lookup verification code: %w", err)
	}
	if rec.Expired(s.now(), s.window) {
		return domain.ErrCodeInvalid
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return domain.ErrCodeInvalid
	}

	u, err := s.users.GetByEmail(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Account removed after the code was issued.
			slog.Warn("verified code has no account", "err", err)
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.EmailVerified {
		return nil
	}

	if _, err := s.users.Update(ctx, u.UserID, map[string]interface{}{
		domain.FieldEmailVerified: true,
	}); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	slog.Info("email verified", "user_id", u.UserID)
	s.propagate(u)
	return nil
}

// propagate hands the provider-side update to the task queue. Failures are
// logged and never reach the caller.
func (s *service) propagate(u *domain.User) {
	if s.identity == nil || s.tasks == nil || u.UID == "" {
		return
	}
	uid := u.UID
	err := s.tasks.Submit(taskMarkVerified, func(ctx context.Context) error {
		return s.identity.MarkEmailVerified(ctx, uid)
	})
	if err != nil {
		slog.Warn("could not queue identity update", "user_id", u.UserID, "err", err)
	}
}
