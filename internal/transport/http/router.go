package http

import (
	"context"
	"net/http"

	"github.com/go-account-api/internal/config"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	"github.com/go-account-api/internal/transport/http/handler"
	appmiddleware "github.com/go-account-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds the /v1 router. ctx bounds background work such as rate
// limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	tokens := deps.Tokens
	if tokens == nil {
		tokens = denyAll{}
	}
	authMw := appmiddleware.Auth(tokens)

	// Code issue and check are the endpoints worth brute-forcing.
	codeRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(deps.Accounts)
	verifyH := handler.NewVerificationHandler(deps.Verifications)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/users", func(r chi.Router) {
			r.Post("/sign-in", accountH.SignIn)
			r.Post("/sign-up", accountH.SignUp)
			r.Post("/refresh-token", accountH.RefreshToken)
			r.Post("/check-account", accountH.CheckAccount)
			r.With(codeRL.Limit).Post("/send-verification-code", verifyH.SendCode)
			r.With(codeRL.Limit).Post("/verify-code", verifyH.VerifyCode)

			r.Group(func(r chi.Router) {
				r.Use(authMw)

				r.Get("/profile", accountH.Profile)
				r.Put("/informations", accountH.UpdateInformation)
				r.Post("/image", accountH.UpdateImage)
				r.Post("/account-link", accountH.AccountLink)
				r.Post("/account-unlink", accountH.AccountUnlink)
				r.Delete("/", accountH.DeleteAccount)
				r.Post("/custom-token", accountH.CustomToken)
			})
		})
	})

	return r
}

type denyAll struct{}

func (denyAll) Verify(string) (*jwtinfra.Claims, error) { return nil, errNoVerifier }
