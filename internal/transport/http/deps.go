package http

import (
	"errors"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/application/verification"
	appmiddleware "github.com/go-account-api/internal/transport/http/middleware"
)

// Deps holds the services and token verifier the router wires into handlers.
type Deps struct {
	Accounts      account.Service
	Verifications verification.Service
	// Tokens validates Bearer access tokens. Authenticated routes reject
	// every request when it is nil.
	Tokens appmiddleware.TokenVerifier
}

var errNoVerifier = errors.New("no token verifier configured")
