package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/middleware"
)

const maxImageBytes = 10 << 20

// AccountHandler serves the /users endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

type idTokenRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type signUpRequest struct {
	UserName string `json:"userName" validate:"omitempty,max=100"`
	IDToken  string `json:"idToken" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type checkAccountRequest struct {
	Email      string `json:"email" validate:"required,email"`
	ProviderID string `json:"providerId" validate:"required"`
}

type linkRequest struct {
	ID       string              `json:"id" validate:"required"`
	Provider domain.ProviderInfo `json:"provider"`
}

type unlinkRequest struct {
	ID         string `json:"id" validate:"required"`
	ProviderID string `json:"providerId" validate:"required"`
}

type customTokenRequest struct {
	ExpiresIn string `json:"expiresIn" validate:"required"`
}

func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SignIn(r.Context(), req.IDToken)
	if errors.Is(err, account.ErrIncorrectAccount) {
		writeError(w, http.StatusUnauthorized, "Incorrect account information!")
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeAuth(w, http.StatusOK, "Login Successfully!", res)
}

func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SignUp(r.Context(), req.UserName, req.IDToken)
	switch {
	case errors.Is(err, account.ErrIncorrectAccount):
		writeError(w, http.StatusUnauthorized, "Incorrect account information!")
	case errors.Is(err, account.ErrEmailRegistered):
		writeError(w, http.StatusConflict, "Email registered!")
	case err != nil:
		writeFailure(w, err)
	default:
		writeAuth(w, http.StatusCreated, "SignUp Successfully!", res)
	}
}

func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, refresh, err := h.svc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		writeFailure(w, err)
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Refresh token Successfully!", Token: token, RefreshToken: refresh})
}

func (h *AccountHandler) CheckAccount(w http.ResponseWriter, r *http.Request) {
	var req checkAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := h.svc.CheckAccount(r.Context(), req.Email, req.ProviderID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Failure!")
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Successfully!"})
}

func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	res, err := h.svc.Profile(r.Context(), claims.UID, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeAuth(w, http.StatusOK, "Get profile Successfully!", res)
}

func (h *AccountHandler) UpdateInformation(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	var req domain.UpdateInformationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateInformation(r.Context(), claims.UID, req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Update information successfully!", Results: u})
}

// UpdateImage accepts multipart/form-data with an "id" field and a "file" part.
func (h *AccountHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "No files found!")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No files found!")
		return
	}
	defer file.Close()

	u, avatar, err := h.svc.UpdateImage(r.Context(), claims.UID, r.FormValue("id"), account.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if errors.Is(err, account.ErrNoFile) {
		writeError(w, http.StatusBadRequest, "No files found!")
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	msg := "Update background successfully!"
	if avatar {
		msg = "Update avatar successfully!"
	}
	writeResult(w, http.StatusOK, Result{Msg: msg, Results: u})
}

func (h *AccountHandler) AccountLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.AccountLink(r.Context(), claims.UID, req.ID, req.Provider)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Account link successfully!", Results: u})
}

func (h *AccountHandler) AccountUnlink(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	var req unlinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.AccountUnlink(r.Context(), claims.UID, req.ID, req.ProviderID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Account unlink successfully!", Results: u})
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgReLogin)
		return
	}
	var req idTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.DeleteAccount(r.Context(), claims.UID, req.IDToken)
	switch {
	case err == nil:
		writeResult(w, http.StatusOK, Result{Msg: "Account deleted successfully!"})
	case errors.Is(err, account.ErrIncorrectAccount), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusBadRequest, "Account information is incorrect!")
	default:
		writeFailure(w, err)
	}
}

func (h *AccountHandler) CustomToken(w http.ResponseWriter, r *http.Request) {
	var req customTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ttl, err := time.ParseDuration(req.ExpiresIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expiresIn must be a duration such as 1h")
		return
	}
	token, err := h.svc.CustomToken(r.Context(), ttl)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeResult(w, http.StatusOK, Result{Msg: "Create custom token Successfully!", Token: token})
}

func writeAuth(w http.ResponseWriter, status int, msg string, res *account.AuthResult) {
	writeResult(w, status, Result{Msg: msg, Results: res.User, Token: res.Token, RefreshToken: res.RefreshToken})
}
