package handler

import (
	"errors"
	"net/http"

	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/domain"
)

const (
	msgEmailSent     = "Email sent successfully!"
	msgNotAssociated = "This email is not yet associated with a user."
	msgVerified      = "Verified successfully!"
	msgCodeInvalid   = "The verification code is incorrect or has expired!"
)

// VerificationHandler serves the email verification code endpoints.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (h *VerificationHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.SendCode(r.Context(), req.Email)
	switch {
	case err == nil:
		writeResult(w, http.StatusOK, Result{Msg: msgEmailSent})
	case errors.Is(err, domain.ErrEmailNotAssociated):
		writeError(w, http.StatusNotFound, msgNotAssociated)
	case errors.Is(err, domain.ErrBadRequest):
		writeFailure(w, err)
	default:
		// Storage and delivery failures look the same to clients.
		writeError(w, statusFor(err), msgWrong)
	}
}

func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.VerifyCode(r.Context(), req.Code)
	switch {
	case err == nil:
		writeResult(w, http.StatusOK, Result{Msg: msgVerified})
	case errors.Is(err, domain.ErrCodeInvalid):
		writeError(w, http.StatusBadRequest, msgCodeInvalid)
	default:
		writeError(w, http.StatusInternalServerError, msgWrong)
	}
}
