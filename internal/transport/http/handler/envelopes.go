package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/validate"
)

const (
	msgWrong       = "Something went wrong!"
	msgInvalidBody = "Invalid request body!"
	msgReLogin     = "Please log in again!"
	maxBodyBytes   = 1 << 20
)

// Result is the payload under "res".
type Result struct {
	Msg          string      `json:"msg"`
	Results      interface{} `json:"results,omitempty"`
	Token        string      `json:"token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// Envelope wraps every response body.
type Envelope struct {
	Status int    `json:"status"`
	Res    Result `json:"res"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, status int, res Result) {
	writeJSON(w, status, Envelope{Status: status, Res: res})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResult(w, status, Result{Msg: msg})
}

// writeFailure maps an error to a status and a message safe to show clients.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := msgWrong
	switch status {
	case http.StatusBadRequest:
		msg = err.Error()
	case http.StatusUnauthorized:
		msg = msgReLogin
	case http.StatusForbidden:
		msg = "Forbidden"
	case http.StatusNotFound:
		msg = "Not found!"
	case http.StatusConflict:
		msg = "Already exists!"
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEmailNotAssociated):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads and validates a JSON body, writing the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
