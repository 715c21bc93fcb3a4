package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/internal/rate"
	"github.com/MrEthical07/hmsAuth/jwt"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	// RetryAfterMinutes is set for locked accounts.
	RetryAfterMinutes int    `json:"retryAfterMinutes,omitempty"`
	RequestID         string `json:"requestId,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: typed errors match their sentinel through Is.
var errorMappings = []errorMapping{
	{hmsAuth.ErrValidationFailed, http.StatusBadRequest, "validation_failed"},
	{hmsAuth.ErrConflict, http.StatusConflict, "conflict"},
	{hmsAuth.ErrNotFound, http.StatusNotFound, "not_found"},
	{hmsAuth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{hmsAuth.ErrAccountLocked, http.StatusLocked, "account_locked"},
	{hmsAuth.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	{hmsAuth.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified"},
	{hmsAuth.ErrTenantInactive, http.StatusForbidden, "tenant_inactive"},
	{hmsAuth.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{hmsAuth.ErrExpired, http.StatusGone, "expired"},
	{hmsAuth.ErrAlreadyUsed, http.StatusConflict, "already_used"},
	{hmsAuth.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
	{hmsAuth.ErrAlreadyVerified, http.StatusConflict, "already_verified"},
	{hmsAuth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{hmsAuth.ErrInvalidOperation, http.StatusUnprocessableEntity, "invalid_operation"},
	{hmsAuth.ErrInvalidCurrentPassword, http.StatusBadRequest, "invalid_current_password"},
	{hmsAuth.ErrEmailDispatchFailed, http.StatusBadGateway, "email_dispatch_failed"},
	{hmsAuth.ErrEngineNotReady, http.StatusServiceUnavailable, "not_ready"},
	{jwt.ErrRevocationDisabled, http.StatusNotImplemented, "revocation_disabled"},
	{rate.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: "internal_error", RequestID: RequestIDFromContext(r.Context())}
	status := http.StatusInternalServerError

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, body.Error = m.status, m.code
			body.Message = err.Error()
			break
		}
	}

	var ve *hmsAuth.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	var ce *hmsAuth.ConflictError
	if errors.As(err, &ce) {
		body.Field = ce.Field
	}
	var le *hmsAuth.AccountLockedError
	if errors.As(err, &le) {
		body.RetryAfterMinutes = le.RemainingMinutes
	}

	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     "bad_request",
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
