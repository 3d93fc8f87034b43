package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fallfest-referrals/internal/services"
)

// Error codes returned in ErrorResponse.Code. Clients branch on these, so
// they never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Referral engine
	ErrCodeEmptyCode         = "empty_code"
	ErrCodeInvalidCode       = "invalid_code"
	ErrCodeSelfReferral      = "self_referral"
	ErrCodeAlreadyLocked     = "already_locked"
	ErrCodeAlreadyRegistered = "already_registered"
	ErrCodeNotRegistered     = "not_registered"
	ErrCodeStoreUnavailable  = "store_unavailable"
	ErrCodeCodeGeneration    = "code_generation_failed"
)

type errorMapping struct {
	err    error
	status int
	code   string
	msg    string
}

// serviceErrors is checked in order with errors.Is. Messages for client
// errors are the ones the registration and referral pages display.
var serviceErrors = []errorMapping{
	{services.ErrEmptyCode, http.StatusBadRequest, ErrCodeEmptyCode, "Please enter a referral code."},
	{services.ErrInvalidCode, http.StatusUnprocessableEntity, ErrCodeInvalidCode, "Invalid referral code."},
	{services.ErrSelfReferral, http.StatusUnprocessableEntity, ErrCodeSelfReferral, "You cannot use your own referral code."},
	{services.ErrAlreadyLocked, http.StatusConflict, ErrCodeAlreadyLocked, "You have already used a referral code."},
	{services.ErrAlreadyRegistered, http.StatusConflict, ErrCodeAlreadyRegistered, "You are already registered."},
	{services.ErrNotRegistered, http.StatusNotFound, ErrCodeNotRegistered, "Please register first."},
	{services.ErrInvalidRegistration, http.StatusBadRequest, ErrCodeBadRequest, "Full name is required."},
	{services.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Service temporarily unavailable, please retry."},
	{services.ErrCollision, http.StatusInternalServerError, ErrCodeCodeGeneration, "Could not generate a referral code."},
}

// lookupError returns the mapping for err, or a generic 500.
func lookupError(err error) errorMapping {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return errorMapping{err: err, status: http.StatusInternalServerError, code: ErrCodeInternal, msg: "internal server error"}
}

// failWith translates a service error into the standard error envelope.
// The underlying error is attached to the Gin context for the access log.
func failWith(c *gin.Context, err error) {
	m := lookupError(err)
	_ = c.Error(err)
	fail(c, m.status, m.code, m.msg)
}

// referralErrorBody renders a non-fatal referral outcome, e.g. the code
// rejected during an otherwise successful registration.
func referralErrorBody(err error) *ReferralError {
	if err == nil {
		return nil
	}
	m := lookupError(err)
	return &ReferralError{Code: m.code, Message: m.msg}
}
