// Package services defines the referral engine: code generation, attribution,
// registration, aggregation and the leaderboard snapshot cache. This file
// centralizes the service-level error values so that callers can match them
// with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Attribution errors.
var (
	// ErrEmptyCode is returned when the submitted referral code is blank
	// after trimming.
	ErrEmptyCode = errors.New("referral code is empty")

	// ErrInvalidCode is returned when no participant holds the submitted code.
	ErrInvalidCode = errors.New("referral code not found")

	// ErrSelfReferral is returned when the code belongs to the caller.
	ErrSelfReferral = errors.New("cannot use your own referral code")

	// ErrAlreadyLocked is returned when the caller's referrer is already set.
	ErrAlreadyLocked = errors.New("referrer already set")
)

// Registration errors.
var (
	// ErrAlreadyRegistered is returned when the caller already has a
	// participant record.
	ErrAlreadyRegistered = errors.New("participant already registered")

	// ErrNotRegistered is returned when an operation needs a participant
	// record the caller does not have.
	ErrNotRegistered = errors.New("participant not registered")

	// ErrInvalidRegistration is returned when required registration fields
	// are missing.
	ErrInvalidRegistration = errors.New("full name is required")
)

// Infrastructure errors.
var (
	// ErrStoreUnavailable wraps any backing-store failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCollision is returned when no unused referral code was found within
	// the configured number of attempts.
	ErrCollision = errors.New("could not generate a unique referral code")
)

// storeErr wraps err so that both ErrStoreUnavailable and the driver error
// match with errors.Is.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
