package ports

import (
	"errors"

	"brainrotMarket/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// ErrValidation is raised for malformed input (empty item lists, non-positive multipliers).
	ErrValidation = domain.ErrValidation

	// Trade Lifecycle Errors
	ErrInvalidState    = errors.New("trade is not in a valid state for this action")
	ErrForbidden       = errors.New("caller is not allowed to perform this action")
	ErrAlreadyAccepted = errors.New("trade already accepted by this party")
	ErrSelfJoin        = errors.New("cannot join your own trade")
	ErrExpired         = errors.New("trade has expired")

	// Database Specific Errors
	ErrConflict       = errors.New("concurrent modification detected")
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
