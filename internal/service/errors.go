package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/benefits-cafeteria/internal/eligibility"
)

var (
	// ErrNotFound covers absent benefits, requests, users and attachments.
	ErrNotFound = errors.New("not found")
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("validation failed")

	ErrTooManyFiles    = fmt.Errorf("%w: too many files", ErrValidation)
	ErrInvalidFileType = fmt.Errorf("%w: files must be images", ErrValidation)
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", ErrValidation)
	ErrInvalidRating   = fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	ErrInvalidBenefit  = fmt.Errorf("%w: unknown benefit", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: unknown request status", ErrValidation)

	ErrPollClosed        = errors.New("poll is closed")
	ErrMissingProfile    = eligibility.ErrMissingProfile
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoEmployees       = errors.New("no active employees")
	ErrConflict          = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
)
