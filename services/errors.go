package services

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBlocked         = errors.New("blocked by unfinished dependency")
	ErrUnavailable     = errors.New("service unavailable")
	ErrInvalidObjectID = errors.New("invalid id format")
)
