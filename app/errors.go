package app

import "errors"

var (
	ErrInvalidPhone  = errors.New("phone number must be 10 digits")
	ErrInvalidCode   = errors.New("one-time code does not match")
	ErrMissingCode   = errors.New("one-time code must be configured")
	ErrInvalidTheme  = errors.New("theme must be light or dark")
	ErrDriverOffline = errors.New("please switch rider to online first")
	ErrEmptyAddress  = errors.New("address must not be empty")
)
