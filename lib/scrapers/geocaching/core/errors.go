package core

import "errors"

var (
	// ErrCredentials is returned when an operation needs an
	// authenticated session but no credentials were configured.
	ErrCredentials = errors.New("no geocaching.com credentials configured")
	// ErrLogin is returned when logging in to geocaching.com failed
	// with the configured credentials.
	ErrLogin = errors.New("cannot log in to geocaching.com")
)
