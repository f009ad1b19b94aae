package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSession means the session is missing its id, access token or
	// refresh token. Raised before any write happens.
	ErrInvalidSession = errors.New("session id, access token and refresh token must be non-blank")

	// ErrAccountNotReady means an operation that requires a Ready account
	// (marking it primary) was invoked in another state.
	ErrAccountNotReady = errors.New("account is not in Ready state")

	// ErrNoPrimaryAccount means no account is currently eligible to be
	// primary for the product.
	ErrNoPrimaryAccount = errors.New("no primary account")
)
