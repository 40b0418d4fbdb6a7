package controller

import "errors"

// Domain errors for the controller package. Check with errors.Is.
var (
	// ErrAuthFailed is returned when the controller rejects the session
	// (401/403). Recoverable via re-login.
	ErrAuthFailed = errors.New("controller: authentication failed")

	// ErrLoginFailed is returned when the login request itself is
	// rejected (bad credentials, unreachable controller).
	ErrLoginFailed = errors.New("controller: login failed")

	// ErrUnexpectedStatus is returned for non-auth HTTP failures.
	ErrUnexpectedStatus = errors.New("controller: unexpected status")

	// ErrKindNotSupported is returned when an operation targets a kind
	// with no endpoint mapping.
	ErrKindNotSupported = errors.New("controller: kind not supported")

	// ErrNotFound is returned when a targeted entity does not exist.
	ErrNotFound = errors.New("controller: not found")
)
