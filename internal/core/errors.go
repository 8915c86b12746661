package core

import "errors"

// Error kinds, not Go types: every error surfaced by a subsystem either
// wraps one of these sentinels or is treated as IOFailed by the HTTP
// layer. Use errors.Is against these to map to a status code.
var (
	// ErrNotFound covers a missing account, repo, branch, path, or
	// artifact. Maps to HTTP 404.
	ErrNotFound = errors.New("locomote: not found")

	// ErrAuthRequired signals a secure context with no credentials at
	// all. Maps to HTTP 401 with a WWW-Authenticate challenge.
	ErrAuthRequired = errors.New("locomote: authentication required")

	// ErrAuthFailed signals credentials were presented but rejected.
	// Maps to HTTP 401 with the realm echoed back.
	ErrAuthFailed = errors.New("locomote: authentication failed")

	// ErrUpstreamInvalid covers a bad `since` commit, an unknown build
	// profile id, or malformed CVS payload: recoverable by falling back
	// to a full listing or an unauthenticated view.
	ErrUpstreamInvalid = errors.New("locomote: invalid upstream reference")

	// ErrConfigError is fatal at startup: unknown auth method, missing
	// backbone configuration.
	ErrConfigError = errors.New("locomote: configuration error")
)

// AuthError carries the extra detail an AuthRequired/AuthFailed response
// needs: the status to answer with and an optional WWW-Authenticate
// header value.
type AuthError struct {
	Status  int
	Message string
	Headers map[string]string
	Kind    error // ErrAuthRequired or ErrAuthFailed
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Kind }
