package venue

import "errors"

// Error kinds, per the taxonomy: names are the kinds, not Go types. Every
// client wraps the concrete cause with one of these sentinels so callers can
// branch with errors.Is regardless of venue.
var (
	ErrAuthFailed           = errors.New("venue: authentication failed")
	ErrUnreachable          = errors.New("venue: unreachable")
	ErrRateLimited          = errors.New("venue: rate limited")
	ErrTransport            = errors.New("venue: transport error")
	ErrNotFound             = errors.New("venue: not found")
	ErrValidation           = errors.New("venue: validation failed")
	ErrRejected             = errors.New("venue: order rejected")
	ErrInsufficientBalance  = errors.New("venue: insufficient balance")
	ErrAlreadyTerminal      = errors.New("venue: order already terminal")
	ErrDataStale            = errors.New("venue: cached data stale")
)
