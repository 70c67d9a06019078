package types

import "errors"

// Error taxonomy. Identity errors are fatal at startup; snapshot errors are
// tick-local; wire errors are session-local; connection loss drives the
// reconnect or per-target-failure path.
var (
	ErrIdentityCorrupt     = errors.New("identity file is corrupt")
	ErrIdentityUnwritable  = errors.New("identity file location is not writable")
	ErrSnapshotUnavailable = errors.New("system snapshot unavailable")
	ErrProcessLookupFailed = errors.New("process lookup failed")
	ErrMalformedMessage    = errors.New("malformed message")
	ErrSchemaMismatch      = errors.New("message schema mismatch")
	ErrConnectionLost      = errors.New("connection lost")
)
