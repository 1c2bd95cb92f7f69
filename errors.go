package titanvolume

import "errors"

// Sentinel errors returned by Session operations. Callers should use
// errors.Is to test for these; the concrete error returned is usually
// wrapped with additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidParameter is returned by Create when sector_size or
	// sector_count fail the checks in the on-disk format's parameter
	// sanity rules.
	ErrInvalidParameter = errors.New("titanvolume: invalid parameter")

	// ErrAlreadyOpen is returned by CreateDefault or OpenDefault when a
	// package-wide default session is already installed.
	ErrAlreadyOpen = errors.New("titanvolume: volume already open")

	// ErrNotOpen is returned by Read, Write, or Flush when no volume
	// is open on this session.
	ErrNotOpen = errors.New("titanvolume: no volume open")

	// ErrHeaderInvalid is returned by Open when the header fails its
	// magic, version, or MAC check.
	ErrHeaderInvalid = errors.New("titanvolume: header invalid or unreadable")

	// ErrAuthentication is returned when a sector's MAC does not match
	// its ciphertext; it is also reported, wrapped, after both
	// replicas of a sector fail to authenticate.
	ErrAuthentication = errors.New("titanvolume: sector authentication failed")

	// ErrOutOfRange is returned by Read or Write when the requested
	// byte range falls outside [0, volume_size) or overflows.
	ErrOutOfRange = errors.New("titanvolume: offset/length out of range")
)
