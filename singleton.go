package titanvolume

import "sync"

// The functions below model the "one implicit volume" surface named in
// the original design (a process-wide singleton session, fails if a
// volume is already open), the same way log/slog exposes a package-level
// default logger over the Logger type: Session remains the primary,
// owned-value API; these wrap a single package-level *Session for
// callers that want the original single-active-volume contract instead
// of threading a *Session through their own code.
var (
	defaultMu      sync.Mutex
	defaultSession *Session
)

// CreateDefault creates a volume and installs it as the package-wide
// default session. It fails with ErrAlreadyOpen if a default session is
// already installed.
func CreateDefault(dev BackingDevice, keys Keys, params VolumeParams, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSession != nil {
		return ErrAlreadyOpen
	}
	session, err := Create(dev, keys, params, opts...)
	if err != nil {
		return err
	}
	defaultSession = session
	return nil
}

// OpenDefault opens a volume and installs it as the package-wide
// default session. It fails with ErrAlreadyOpen if a default session is
// already installed.
func OpenDefault(dev BackingDevice, keys Keys, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSession != nil {
		return ErrAlreadyOpen
	}
	session, err := Open(dev, keys, opts...)
	if err != nil {
		return err
	}
	defaultSession = session
	return nil
}

// CloseDefault closes and clears the package-wide default session. It
// fails with ErrNotOpen if no default session is installed.
func CloseDefault() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSession == nil {
		return ErrNotOpen
	}
	err := defaultSession.Close()
	defaultSession = nil
	return err
}

// ReadDefault reads from the package-wide default session. It fails
// with ErrNotOpen if no default session is installed.
func ReadDefault(offset uint64, dst []byte) error {
	defaultMu.Lock()
	session := defaultSession
	defaultMu.Unlock()

	if session == nil {
		return ErrNotOpen
	}
	return session.Read(offset, dst)
}

// WriteDefault writes to the package-wide default session. It fails
// with ErrNotOpen if no default session is installed.
func WriteDefault(offset uint64, src []byte) error {
	defaultMu.Lock()
	session := defaultSession
	defaultMu.Unlock()

	if session == nil {
		return ErrNotOpen
	}
	return session.Write(offset, src)
}

// FlushDefault flushes the package-wide default session. It fails with
// ErrNotOpen if no default session is installed.
func FlushDefault() error {
	defaultMu.Lock()
	session := defaultSession
	defaultMu.Unlock()

	if session == nil {
		return ErrNotOpen
	}
	return session.Flush()
}
