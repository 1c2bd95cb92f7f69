package titanvolume

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures optional collaborators on a Session at Create or
// Open time.
type Option func(*Session)

// WithAuditLog attaches a collaborator that persists CorruptionEvents
// observed during Read/Write. The default is NopAuditLog.
func WithAuditLog(log AuditLog) Option {
	return func(s *Session) { s.audit = log }
}

// WithLogger overrides the *slog.Logger a Session uses for operational
// logging. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is the public handle to an open titanvolume: a backing
// device paired with the key material and geometry needed to read and
// write it. A Session is safe for concurrent use; all operations are
// serialized under an internal mutex, matching the single-writer
// discipline of the format this was adapted from.
type Session struct {
	mu     sync.Mutex
	dev    BackingDevice
	keys   Keys
	params VolumeParams
	lay    layout
	audit  AuditLog
	log    *slog.Logger

	corruptionCount atomic.Uint64
	closed          bool
}

func newSession(dev BackingDevice, keys Keys, params VolumeParams, opts []Option) *Session {
	s := &Session{
		dev:    dev,
		keys:   keys,
		params: params,
		lay:    newLayout(params.SectorSize, params.SectorCount),
		audit:  NopAuditLog{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create initializes a new volume on dev: it validates params, writes
// the volume header, and brings every sector of both replicas to a
// known, authenticated all-zero state. dev must already be at least
// params.TotalDeviceSize() bytes.
func Create(dev BackingDevice, keys Keys, params VolumeParams, opts ...Option) (*Session, error) {
	if err := validateParameters(params.SectorSize, params.SectorCount); err != nil {
		return nil, err
	}

	if err := writeHeader(dev, keys, params.SectorSize, params.SectorCount); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	s := newSession(dev, keys, params, opts)

	// Pad the unused tail of each replica's MAC table with random bytes
	// so it is indistinguishable from a table of real MAC tags. A backing
	// device too small to hold the full layout is rejected by whichever
	// physical write first runs past its end, at the latest the last
	// secondary-replica sector write below.
	for _, r := range [2]replica{replicaPrimary, replicaSecondary} {
		offset, length := s.lay.macTablePadding(r)
		if length == 0 {
			continue
		}
		padding := make([]byte, length)
		dev.ReadURandom(padding)
		if err := dev.PhysicalWrite(offset, padding); err != nil {
			return nil, fmt.Errorf("pad mac table (replica %d): %w", r, err)
		}
	}

	zero := make([]byte, params.SectorSize)
	for index := uint32(0); index < params.SectorCount; index++ {
		if err := s.writeBothReplicas(index, zero, replicaPrimary, replicaSecondary); err != nil {
			return nil, fmt.Errorf("initialize sector %d: %w", index, err)
		}
	}

	return s, nil
}

// Open reads, authenticates, and decodes the volume header on dev and
// returns a Session for operating on it. keys must match the keys the
// volume was created with; a mismatch surfaces as ErrHeaderInvalid.
func Open(dev BackingDevice, keys Keys, opts ...Option) (*Session, error) {
	h, err := readHeader(dev, keys)
	if err != nil {
		return nil, err
	}
	if err := validateParameters(h.sectorSize, h.sectorCount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}

	params := VolumeParams{SectorSize: h.sectorSize, SectorCount: h.sectorCount}
	return newSession(dev, keys, params, opts), nil
}

// Close zeroes the session's key material. It does not close the
// underlying BackingDevice, whose lifetime callers own independently.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys.zero()
	s.closed = true
	return nil
}

// Flush is a no-op: every Session write already reaches the backing
// device's PhysicalWrite before returning. It exists so callers that
// batch several Writes under an external transaction boundary have a
// symmetric point to call once they are done, matching the lifecycle
// named in the on-disk format.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotOpen
	}
	return nil
}

// CorruptionCount returns the number of per-replica sector read
// failures this Session has observed since it was opened, whether or
// not the other replica supplied the data.
func (s *Session) CorruptionCount() uint64 {
	return s.corruptionCount.Load()
}

// Params returns the volume's sector geometry.
func (s *Session) Params() VolumeParams {
	return s.params
}

func (s *Session) validateRange(offset uint64, length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative length", ErrOutOfRange)
	}
	end := offset + uint64(length)
	if end < offset {
		return fmt.Errorf("%w: range overflows", ErrOutOfRange)
	}
	if end > s.lay.volumeSize {
		return fmt.Errorf("%w: [%d, %d) exceeds volume size %d", ErrOutOfRange, offset, end, s.lay.volumeSize)
	}
	return nil
}

// Read fills dst with the plaintext found at the byte range
// [offset, offset+len(dst)) of the volume. The range need not be
// sector-aligned; Read decomposes it into whole and partial sector
// reads, falling back from the primary to the secondary replica on any
// per-sector authentication failure.
func (s *Session) Read(offset uint64, dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotOpen
	}
	if err := s.validateRange(offset, len(dst)); err != nil {
		return err
	}

	sectorSize := uint64(s.params.SectorSize)
	plain := make([]byte, s.params.SectorSize)

	remaining := dst
	for len(remaining) > 0 {
		index := uint32(offset / sectorSize)
		within := offset % sectorSize
		chunkLen := sectorSize - within
		if chunkLen > uint64(len(remaining)) {
			chunkLen = uint64(len(remaining))
		}

		if _, _, err := s.readWithFallback(index, plain); err != nil {
			return fmt.Errorf("read sector %d: %w", index, err)
		}
		copy(remaining[:chunkLen], plain[within:within+chunkLen])

		remaining = remaining[chunkLen:]
		offset += chunkLen
	}
	return nil
}

// Write stores src as the plaintext at the byte range
// [offset, offset+len(src)) of the volume. Whole-sector chunks are
// encrypted and written to both replicas directly; partial-sector
// chunks are read-modify-written, with the replica that was found
// damaged (if any) written first so a crash between the two writes
// never destroys the last known-good copy.
func (s *Session) Write(offset uint64, src []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotOpen
	}
	if err := s.validateRange(offset, len(src)); err != nil {
		return err
	}

	sectorSize := uint64(s.params.SectorSize)

	remaining := src
	for len(remaining) > 0 {
		index := uint32(offset / sectorSize)
		within := offset % sectorSize
		chunkLen := sectorSize - within
		if chunkLen > uint64(len(remaining)) {
			chunkLen = uint64(len(remaining))
		}

		if within == 0 && chunkLen == sectorSize {
			plain := append([]byte(nil), remaining[:chunkLen]...)
			if err := s.writeBothReplicas(index, plain, replicaPrimary, replicaSecondary); err != nil {
				return fmt.Errorf("write sector %d: %w", index, err)
			}
		} else {
			plain := make([]byte, sectorSize)
			_, damaged, err := s.readWithFallback(index, plain)
			if err != nil {
				return fmt.Errorf("read-modify-write sector %d: %w", index, err)
			}
			copy(plain[within:within+chunkLen], remaining[:chunkLen])

			first, second := replicaPrimary, replicaSecondary
			if damaged != nil {
				first, second = *damaged, (*damaged).other()
			}
			if err := s.writeBothReplicas(index, plain, first, second); err != nil {
				return fmt.Errorf("write sector %d: %w", index, err)
			}
		}

		remaining = remaining[chunkLen:]
		offset += chunkLen
	}
	return nil
}

// readWithFallback reads sector index into dst, trying the primary
// replica first and falling back to the secondary on any error. It
// returns the replica that ultimately supplied the data and, if the
// primary failed and the secondary supplied the data, a pointer to the
// damaged primary (nil if the primary read cleanly, in which case the
// secondary is not read). Every observed failure is reported to the
// session's AuditLog.
func (s *Session) readWithFallback(index uint32, dst []byte) (used replica, damaged *replica, err error) {
	primaryErr := readSector(s.dev, s.lay, s.keys, sectorNum(index, replicaPrimary), dst)
	if primaryErr == nil {
		return replicaPrimary, nil, nil
	}
	s.reportCorruption(index, replicaPrimary, primaryErr)

	secondaryErr := readSector(s.dev, s.lay, s.keys, sectorNum(index, replicaSecondary), dst)
	if secondaryErr == nil {
		bad := replicaPrimary
		return replicaSecondary, &bad, nil
	}
	s.reportCorruption(index, replicaSecondary, secondaryErr)

	return 0, nil, fmt.Errorf("%w: both replicas of sector %d failed (primary: %v, secondary: %v)",
		ErrAuthentication, index, primaryErr, secondaryErr)
}

func (s *Session) reportCorruption(index uint32, r replica, cause error) {
	s.corruptionCount.Add(1)
	ev := CorruptionEvent{
		Sector:     index,
		Replica:    uint8(r),
		DetectedAt: time.Now(),
		Context:    cause.Error(),
	}
	if err := s.audit.RecordCorruption(ev); err != nil {
		s.log.Warn("failed to record corruption event", "sector", index, "replica", r, "error", err)
	}
}

// writeBothReplicas encrypts plaintext once per replica (the tweak
// differs between them, so the ciphertext does too) and writes first
// before second.
func (s *Session) writeBothReplicas(index uint32, plaintext []byte, first, second replica) error {
	buf := append([]byte(nil), plaintext...)
	if err := writeSector(s.dev, s.lay, s.keys, sectorNum(index, first), buf); err != nil {
		return err
	}
	buf = append([]byte(nil), plaintext...)
	if err := writeSector(s.dev, s.lay, s.keys, sectorNum(index, second), buf); err != nil {
		return err
	}
	return nil
}
