// Package titanvolume implements an authenticated, encrypted, fixed-size
// block volume over an opaque byte-addressable backing device. See
// Session for the public lifecycle (Create, Open, Read, Write, Flush,
// Close).
package titanvolume

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// BackingDevice is the byte-addressable random-access collaborator the
// core persists to. A volume never assumes anything about the device
// beyond this contract: exact-length reads and writes, a source of
// secure random bytes, and a hook for unrecoverable internal
// contract violations.
type BackingDevice interface {
	// PhysicalRead reads exactly len(dst) bytes starting at offset. It
	// fails if the range extends past the device's current size.
	PhysicalRead(dst []byte, offset uint64) error

	// PhysicalWrite writes exactly len(src) bytes starting at offset.
	// On reported success the bytes are durable.
	PhysicalWrite(offset uint64, src []byte) error

	// ReadURandom fills dst with cryptographically secure random
	// bytes. It must not fail; implementations that cannot guarantee
	// randomness should invoke FatalError instead of returning.
	ReadURandom(dst []byte)

	// FatalError is the device's hook for unrecoverable failures; the
	// implementations in this package call it when the system entropy
	// source fails. Misaligned crypto calls and arithmetic overflow in
	// layout routines are reported through the package-level
	// FatalErrorHook, not through this method. It must not return.
	FatalError(reason string)
}

// FileBackingDevice implements BackingDevice over an *os.File using
// positional reads and writes (ReadAt/WriteAt), so no shared file
// offset is mutated between calls. A mutex is still held around each
// operation — not for the single-threaded-cooperative core's own
// correctness, but so the type itself remains safe to hand to code
// outside the core that might not honor that assumption, mirroring the
// locking discipline of the file-backed stores this was adapted from.
type FileBackingDevice struct {
	mu   sync.Mutex
	file *os.File
	log  *slog.Logger
}

// NewFileBackingDevice opens (creating if necessary) the file at path
// and ensures it is at least minSize bytes, so that a subsequent
// Session.Create for a volume whose totalDeviceSize() is minSize never
// fails a physical write due to a too-small file. Passing a minSize
// smaller than the volume actually needs is a deliberate way to
// exercise the "backing device too small" failure mode.
func NewFileBackingDevice(path string, minSize int64) (*FileBackingDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open backing file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat backing file: %w", err)
	}
	if info.Size() < minSize {
		if err := f.Truncate(minSize); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("grow backing file to %d bytes: %w", minSize, err)
		}
	}

	return &FileBackingDevice{file: f, log: slog.Default()}, nil
}

// PhysicalRead implements BackingDevice.
func (d *FileBackingDevice) PhysicalRead(dst []byte, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.ReadAt(dst, int64(offset))
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("read %d bytes at %d: past end of backing device", len(dst), offset)
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(dst), offset, err)
	}
	if n != len(dst) {
		return fmt.Errorf("short read: got %d of %d bytes at %d", n, len(dst), offset)
	}
	return nil
}

// PhysicalWrite implements BackingDevice.
func (d *FileBackingDevice) PhysicalWrite(offset uint64, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.WriteAt(src, int64(offset))
	if err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(src), offset, err)
	}
	if n != len(src) {
		return fmt.Errorf("short write: wrote %d of %d bytes at %d", n, len(src), offset)
	}
	return nil
}

// ReadURandom implements BackingDevice using crypto/rand.
func (d *FileBackingDevice) ReadURandom(dst []byte) {
	if _, err := rand.Read(dst); err != nil {
		d.FatalError("system entropy source failed: " + err.Error())
	}
}

// FatalError implements BackingDevice by logging the violation and
// terminating the process — the Go equivalent of the original's
// non-returning tsv_fatal_error hook.
func (d *FileBackingDevice) FatalError(reason string) {
	d.log.Error("titanvolume: fatal contract violation", "reason", reason)
	os.Exit(2)
}

// Close closes the underlying file. The core itself never calls this
// (Session.Close only zeroes key material); callers own the backing
// device's lifetime independently of the session's.
func (d *FileBackingDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// MemBackingDevice is an in-memory BackingDevice, primarily useful in
// tests that want to exercise the core without touching the
// filesystem.
type MemBackingDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemBackingDevice returns a MemBackingDevice pre-sized to size
// bytes of zeroed storage.
func NewMemBackingDevice(size int64) *MemBackingDevice {
	return &MemBackingDevice{data: make([]byte, size)}
}

// PhysicalRead implements BackingDevice.
func (d *MemBackingDevice) PhysicalRead(dst []byte, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	end := offset + uint64(len(dst))
	if end < offset || end > uint64(len(d.data)) {
		return fmt.Errorf("read %d bytes at %d: past end of backing device", len(dst), offset)
	}
	copy(dst, d.data[offset:end])
	return nil
}

// PhysicalWrite implements BackingDevice.
func (d *MemBackingDevice) PhysicalWrite(offset uint64, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	end := offset + uint64(len(src))
	if end < offset || end > uint64(len(d.data)) {
		return fmt.Errorf("write %d bytes at %d: past end of backing device", len(src), offset)
	}
	copy(d.data[offset:end], src)
	return nil
}

// ReadURandom implements BackingDevice using crypto/rand.
func (d *MemBackingDevice) ReadURandom(dst []byte) {
	if _, err := rand.Read(dst); err != nil {
		d.FatalError("system entropy source failed: " + err.Error())
	}
}

// FatalError implements BackingDevice by panicking, which is more
// useful than os.Exit when embedded in a test binary.
func (d *MemBackingDevice) FatalError(reason string) {
	panic("titanvolume: fatal: " + reason)
}

// Corrupt overwrites n bytes of the backing store starting at offset
// with zeros, for use by corruption-tolerance tests. Out-of-range
// spans are clamped to the device size.
func (d *MemBackingDevice) Corrupt(offset uint64, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset >= uint64(len(d.data)) {
		return
	}
	end := offset + uint64(n)
	if end > uint64(len(d.data)) {
		end = uint64(len(d.data))
	}
	for i := offset; i < end; i++ {
		d.data[i] = 0
	}
}

// Bytes returns the device's underlying storage for direct inspection
// in tests. The returned slice aliases the device's storage.
func (d *MemBackingDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}
