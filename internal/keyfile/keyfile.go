// Package keyfile reads and writes the MAC and encryption key pair a
// titanvolume is opened with, as a small hex-encoded file.
package keyfile

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/fpgaminer/titanvolume"
)

// Generate produces a fresh random Keys value using crypto/rand.
func Generate() (titanvolume.Keys, error) {
	var keys titanvolume.Keys
	if _, err := rand.Read(keys.MACKey[:]); err != nil {
		return titanvolume.Keys{}, fmt.Errorf("generate mac key: %w", err)
	}
	if _, err := rand.Read(keys.EncryptionKey[:]); err != nil {
		return titanvolume.Keys{}, fmt.Errorf("generate encryption key: %w", err)
	}
	return keys, nil
}

// Save writes keys to path as two newline-separated hex lines (MAC key,
// then encryption key), replacing any existing file atomically so a
// crash mid-write never leaves a truncated key file behind.
func Save(path string, keys titanvolume.Keys) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, hex.EncodeToString(keys.MACKey[:]))
	fmt.Fprintln(&buf, hex.EncodeToString(keys.EncryptionKey[:]))

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write key file %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// Load reads the two hex-encoded key lines written by Save.
func Load(path string) (titanvolume.Keys, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return titanvolume.Keys{}, fmt.Errorf("read key file %s: %w", path, err)
	}

	lines := bytes.Split(bytes.TrimSpace(content), []byte("\n"))
	if len(lines) != 2 {
		return titanvolume.Keys{}, fmt.Errorf("key file %s: expected 2 lines, found %d", path, len(lines))
	}

	var keys titanvolume.Keys
	if err := decodeHex(keys.MACKey[:], lines[0]); err != nil {
		return titanvolume.Keys{}, fmt.Errorf("key file %s: mac key: %w", path, err)
	}
	if err := decodeHex(keys.EncryptionKey[:], lines[1]); err != nil {
		return titanvolume.Keys{}, fmt.Errorf("key file %s: encryption key: %w", path, err)
	}
	return keys, nil
}

func decodeHex(dst []byte, line []byte) error {
	decoded, err := hex.DecodeString(string(bytes.TrimSpace(line)))
	if err != nil {
		return err
	}
	if len(decoded) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(decoded))
	}
	copy(dst, decoded)
	return nil
}
