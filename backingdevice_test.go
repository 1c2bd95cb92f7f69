package titanvolume

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestMemBackingDeviceReadWrite(t *testing.T) {
	dev := NewMemBackingDevice(64)
	if err := dev.PhysicalWrite(10, []byte("hello")); err != nil {
		t.Fatalf("PhysicalWrite: %v", err)
	}
	got := make([]byte, 5)
	if err := dev.PhysicalRead(got, 10); err != nil {
		t.Fatalf("PhysicalRead: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestMemBackingDeviceOutOfRange(t *testing.T) {
	dev := NewMemBackingDevice(8)
	if err := dev.PhysicalRead(make([]byte, 4), 6); err == nil {
		t.Fatal("expected an error reading past the end of the device")
	}
	if err := dev.PhysicalWrite(6, make([]byte, 4)); err == nil {
		t.Fatal("expected an error writing past the end of the device")
	}
}

func TestMemBackingDeviceCorrupt(t *testing.T) {
	dev := NewMemBackingDevice(16)
	if err := dev.PhysicalWrite(0, bytes.Repeat([]byte{0xFF}, 16)); err != nil {
		t.Fatal(err)
	}
	dev.Corrupt(4, 4)
	want := append(append(bytes.Repeat([]byte{0xFF}, 4), make([]byte, 4)...), bytes.Repeat([]byte{0xFF}, 8)...)
	if !bytes.Equal(dev.Bytes(), want) {
		t.Fatalf("got %x, want %x", dev.Bytes(), want)
	}
}

func TestFileBackingDeviceReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.bin")

	dev, err := NewFileBackingDevice(path, 64)
	if err != nil {
		t.Fatalf("NewFileBackingDevice: %v", err)
	}
	defer dev.Close()

	if err := dev.PhysicalWrite(10, []byte("hello")); err != nil {
		t.Fatalf("PhysicalWrite: %v", err)
	}
	got := make([]byte, 5)
	if err := dev.PhysicalRead(got, 10); err != nil {
		t.Fatalf("PhysicalRead: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestFileBackingDeviceGrowsToMinSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.bin")

	dev, err := NewFileBackingDevice(path, 4096)
	if err != nil {
		t.Fatalf("NewFileBackingDevice: %v", err)
	}
	defer dev.Close()

	if err := dev.PhysicalRead(make([]byte, 4096), 0); err != nil {
		t.Fatalf("expected reads within minSize to succeed, got %v", err)
	}
}

func TestFileBackingDeviceReadPastEndFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.bin")

	dev, err := NewFileBackingDevice(path, 16)
	if err != nil {
		t.Fatalf("NewFileBackingDevice: %v", err)
	}
	defer dev.Close()

	if err := dev.PhysicalRead(make([]byte, 32), 0); err == nil {
		t.Fatal("expected an error reading past the end of the file")
	}
}
