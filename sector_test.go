package titanvolume

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadSectorRoundTrip(t *testing.T) {
	lay := newLayout(4096, 16)
	dev := NewMemBackingDevice(int64(lay.totalDeviceSize()))
	keys := testKeys(t)

	n := sectorNum(3, replicaPrimary)
	plain := bytes.Repeat([]byte{0x42}, int(lay.sectorSize))

	if err := writeSector(dev, lay, keys, n, append([]byte(nil), plain...)); err != nil {
		t.Fatalf("writeSector: %v", err)
	}

	got := make([]byte, lay.sectorSize)
	if err := readSector(dev, lay, keys, n, got); err != nil {
		t.Fatalf("readSector: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %x, want %x", got, plain)
	}
}

func TestReadSectorDetectsCorruption(t *testing.T) {
	lay := newLayout(4096, 16)
	dev := NewMemBackingDevice(int64(lay.totalDeviceSize()))
	keys := testKeys(t)

	n := sectorNum(0, replicaPrimary)
	plain := bytes.Repeat([]byte{0x01}, int(lay.sectorSize))
	if err := writeSector(dev, lay, keys, n, append([]byte(nil), plain...)); err != nil {
		t.Fatalf("writeSector: %v", err)
	}

	dev.Corrupt(lay.dataOffset(0, replicaPrimary), 1)

	got := make([]byte, lay.sectorSize)
	if err := readSector(dev, lay, keys, n, got); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("readSector on corrupted ciphertext: got %v, want ErrAuthentication", err)
	}
}

func TestReadSectorDetectsCorruptMAC(t *testing.T) {
	lay := newLayout(4096, 16)
	dev := NewMemBackingDevice(int64(lay.totalDeviceSize()))
	keys := testKeys(t)

	n := sectorNum(0, replicaPrimary)
	plain := bytes.Repeat([]byte{0x01}, int(lay.sectorSize))
	if err := writeSector(dev, lay, keys, n, append([]byte(nil), plain...)); err != nil {
		t.Fatalf("writeSector: %v", err)
	}

	dev.Corrupt(lay.macOffset(0, replicaPrimary), 1)

	got := make([]byte, lay.sectorSize)
	if err := readSector(dev, lay, keys, n, got); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("readSector on corrupted mac: got %v, want ErrAuthentication", err)
	}
}

func TestReplicasAreIndependentlyEncrypted(t *testing.T) {
	lay := newLayout(4096, 16)
	dev := NewMemBackingDevice(int64(lay.totalDeviceSize()))
	keys := testKeys(t)

	plain := bytes.Repeat([]byte{0x7a}, int(lay.sectorSize))
	if err := writeSector(dev, lay, keys, sectorNum(5, replicaPrimary), append([]byte(nil), plain...)); err != nil {
		t.Fatalf("writeSector primary: %v", err)
	}
	if err := writeSector(dev, lay, keys, sectorNum(5, replicaSecondary), append([]byte(nil), plain...)); err != nil {
		t.Fatalf("writeSector secondary: %v", err)
	}

	var primaryCipher, secondaryCipher [4096]byte
	if err := dev.PhysicalRead(primaryCipher[:], lay.dataOffset(5, replicaPrimary)); err != nil {
		t.Fatal(err)
	}
	if err := dev.PhysicalRead(secondaryCipher[:], lay.dataOffset(5, replicaSecondary)); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(primaryCipher[:], secondaryCipher[:]) {
		t.Fatal("identical plaintext produced identical ciphertext across replicas")
	}
}

func TestReadSectorOutOfRange(t *testing.T) {
	lay := newLayout(4096, 16)
	dev := NewMemBackingDevice(int64(lay.totalDeviceSize()))
	keys := testKeys(t)

	got := make([]byte, lay.sectorSize)
	if err := readSector(dev, lay, keys, sectorNum(16, replicaPrimary), got); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("readSector out of range: got %v, want ErrOutOfRange", err)
	}
}
