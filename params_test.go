package titanvolume

import (
	"errors"
	"testing"
)

func TestValidateParametersAccepts(t *testing.T) {
	if err := validateParameters(4096, 1024); err != nil {
		t.Fatalf("validateParameters(4096, 1024): %v", err)
	}
}

func TestValidateParametersRejectsZeroSectorSize(t *testing.T) {
	if err := validateParameters(0, 1024); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestValidateParametersRejectsMisalignedSectorSize(t *testing.T) {
	if err := validateParameters(EncryptionBlockSize+1, 1024); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestValidateParametersRejectsTooSmallSectorSize(t *testing.T) {
	if err := validateParameters(EncryptionBlockSize, 1024); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestValidateParametersRejectsTooLargeSectorSize(t *testing.T) {
	if err := validateParameters(MaxSectorSize+EncryptionBlockSize, 16); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestValidateParametersRejectsReplicaBitSet(t *testing.T) {
	if err := validateParameters(4096, replicaSecondaryBit|1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

// The largest geometry validateParameters admits (MaxSectorSize x
// 0x7fffffff sectors) needs about 2^52 bytes of backing device, well
// under the 2^63-1 limit, so it is accepted.
func TestValidateParametersAcceptsLargestGeometry(t *testing.T) {
	if err := validateParameters(MaxSectorSize, 0x7fffffff); err != nil {
		t.Fatalf("validateParameters(MaxSectorSize, 0x7fffffff): %v", err)
	}
}

func TestKeysZero(t *testing.T) {
	keys := testKeys(t)
	keys.zero()
	for i, b := range keys.MACKey {
		if b != 0 {
			t.Fatalf("MACKey[%d] = %d, want 0", i, b)
		}
	}
	for i, b := range keys.EncryptionKey {
		if b != 0 {
			t.Fatalf("EncryptionKey[%d] = %d, want 0", i, b)
		}
	}
}

func TestVolumeParamsSizes(t *testing.T) {
	p := VolumeParams{SectorSize: 4096, SectorCount: 16}
	if p.VolumeSize() != 4096*16 {
		t.Fatalf("VolumeSize() = %d, want %d", p.VolumeSize(), 4096*16)
	}
	if p.TotalDeviceSize() <= p.VolumeSize() {
		t.Fatal("TotalDeviceSize() should exceed VolumeSize() (header + mac tables + mirrored replica)")
	}
}
