package titanvolume

import "fmt"

// MaxSectorSize bounds how large a single sector may be. The original
// format ties this to a fixed global buffer (BUFFER_SIZE in the source
// implementation); this Go port allocates its per-session buffer
// dynamically, so the bound here exists only to reject pathological
// parameters before they turn into a multi-gigabyte allocation, not
// because of any fixed buffer.
const MaxSectorSize = 1 << 20 // 1 MiB

// KeySize is the size in bytes of both the MAC key and the encryption
// key.
const KeySize = 64

// Keys holds the symmetric key material for a volume: a MAC key and an
// encryption key, each KeySize bytes. Keys are copied into a Session on
// Create/Open and zeroed on Close.
type Keys struct {
	MACKey        [KeySize]byte
	EncryptionKey [KeySize]byte
}

func (k *Keys) zero() {
	k.MACKey = [KeySize]byte{}
	k.EncryptionKey = [KeySize]byte{}
}

// VolumeParams are the immutable-for-the-volume's-lifetime parameters
// recorded in the header.
type VolumeParams struct {
	SectorSize  uint32
	SectorCount uint32
}

// MACTableSize returns sector_count MAC tags, padded up to a sector
// boundary.
func (p VolumeParams) MACTableSize() uint64 {
	return newLayout(p.SectorSize, p.SectorCount).macTableSize
}

// VolumeSize returns the total addressable logical size of the volume.
func (p VolumeParams) VolumeSize() uint64 {
	return uint64(p.SectorSize) * uint64(p.SectorCount)
}

// TotalDeviceSize returns the minimum backing-device size required to
// hold the header, both MAC tables, and both data regions.
func (p VolumeParams) TotalDeviceSize() uint64 {
	return newLayout(p.SectorSize, p.SectorCount).totalDeviceSize()
}

// validateParameters checks sector_size and sector_count against the
// rules in §3 of the on-disk format: nonzero, a multiple of the
// encryption block size, large enough to hold the header and its MAC,
// not larger than MaxSectorSize, sector_count's high bit clear (it is
// reserved as the replica selector), and the total device size
// computation must not overflow 64 bits.
func validateParameters(sectorSize, sectorCount uint32) error {
	if sectorSize == 0 {
		return fmt.Errorf("%w: sector_size must be nonzero", ErrInvalidParameter)
	}
	if sectorSize%EncryptionBlockSize != 0 {
		return fmt.Errorf("%w: sector_size must be a multiple of %d", ErrInvalidParameter, EncryptionBlockSize)
	}
	if sectorSize < HeaderSize+MACTagSize {
		return fmt.Errorf("%w: sector_size must be at least %d", ErrInvalidParameter, HeaderSize+MACTagSize)
	}
	if sectorSize > MaxSectorSize {
		return fmt.Errorf("%w: sector_size exceeds the %d-byte limit", ErrInvalidParameter, MaxSectorSize)
	}
	if sectorCount&replicaSecondaryBit != 0 {
		return fmt.Errorf("%w: sector_count's high bit is reserved for the replica selector", ErrInvalidParameter)
	}

	macTableSize := roundupUint64(uint64(sectorCount)*MACTagSize, uint64(sectorSize))
	volumeSize := uint64(sectorSize) * uint64(sectorCount)

	const maxInt63 = uint64(1)<<63 - 1
	doubled := 2 * (macTableSize + volumeSize)
	if doubled < macTableSize+volumeSize { // overflow in the doubling
		return fmt.Errorf("%w: volume size overflows", ErrInvalidParameter)
	}
	total := doubled + uint64(sectorSize)
	if total < doubled { // overflow adding the header sector
		return fmt.Errorf("%w: volume size overflows", ErrInvalidParameter)
	}
	if total > maxInt63 {
		return fmt.Errorf("%w: volume size exceeds 2^63-1", ErrInvalidParameter)
	}

	return nil
}
