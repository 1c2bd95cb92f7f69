package titanvolume

// replicaSecondaryBit is the high bit of a 32-bit sector number; it
// selects the secondary replica when set, the primary when clear. This
// overloading is part of the on-disk format (see the replica-selector
// design note) and must not change.
const replicaSecondaryBit = uint32(0x8000_0000)

// HeaderSize is the size in bytes of the encoded-but-unencrypted volume
// header (exactly one Threefish-512 encryption block). It is
// normative for on-disk compatibility.
const HeaderSize = 64

// headerSectorTag is the sector tag used for the header's envelope.
const headerSectorTag = 0

// replica identifies one of the two mirrored copies of a sector.
type replica uint8

const (
	replicaPrimary replica = iota
	replicaSecondary
)

func (r replica) other() replica {
	if r == replicaPrimary {
		return replicaSecondary
	}
	return replicaPrimary
}

// sectorNum packs a logical sector index and a replica selector into
// the 32-bit value threaded between the byte-range and sector-I/O
// layers, matching the on-disk format's bit-31 replica selector.
func sectorNum(index uint32, r replica) uint32 {
	if r == replicaSecondary {
		return index | replicaSecondaryBit
	}
	return index
}

func splitSectorNum(n uint32) (index uint32, r replica) {
	if n&replicaSecondaryBit != 0 {
		return n &^ replicaSecondaryBit, replicaSecondary
	}
	return n, replicaPrimary
}

// sectorTagFor derives the 32-bit crypto tag for a given packed sector
// number: the full 32-bit value (index, with bit 31 set for the
// secondary replica) plus one. Tag 0 is reserved for the header.
func sectorTagFor(n uint32) uint32 {
	return n + 1
}

// roundupUint64 rounds num up to the nearest multiple of mod. mod must
// be nonzero and the result must not overflow; either violation is a
// programming error (the caller passed a zero or already-overflowing
// size), not a runtime disk condition, so it invokes FatalErrorHook.
func roundupUint64(num, mod uint64) uint64 {
	if mod == 0 {
		FatalErrorHook("roundup: zero modulus")
		return 0
	}
	remainder := num % mod
	if remainder == 0 {
		return num
	}
	result := num + (mod - remainder)
	if result < num {
		FatalErrorHook("roundup: overflow")
		return 0
	}
	return result
}

// layout captures the physical geometry derived from sector_size and
// sector_count (see §4.2 of the on-disk format): one header sector,
// followed by a primary MAC table + primary data region, followed by a
// secondary MAC table + secondary data region.
type layout struct {
	sectorSize   uint32
	sectorCount  uint32
	macTableSize uint64
	volumeSize   uint64
}

func newLayout(sectorSize, sectorCount uint32) layout {
	macTableSize := roundupUint64(uint64(sectorCount)*MACTagSize, uint64(sectorSize))
	volumeSize := uint64(sectorSize) * uint64(sectorCount)
	return layout{
		sectorSize:   sectorSize,
		sectorCount:  sectorCount,
		macTableSize: macTableSize,
		volumeSize:   volumeSize,
	}
}

// replicaBase returns the byte offset of the start of replica r's
// MAC-table-plus-data region.
func (l layout) replicaBase(r replica) uint64 {
	if r == replicaPrimary {
		return uint64(l.sectorSize)
	}
	return uint64(l.sectorSize) + l.macTableSize + l.volumeSize
}

// dataOffset returns the physical byte offset of sector index's
// ciphertext within replica r.
func (l layout) dataOffset(index uint32, r replica) uint64 {
	return l.replicaBase(r) + l.macTableSize + uint64(index)*uint64(l.sectorSize)
}

// macOffset returns the physical byte offset of sector index's stored
// MAC tag within replica r.
func (l layout) macOffset(index uint32, r replica) uint64 {
	return l.replicaBase(r) + uint64(index)*MACTagSize
}

// totalDeviceSize returns the minimum backing-device size this layout
// requires: the header sector plus both replicas' MAC tables and data
// regions.
func (l layout) totalDeviceSize() uint64 {
	return uint64(l.sectorSize) + 2*(l.macTableSize+l.volumeSize)
}

// macTablePadding returns the offset and length of the unused tail of
// replica r's MAC table: the span from the last real MAC tag up to the
// table's sector-aligned end. This span holds no sector's tag and must
// be filled with random bytes at Create time so it is indistinguishable
// from a real MAC table entry.
func (l layout) macTablePadding(r replica) (offset, length uint64) {
	used := uint64(l.sectorCount) * MACTagSize
	return l.replicaBase(r) + used, l.macTableSize - used
}
