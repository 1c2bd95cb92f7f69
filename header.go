package titanvolume

import (
	"encoding/binary"
	"fmt"
)

// magic identifies a titanvolume backing device. Normative for on-disk
// compatibility.
var magic = [8]byte{'T', 'I', 'T', 'A', 'N', 'T', 'S', 'V'}

// headerVersion is the only on-disk format version this package
// understands.
const headerVersion = 0x0100

// header is the decoded form of the 64-byte volume header (§4.3 of the
// on-disk format). Field order and sizes are normative.
type header struct {
	sectorSize  uint32
	sectorCount uint32
}

// encode serializes h into exactly HeaderSize bytes: magic(8) ||
// version(2) || sector_size(4) || sector_count(4) || padding(46). The
// padding is filled with caller-supplied random bytes so that two
// headers for identically-parameterized volumes are not
// bit-identical before encryption.
func (h header) encode(randomPadding [HeaderSize - 18]byte) [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], headerVersion)
	binary.LittleEndian.PutUint32(buf[10:14], h.sectorSize)
	binary.LittleEndian.PutUint32(buf[14:18], h.sectorCount)
	copy(buf[18:], randomPadding[:])
	return buf
}

// decodeHeader parses a decrypted HeaderSize-byte buffer, checking
// magic and version. It does not perform parameter sanity checks
// (sector_size/sector_count bounds) — callers must run those
// separately via validateParameters.
func decodeHeader(buf [HeaderSize]byte) (header, error) {
	if [8]byte(buf[0:8]) != magic {
		return header{}, fmt.Errorf("%w: bad magic", ErrHeaderInvalid)
	}
	if version := binary.LittleEndian.Uint16(buf[8:10]); version != headerVersion {
		return header{}, fmt.Errorf("%w: unsupported version %#04x", ErrHeaderInvalid, version)
	}
	return header{
		sectorSize:  binary.LittleEndian.Uint32(buf[10:14]),
		sectorCount: binary.LittleEndian.Uint32(buf[14:18]),
	}, nil
}

// writeHeader builds, encrypts, MACs, and writes the volume header to
// the start of dev. The remainder of the first sector (beyond
// HeaderSize+MACTagSize bytes) is filled with random padding so the
// unused tail of the header sector is indistinguishable from the MAC
// tables' random padding.
//
// sectorSize must already have passed validateParameters; writeHeader
// does not re-check it, but does rely on sectorSize >= HeaderSize+MACTagSize
// to size the trailing padding.
func writeHeader(dev BackingDevice, keys Keys, sectorSize, sectorCount uint32) error {
	var randomPadding [HeaderSize - 18]byte
	dev.ReadURandom(randomPadding[:])

	plain := header{sectorSize: sectorSize, sectorCount: sectorCount}.encode(randomPadding)

	sector := make([]byte, sectorSize)
	Encrypt(sector[:HeaderSize], keys.EncryptionKey[:], plain[:], headerSectorTag)

	tag := Mac(keys.MACKey[:], sector[:HeaderSize], headerSectorTag)
	copy(sector[HeaderSize:HeaderSize+MACTagSize], tag[:])

	dev.ReadURandom(sector[HeaderSize+MACTagSize:])

	return dev.PhysicalWrite(0, sector)
}

// readHeader reads, authenticates, decrypts, and decodes the volume
// header at the start of dev. It reads exactly HeaderSize+MACTagSize
// bytes — never more than one sector's worth — so it works even before
// sector_size is known.
func readHeader(dev BackingDevice, keys Keys) (header, error) {
	var buf [HeaderSize + MACTagSize]byte
	if err := dev.PhysicalRead(buf[:], 0); err != nil {
		return header{}, fmt.Errorf("read header: %w", err)
	}

	ciphertext := buf[:HeaderSize]
	storedTag := buf[HeaderSize:]

	computedTag := Mac(keys.MACKey[:], ciphertext, headerSectorTag)
	if !constantTimeEqual(storedTag, computedTag[:]) {
		return header{}, fmt.Errorf("%w: mac mismatch", ErrHeaderInvalid)
	}

	var plain [HeaderSize]byte
	Decrypt(plain[:], keys.EncryptionKey[:], ciphertext, headerSectorTag)

	return decodeHeader(plain)
}
