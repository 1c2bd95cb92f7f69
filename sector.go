package titanvolume

import "fmt"

// readSector authenticates and decrypts sector n (logical index packed
// with a replica selector in bit 31, per §4.2) into dst, which must be
// exactly sectorSize bytes. On a MAC mismatch it returns an error
// wrapping ErrAuthentication; the caller (not readSector) is
// responsible for incrementing corruption_count and retrying the
// other replica, per the replica-fallback policy in §4.5.
func readSector(dev BackingDevice, lay layout, keys Keys, n uint32, dst []byte) error {
	if len(dst) != int(lay.sectorSize) {
		FatalErrorHook("readSector: destination buffer is not sector-sized")
		return nil
	}

	index, r := splitSectorNum(n)
	if index >= lay.sectorCount {
		return fmt.Errorf("%w: sector %d out of range", ErrOutOfRange, index)
	}

	if err := dev.PhysicalRead(dst, lay.dataOffset(index, r)); err != nil {
		return fmt.Errorf("read sector %d ciphertext: %w", index, err)
	}

	var storedMAC [MACTagSize]byte
	if err := dev.PhysicalRead(storedMAC[:], lay.macOffset(index, r)); err != nil {
		return fmt.Errorf("read sector %d mac: %w", index, err)
	}

	tag := sectorTagFor(n)
	computedMAC := Mac(keys.MACKey[:], dst, tag)
	if !constantTimeEqual(storedMAC[:], computedMAC[:]) {
		return fmt.Errorf("%w: sector %d replica %d", ErrAuthentication, index, r)
	}

	Decrypt(dst, keys.EncryptionKey[:], dst, tag)
	return nil
}

// writeSector encrypts src (plaintext, exactly sectorSize bytes) in
// place and persists the resulting ciphertext and its MAC to sector
// n's replica. On return, src holds ciphertext — callers that still
// need the plaintext must keep their own copy; writeBothReplicas passes
// each replica a fresh copy of the plaintext.
func writeSector(dev BackingDevice, lay layout, keys Keys, n uint32, src []byte) error {
	if len(src) != int(lay.sectorSize) {
		FatalErrorHook("writeSector: source buffer is not sector-sized")
		return nil
	}

	index, r := splitSectorNum(n)
	if index >= lay.sectorCount {
		return fmt.Errorf("%w: sector %d out of range", ErrOutOfRange, index)
	}

	tag := sectorTagFor(n)
	Encrypt(src, keys.EncryptionKey[:], src, tag)
	mac := Mac(keys.MACKey[:], src, tag)

	if err := dev.PhysicalWrite(lay.dataOffset(index, r), src); err != nil {
		return fmt.Errorf("write sector %d ciphertext: %w", index, err)
	}
	if err := dev.PhysicalWrite(lay.macOffset(index, r), mac[:]); err != nil {
		return fmt.Errorf("write sector %d mac: %w", index, err)
	}
	return nil
}
