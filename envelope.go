package titanvolume

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/aead/skein/threefish"
)

// MACTagSize is the size in bytes of a sector MAC (HMAC-SHA-256 output).
const MACTagSize = 32

// EncryptionBlockSize is the Threefish-512 block size. sector_size must
// always be a multiple of this.
const EncryptionBlockSize = threefish.BlockSize512

// FatalErrorHook is called when a caller-driven contract violation is
// detected in the envelope (a length that is not a multiple of
// EncryptionBlockSize). Per the on-disk format's design, this is not an
// error a caller can recover from — it indicates a programming error in
// the layer above the envelope, not a corrupt disk. The default hook
// panics. It is a package-level variable, separate from
// BackingDevice.FatalError: the envelope, layout, and sector routines
// call this hook and never a device's FatalError.
var FatalErrorHook = func(reason string) { panic("titanvolume: fatal: " + reason) }

// buildTweak constructs the 16-byte Threefish tweak for block blockIndex
// of a region tagged with sectorTag: u32_le(sectorTag) ||
// u64_le(blockIndex) || four zero bytes. This layout, and the fact that
// the tweak changes per 64-byte block, are part of the on-disk format and
// must not change.
func buildTweak(sectorTag uint32, blockIndex uint64) [threefish.TweakSize]byte {
	var tweak [threefish.TweakSize]byte
	binary.LittleEndian.PutUint32(tweak[0:4], sectorTag)
	binary.LittleEndian.PutUint64(tweak[4:12], blockIndex)
	return tweak
}

// cryptBlocks runs the tweaked Threefish-512 block cipher over src into
// dst, one EncryptionBlockSize block at a time, using a fresh tweak
// (and thus a fresh cipher.Block) for every block. decrypt selects the
// block's Decrypt method instead of Encrypt.
func cryptBlocks(dst, key, src []byte, sectorTag uint32, decrypt bool) {
	if len(src)%EncryptionBlockSize != 0 {
		FatalErrorHook("crypt length not a multiple of the encryption block size")
		return
	}
	for blockIndex := 0; len(src) > 0; blockIndex++ {
		tweak := buildTweak(sectorTag, uint64(blockIndex))
		block, err := threefish.NewCipher(&tweak, key)
		if err != nil {
			// Only possible cause is a key of the wrong length, which is a
			// caller contract violation, not a runtime disk condition.
			FatalErrorHook("threefish key setup: " + err.Error())
			return
		}
		if decrypt {
			block.Decrypt(dst[:EncryptionBlockSize], src[:EncryptionBlockSize])
		} else {
			block.Encrypt(dst[:EncryptionBlockSize], src[:EncryptionBlockSize])
		}
		dst = dst[EncryptionBlockSize:]
		src = src[EncryptionBlockSize:]
	}
}

// Encrypt encrypts src (whose length must be a multiple of
// EncryptionBlockSize) into dst under key, tweaked per-block by
// sectorTag and the block's index within src. dst and src may overlap
// only if they are identical (in-place encryption), matching the
// original envelope's calling convention.
//
// len(src) not a multiple of EncryptionBlockSize is a programming error
// and invokes FatalErrorHook rather than returning an error.
func Encrypt(dst, key, src []byte, sectorTag uint32) {
	cryptBlocks(dst, key, src, sectorTag, false)
}

// Decrypt is the inverse of Encrypt; see Encrypt for the calling
// convention and the fatal-error behavior on misaligned length.
func Decrypt(dst, key, src []byte, sectorTag uint32) {
	cryptBlocks(dst, key, src, sectorTag, true)
}

// Mac computes the 32-byte HMAC-SHA-256 of src followed by
// u32_le(sectorTag), under key. The sector tag is appended as the
// final bytes of the HMAC input, binding the MAC to its logical
// position; this is part of the on-disk format.
func Mac(key, src []byte, sectorTag uint32) [MACTagSize]byte {
	var tagBytes [4]byte
	binary.LittleEndian.PutUint32(tagBytes[:], sectorTag)

	h := hmac.New(sha256.New, key)
	_, _ = h.Write(src)
	_, _ = h.Write(tagBytes[:])

	var out [MACTagSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// constantTimeEqual reports whether a and b are byte-for-byte equal,
// without early-exiting on the first mismatch. Used in place of
// bytes.Equal anywhere a MAC comparison result must not leak timing
// information about where two tags first diverge.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var acc byte
	for i := range a {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}
