// Package crypto implements the BM2 payload cipher: AES-128-CBC with a zero
// IV and a key baked into the device firmware. Every notification and every
// command travels through it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// BlockSize is the AES block size. Plaintexts are zero padded to a multiple of it.
const BlockSize = aes.BlockSize

// key is shared with the BM2 firmware and cannot be changed.
var key = [16]byte{0x6c, 0x65, 0x61, 0x67, 0x65, 0x6e, 0x64, 0xff, 0xfe, 0x31, 0x38, 0x38, 0x32, 0x34, 0x36, 0x36}

// ErrBlockSize is returned by Decrypt when the ciphertext is not a whole
// number of blocks.
var ErrBlockSize = errors.New("ble/crypto: ciphertext is not a multiple of the block size")

func newBlock() cipher.Block {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// key is a fixed 16-byte array, NewCipher cannot reject it.
		panic(fmt.Sprintf("ble/crypto: new cipher: %v", err))
	}
	return block
}

// Pad right-pads data with zero bytes up to the next block boundary.
// Data that is already block aligned (including empty data) is returned as a copy.
func Pad(data []byte) []byte {
	size := (len(data) + BlockSize - 1) / BlockSize * BlockSize
	out := make([]byte, size)
	copy(out, data)
	return out
}

// Encrypt zero-pads plaintext and encrypts it. The result is always block aligned.
func Encrypt(plaintext []byte) []byte {
	buf := Pad(plaintext)
	var iv [BlockSize]byte
	cipher.NewCBCEncrypter(newBlock(), iv[:]).CryptBlocks(buf, buf)
	return buf
}

// Decrypt decrypts ciphertext. Padding is not removed: callers read fixed
// offsets and ignore the trailing zeros.
func Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBlockSize, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	var iv [BlockSize]byte
	cipher.NewCBCDecrypter(newBlock(), iv[:]).CryptBlocks(out, ciphertext)
	return out, nil
}
