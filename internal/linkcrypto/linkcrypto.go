// Package linkcrypto seals and opens radio frames exchanged between two
// encrypted peers.
//
// Each direction of a link has its own key, derived with HKDF-SHA256 from the
// sender's primary master key, the peer's local master key and both hardware
// addresses. Frames are sealed with NaCl secretbox, so a frame replayed on a
// different link or in the other direction fails to open.
package linkcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/nowlink/radio"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// NonceSize is the length of the nonce carried with every sealed frame.
const NonceSize = 24

// Overhead is the number of bytes sealing adds to a payload.
const Overhead = secretbox.Overhead

const keyInfo = "nowlink link key"

// ErrOpen is returned when a sealed frame fails authentication.
var ErrOpen = errors.New("linkcrypto: frame authentication failed")

func deriveKey(pmk, lmk radio.Key, src, dst radio.Address) (*[32]byte, error) {
	info := make([]byte, 0, len(keyInfo)+2*radio.AddressLen)
	info = append(info, keyInfo...)
	info = append(info, src[:]...)
	info = append(info, dst[:]...)

	var key [32]byte
	kdf := hkdf.New(sha256.New, lmk[:], pmk[:], info)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, fmt.Errorf("derive link key: %w", err)
	}
	return &key, nil
}

// Seal encrypts payload for the link src -> dst and returns a fresh random
// nonce with the ciphertext.
func Seal(pmk, lmk radio.Key, src, dst radio.Address, payload []byte) (nonce, sealed []byte, err error) {
	key, err := deriveKey(pmk, lmk, src, dst)
	if err != nil {
		return nil, nil, err
	}
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, nil, err
	}
	return n[:], secretbox.Seal(nil, payload, &n, key), nil
}

// Open authenticates and decrypts a frame sealed by Seal.
func Open(pmk, lmk radio.Key, src, dst radio.Address, nonce, sealed []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", ErrOpen, len(nonce))
	}
	key, err := deriveKey(pmk, lmk, src, dst)
	if err != nil {
		return nil, err
	}
	var n [NonceSize]byte
	copy(n[:], nonce)
	plain, ok := secretbox.Open(nil, sealed, &n, key)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
