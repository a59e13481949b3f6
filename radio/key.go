package radio

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"runtime"
)

// KeyLen is the length in bytes of primary and local link keys.
const KeyLen = 16

// Key is a link-layer symmetric secret.
type Key [KeyLen]byte

// NewKey copies b into a Key. b must be exactly KeyLen bytes.
func NewKey(b []byte) (Key, error) {
	var k Key
	if len(b) != KeyLen {
		return k, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), KeyLen)
	}
	copy(k[:], b)
	return k, nil
}

// ParseKey decodes a hex encoded key.
func ParseKey(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewKey(b)
}

// Equal compares two keys in constant time.
func (k Key) Equal(other Key) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// String never prints key material.
func (k Key) String() string {
	return "Key(redacted)"
}

// Wipe zeroes the key in place.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	for i := range k {
		k[i] = 0
	}
	runtime.KeepAlive(k)
}
