package real

import (
	"errors"
	"fmt"

	"github.com/opd-ai/nowlink/internal/linkcrypto"
	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/radio"
)

// FrameVersion is the UDP frame format version, reported by UDPRadio.Version.
const FrameVersion uint32 = 1

// Frame layout:
//
//	0      2        3       4         10        16
//	+------+--------+-------+---------+---------+-----------------------+
//	| "NL" | version| flags | src MAC | dst MAC | [nonce] payload       |
//	+------+--------+-------+---------+---------+-----------------------+
//
// A sealed frame carries a linkcrypto nonce before the ciphertext.
const (
	frameMagic0 = 'N'
	frameMagic1 = 'L'

	headerLen = 4 + 2*radio.AddressLen

	flagSealed = 0x01

	// maxFrameLen is the largest frame a conforming sender produces.
	maxFrameLen = headerLen + linkcrypto.NonceSize + limits.MaxPayload + linkcrypto.Overhead
)

// ErrMalformedFrame is returned when a datagram is not a nowlink frame.
var ErrMalformedFrame = errors.New("malformed frame")

type frame struct {
	src, dst radio.Address
	sealed   bool
	nonce    []byte
	payload  []byte
}

// encode appends f to a fresh buffer.
func (f *frame) encode() []byte {
	n := headerLen + len(f.payload)
	if f.sealed {
		n += len(f.nonce)
	}
	b := make([]byte, 0, n)
	var flags byte
	if f.sealed {
		flags |= flagSealed
	}
	b = append(b, frameMagic0, frameMagic1, byte(FrameVersion), flags)
	b = append(b, f.src[:]...)
	b = append(b, f.dst[:]...)
	if f.sealed {
		b = append(b, f.nonce...)
	}
	return append(b, f.payload...)
}

// decodeFrame parses b. The nonce and payload of the result alias b.
func decodeFrame(b []byte) (frame, error) {
	var f frame
	if len(b) < headerLen {
		return f, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(b))
	}
	if b[0] != frameMagic0 || b[1] != frameMagic1 {
		return f, fmt.Errorf("%w: bad magic", ErrMalformedFrame)
	}
	if uint32(b[2]) != FrameVersion {
		return f, fmt.Errorf("%w: version %d", ErrMalformedFrame, b[2])
	}
	flags := b[3]
	copy(f.src[:], b[4:4+radio.AddressLen])
	copy(f.dst[:], b[4+radio.AddressLen:headerLen])
	rest := b[headerLen:]

	if flags&flagSealed != 0 {
		if len(rest) < linkcrypto.NonceSize+linkcrypto.Overhead {
			return f, fmt.Errorf("%w: sealed frame too short", ErrMalformedFrame)
		}
		f.sealed = true
		f.nonce = rest[:linkcrypto.NonceSize]
		rest = rest[linkcrypto.NonceSize:]
	}
	f.payload = rest

	plain := len(f.payload)
	if f.sealed {
		plain -= linkcrypto.Overhead
	}
	if plain == 0 || plain > limits.MaxPayload {
		return f, fmt.Errorf("%w: payload %d bytes", ErrMalformedFrame, plain)
	}
	return f, nil
}
