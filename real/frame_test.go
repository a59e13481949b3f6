package real

import (
	"testing"

	"github.com/opd-ai/nowlink/internal/linkcrypto"
	"github.com/opd-ai/nowlink/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeDecode(t *testing.T) {
	in := frame{src: addrA, dst: addrB, payload: []byte("hello")}
	b := in.encode()
	assert.Len(t, b, headerLen+5)

	out, err := decodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, addrA, out.src)
	assert.Equal(t, addrB, out.dst)
	assert.False(t, out.sealed)
	assert.Equal(t, []byte("hello"), out.payload)
}

func TestSealedFrameEncodeDecode(t *testing.T) {
	nonce := make([]byte, linkcrypto.NonceSize)
	nonce[0] = 7
	sealed := make([]byte, 10+linkcrypto.Overhead)
	in := frame{src: addrA, dst: addrB, sealed: true, nonce: nonce, payload: sealed}

	out, err := decodeFrame(in.encode())
	require.NoError(t, err)
	assert.True(t, out.sealed)
	assert.Equal(t, nonce, out.nonce)
	assert.Len(t, out.payload, len(sealed))
}

func TestDecodeFrameRejects(t *testing.T) {
	valid := (&frame{src: addrA, dst: addrB, payload: []byte("x")}).encode()

	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'
	badVersion := append([]byte(nil), valid...)
	badVersion[2] = 9
	shortSealed := append([]byte(nil), valid...)
	shortSealed[3] = flagSealed
	oversized := (&frame{src: addrA, dst: addrB, payload: make([]byte, limits.MaxPayload+1)}).encode()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:headerLen-1]},
		{"no payload", valid[:headerLen]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
		{"short sealed", shortSealed},
		{"oversized", oversized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFrame(tt.data)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}
