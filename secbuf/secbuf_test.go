package secbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedReleaseZeroes(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	f := NewFixedFrom(src)
	require.True(t, f.Valid())
	require.Equal(t, src, f.Bytes())
	raw := f.Bytes()
	f.Release()
	require.False(t, f.Valid())
	for _, b := range raw {
		require.Equal(t, byte(0), b)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	b := NewBytesFrom([]byte("decoded frame"))
	require.Equal(t, "decoded frame", string(b.Slice()))
	require.Equal(t, len("decoded frame"), b.Len())
	b.Release()
}

func TestBytesReleaseIsIdempotent(t *testing.T) {
	b := NewBytes(KeySize)
	b.Release()
	require.NotPanics(t, func() { b.Release() })
}
