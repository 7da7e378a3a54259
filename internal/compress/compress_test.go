package compress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/masc-mcp/masc/internal/compress"
	"github.com/stretchr/testify/require"
)

func TestCompressHeaderAndRoundTrip(t *testing.T) {
	x := []byte(strings.Repeat("A", 500) + strings.Repeat("B", 500) + strings.Repeat("C", 500))

	out := compress.Compress(x)
	require.True(t, bytes.HasPrefix(out, []byte{'Z', 'S', 'T', 'D', 0}))
	require.Equal(t, byte(0x00), out[5])
	require.Equal(t, byte(0x00), out[6])
	require.Equal(t, byte(0x05), out[7])
	require.Equal(t, byte(0xDC), out[8])
	require.Less(t, len(out), len(x))

	back, err := compress.Decompress(out)
	require.NoError(t, err)
	require.Equal(t, x, back)
}

func TestDecompressAutoPassesThroughUncompressed(t *testing.T) {
	plain := []byte("just a short uncompressed message")
	out, err := compress.DecompressAuto(plain)
	require.NoError(t, err)
	require.Equal(t, plain, out)
}

func TestDecompressAutoDecodesEnvelope(t *testing.T) {
	x := []byte(strings.Repeat("hello room ", 100))
	envelope := compress.Compress(x)
	out, err := compress.DecompressAuto(envelope)
	require.NoError(t, err)
	require.Equal(t, x, out)
}

func TestCompressWithDictionaryMagic(t *testing.T) {
	out := compress.CompressWithDictionary([]byte("some data"))
	require.True(t, bytes.HasPrefix(out, []byte{'Z', 'S', 'T', 'D', 'D'}))
	require.True(t, compress.IsCompressed(out))
}

func TestIsCompressedRejectsShortOrPlain(t *testing.T) {
	require.False(t, compress.IsCompressed([]byte("short")))
	require.False(t, compress.IsCompressed([]byte("not a compressed envelope at all")))
}
