// Package compress implements the room's transparent compression envelope:
// a 5-byte magic, a big-endian 4-byte original size, then the compressed
// body. A consumer that sees no magic passes the bytes through unchanged.
package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Magic prefixes identify the envelope and whether a dictionary was used.
var (
	MagicPlain      = [5]byte{'Z', 'S', 'T', 'D', 0}
	MagicDictionary = [5]byte{'Z', 'S', 'T', 'D', 'D'}
)

const headerLen = 5 + 4

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("compress: building zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("compress: building zstd decoder: %v", err))
	}
}

// Compress wraps x in the standard envelope: magic, original size, then
// the zstd-compressed body.
func Compress(x []byte) []byte {
	var buf bytes.Buffer
	buf.Write(MagicPlain[:])
	var sizeHdr [4]byte
	binary.BigEndian.PutUint32(sizeHdr[:], uint32(len(x)))
	buf.Write(sizeHdr[:])
	buf.Write(encoder.EncodeAll(x, nil))
	return buf.Bytes()
}

// CompressWithDictionary is identical to Compress but tags the envelope
// with the dictionary magic, for consumers that know to apply one on
// decode. The core does not implement dictionary training itself.
func CompressWithDictionary(x []byte) []byte {
	out := Compress(x)
	copy(out[:5], MagicDictionary[:])
	return out
}

// IsCompressed reports whether data begins with a recognized envelope
// magic.
func IsCompressed(data []byte) bool {
	if len(data) < headerLen {
		return false
	}
	return bytes.Equal(data[:5], MagicPlain[:]) || bytes.Equal(data[:5], MagicDictionary[:])
}

// Decompress reverses Compress/CompressWithDictionary, returning the
// original bytes.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("compress: envelope too short (%d bytes)", len(data))
	}
	originalSize := binary.BigEndian.Uint32(data[5:9])
	out, err := decoder.DecodeAll(data[headerLen:], make([]byte, 0, originalSize))
	if err != nil {
		return nil, fmt.Errorf("compress: decoding body: %w", err)
	}
	if uint32(len(out)) != originalSize {
		return nil, fmt.Errorf("compress: decoded size %d does not match header %d", len(out), originalSize)
	}
	return out, nil
}

// DecompressAuto passes data through unchanged if it doesn't carry a
// recognized envelope magic, and decompresses it otherwise — the
// transparent-passthrough contract consumers rely on.
func DecompressAuto(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	return Decompress(data)
}
