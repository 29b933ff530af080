package cache

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil)
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// compress zstd-encodes data. Blobs below Options.CompressMinSize are left
// uncompressed by the caller; this helper always compresses what it's
// given.
func compress(data []byte) []byte {
	return getEncoder().EncodeAll(data, make([]byte, 0, len(data)))
}

func decompress(data []byte) ([]byte, error) {
	return getDecoder().DecodeAll(data, nil)
}
