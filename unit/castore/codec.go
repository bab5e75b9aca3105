package castore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how file blobs are stored.
type Compression string

const (
	CompressNone Compression = "none"
	CompressZstd Compression = "zstd"
	CompressLZ4  Compression = "lz4"
)

// Blob codec tags recorded per file, so a store can change its compression
// setting without rewriting old snapshots.
const (
	codecRaw  uint8 = 0
	codecZstd uint8 = 1
	codecLZ4  uint8 = 2
)

// minCompressSize is the blob size below which compression is skipped.
const minCompressSize = 64

type blobCodec struct {
	mode Compression
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newBlobCodec(mode Compression) (*blobCodec, error) {
	if mode == "" {
		mode = CompressZstd
	}
	c := &blobCodec{mode: mode}
	switch mode {
	case CompressNone, CompressLZ4:
	case CompressZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		c.enc = enc
	default:
		return nil, fmt.Errorf("castore: unknown compression %q", mode)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	c.dec = dec
	return c, nil
}

// encode returns the stored form of data and its codec tag. Output that does
// not shrink is stored raw.
func (c *blobCodec) encode(data []byte) ([]byte, uint8) {
	if len(data) < minCompressSize {
		return data, codecRaw
	}
	switch c.mode {
	case CompressZstd:
		out := c.enc.EncodeAll(data, make([]byte, 0, len(data)))
		if len(out) < len(data) {
			return out, codecZstd
		}
	case CompressLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err == nil && n > 0 && n < len(data) {
			return buf[:n], codecLZ4
		}
	}
	return data, codecRaw
}

func (c *blobCodec) decode(stored []byte, tag uint8, size int) ([]byte, error) {
	switch tag {
	case codecRaw:
		return stored, nil
	case codecZstd:
		out, err := c.dec.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("castore: zstd: %w", err)
		}
		return out, nil
	case codecLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("castore: lz4: %w", err)
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("castore: unknown blob codec %d", tag)
	}
}
