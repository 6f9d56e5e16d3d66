// Package codec compresses artifact payloads at rest with zstd.
// Compression is lossless: Decompress(Compress(p)) returns p byte-for-byte,
// including the empty payload.
package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrCorrupt is returned when a stored blob is not a valid compressed frame.
var ErrCorrupt = errors.New("corrupt compressed payload")

// Codec wraps a reusable zstd encoder/decoder pair. EncodeAll and DecodeAll
// are safe for concurrent use, so one Codec serves a whole store.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a codec at the given compression level.
func New(level zstd.EncoderLevel) (*Codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

var (
	defaultCodec *Codec
	defaultErr   error
	defaultOnce  sync.Once
)

// Default returns the process-wide codec at the default level.
func Default() (*Codec, error) {
	defaultOnce.Do(func() {
		defaultCodec, defaultErr = New(zstd.SpeedDefault)
	})
	return defaultCodec, defaultErr
}

// Compress returns the compressed form of p.
func (c *Codec) Compress(p []byte) []byte {
	return c.enc.EncodeAll(p, make([]byte, 0, len(p)/2+16))
}

// Decompress reverses Compress.
func (c *Codec) Decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorrupt)
	}
	out, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}
