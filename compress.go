package boreal

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// Compression selects how request bodies are compressed and whether the
// client asks the server to compress responses.
type Compression uint8

const (
	// CompressionNone disables compression in both directions. Framed
	// responses are still accepted if the server sends them.
	CompressionNone Compression = iota
	// CompressionLZ4 wraps bodies in LZ4-compressed blocks.
	CompressionLZ4
	// CompressionZSTD wraps bodies in ZSTD-compressed blocks.
	CompressionZSTD
)

// Method tags of the block framing. A block is self-describing: a frame
// may carry any method regardless of what the client asked for.
const (
	methodNone byte = 0x02
	methodLZ4  byte = 0x82
	methodZSTD byte = 0x90
)

// Block frame layout: method tag (1 byte), checksum of the compressed
// payload (4 bytes LE), compressed size (4 bytes LE, payload only),
// uncompressed size (4 bytes LE), then the payload.
const blockHeaderSize = 1 + 4 + 4 + 4

// Declared sizes above this bound are treated as malformed rather than
// allocated.
const maxBlockSize = 1 << 30

// defaultBlockSize is the target uncompressed size of one outbound block.
const defaultBlockSize = 1 << 20

func blockChecksum(payload []byte) uint32 {
	return uint32(xxh3.Hash(payload))
}

var zstdDecoder, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(1),
	zstd.WithDecoderMaxMemory(maxBlockSize),
)

var zstdEncoder, _ = zstd.NewWriter(nil,
	zstd.WithEncoderConcurrency(1),
	zstd.WithEncoderLevel(zstd.SpeedDefault),
)

// blockReader is the read path of the compression framer. Framed bytes
// from the transport are pushed into an inner buffer chain; next unwraps
// one block at a time, verifying its checksum and decompressing its
// payload. Partially received blocks stay buffered until completed.
type blockReader struct {
	raw bufList
}

func (r *blockReader) push(chunk []byte) {
	r.raw.push(chunk)
}

// buffered reports how many framed bytes await a complete block.
func (r *blockReader) buffered() int {
	return r.raw.bytes()
}

// next unwraps the next block and returns its decompressed payload, or
// errNeedMore if the block is not fully buffered yet. Checksum and method
// errors are fatal for the stream.
func (r *blockReader) next() ([]byte, error) {
	lr := newListReader(&r.raw)

	head, err := lr.next(blockHeaderSize)
	if err != nil {
		return nil, err
	}
	method := head[0]
	stored := binary.LittleEndian.Uint32(head[1:5])
	compressed := binary.LittleEndian.Uint32(head[5:9])
	uncompressed := binary.LittleEndian.Uint32(head[9:13])

	switch method {
	case methodNone, methodLZ4, methodZSTD:
	default:
		return nil, &UnsupportedCompressionError{Method: method}
	}
	if compressed > maxBlockSize || uncompressed > maxBlockSize {
		return nil, fmt.Errorf("malformed block: declared sizes %d/%d exceed limit", compressed, uncompressed)
	}
	if method == methodNone && compressed != uncompressed {
		return nil, fmt.Errorf("malformed block: uncompressed frame declares %d payload bytes but %d content bytes", compressed, uncompressed)
	}

	payload, err := lr.next(int(compressed))
	if err != nil {
		return nil, err
	}
	if computed := blockChecksum(payload); computed != stored {
		return nil, &ChecksumError{Stored: stored, Computed: computed}
	}

	out, err := decompressBlock(method, payload, int(uncompressed))
	if err != nil {
		return nil, err
	}
	lr.commit()
	return out, nil
}

func decompressBlock(method byte, payload []byte, uncompressed int) ([]byte, error) {
	switch method {
	case methodNone:
		// The payload view borrows from the buffer chain; the caller
		// keeps the result, so it must be copied out.
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case methodLZ4:
		out := make([]byte, uncompressed)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("malformed block: %w", err)
		}
		if n != uncompressed {
			return nil, fmt.Errorf("malformed block: decompressed to %d bytes, declared %d", n, uncompressed)
		}
		return out, nil
	case methodZSTD:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, uncompressed))
		if err != nil {
			return nil, fmt.Errorf("malformed block: %w", err)
		}
		if len(out) != uncompressed {
			return nil, fmt.Errorf("malformed block: decompressed to %d bytes, declared %d", len(out), uncompressed)
		}
		return out, nil
	default:
		return nil, &UnsupportedCompressionError{Method: method}
	}
}

// blockWriter is the write path of the compression framer. Serialized row
// bytes accumulate up to the target block size and leave as framed blocks
// through the underlying writer. Close flushes the remainder; it does not
// close the underlying writer.
type blockWriter struct {
	w      io.Writer
	method Compression
	// target is the uncompressed size at which a block is cut.
	target  int
	pending []byte
	comp    []byte
	head    [blockHeaderSize]byte
}

func newBlockWriter(w io.Writer, method Compression) *blockWriter {
	return &blockWriter{w: w, method: method, target: defaultBlockSize}
}

func (w *blockWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for len(w.pending) >= w.target {
		if err := w.writeBlock(w.pending[:w.target]); err != nil {
			return 0, err
		}
		w.pending = w.pending[:copy(w.pending, w.pending[w.target:])]
	}
	return len(p), nil
}

// Close frames and writes any pending bytes.
func (w *blockWriter) Close() error {
	if len(w.pending) == 0 {
		return nil
	}
	err := w.writeBlock(w.pending)
	w.pending = w.pending[:0]
	return err
}

func (w *blockWriter) writeBlock(src []byte) error {
	method, payload := w.compress(src)

	w.head[0] = method
	binary.LittleEndian.PutUint32(w.head[1:5], blockChecksum(payload))
	binary.LittleEndian.PutUint32(w.head[5:9], uint32(len(payload)))
	binary.LittleEndian.PutUint32(w.head[9:13], uint32(len(src)))
	if _, err := w.w.Write(w.head[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

// compress returns the method tag and payload for one block. Content the
// configured method cannot shrink is framed as-is under the "none" tag.
func (w *blockWriter) compress(src []byte) (byte, []byte) {
	switch w.method {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(src))
		if cap(w.comp) < bound {
			w.comp = make([]byte, bound)
		}
		n, err := lz4.CompressBlock(src, w.comp[:bound], nil)
		if err != nil || n == 0 || n >= len(src) {
			return methodNone, src
		}
		return methodLZ4, w.comp[:n]
	case CompressionZSTD:
		w.comp = zstdEncoder.EncodeAll(src, w.comp[:0])
		if len(w.comp) >= len(src) {
			return methodNone, src
		}
		return methodZSTD, w.comp
	default:
		return methodNone, src
	}
}
