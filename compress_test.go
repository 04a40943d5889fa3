package boreal

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func frameAll(t *testing.T, method Compression, data []byte) []byte {
	t.Helper()
	var framed bytes.Buffer
	w := newBlockWriter(&framed, method)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return framed.Bytes()
}

func unwrapAll(t *testing.T, framed []byte) []byte {
	t.Helper()
	var r blockReader
	r.push(framed)
	var out []byte
	for {
		block, err := r.next()
		if err == errNeedMore {
			break
		}
		require.NoError(t, err)
		out = append(out, block...)
	}
	require.Equal(t, 0, r.buffered())
	return out
}

func TestBlockRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("boreal block framing "), 1000)
	for name, method := range map[string]Compression{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZSTD,
	} {
		t.Run(name, func(t *testing.T) {
			framed := frameAll(t, method, data)
			if method != CompressionNone {
				require.Less(t, len(framed), len(data))
			}
			require.Equal(t, data, unwrapAll(t, framed))
		})
	}
}

func TestBlockWriterSplitsLargeContent(t *testing.T) {
	var framed bytes.Buffer
	w := newBlockWriter(&framed, CompressionLZ4)
	w.target = 1024

	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	// Dribble the content in to exercise the pending buffer.
	for i := 0; i < len(data); i += 100 {
		_, err := w.Write(data[i : i+100])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	var r blockReader
	r.push(framed.Bytes())
	var out []byte
	blocks := 0
	for {
		block, err := r.next()
		if err == errNeedMore {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(block), 1024)
		out = append(out, block...)
		blocks++
	}
	require.Equal(t, data, out)
	require.Equal(t, 10, blocks)
}

func TestBlockIncompressibleFallsBackToNone(t *testing.T) {
	// Random-ish bytes LZ4 cannot shrink must still round-trip, framed
	// under the "none" tag.
	data := make([]byte, 512)
	state := uint32(2463534242)
	for i := range data {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		data[i] = byte(state)
	}
	framed := frameAll(t, CompressionLZ4, data)
	require.Equal(t, methodNone, framed[0])
	require.Equal(t, data, unwrapAll(t, framed))
}

func TestBlockChecksumMismatch(t *testing.T) {
	framed := frameAll(t, CompressionLZ4, bytes.Repeat([]byte("abcd"), 500))

	// Flip one payload byte.
	framed[blockHeaderSize] ^= 0x01

	var r blockReader
	r.push(framed)
	_, err := r.next()
	var cerr *ChecksumError
	require.ErrorAs(t, err, &cerr)
	require.NotEqual(t, cerr.Stored, cerr.Computed)
}

func TestBlockUnsupportedMethod(t *testing.T) {
	framed := frameAll(t, CompressionNone, []byte("x"))
	framed[0] = 0x42

	var r blockReader
	r.push(framed)
	_, err := r.next()
	var merr *UnsupportedCompressionError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, byte(0x42), merr.Method)
}

func TestBlockSuspendsUntilComplete(t *testing.T) {
	framed := frameAll(t, CompressionZSTD, bytes.Repeat([]byte("suspend me "), 300))

	var r blockReader
	for i := range framed {
		_, err := r.next()
		require.ErrorIs(t, err, errNeedMore)
		require.Equal(t, i, r.buffered(), "suspension must retain all received bytes")
		r.push(framed[i : i+1])
	}
	block, err := r.next()
	require.NoError(t, err)
	require.Equal(t, 0, r.buffered())
	require.NotEmpty(t, block)
}

func TestBlockDeclaredSizeBounds(t *testing.T) {
	var framed [blockHeaderSize]byte
	framed[0] = methodLZ4
	binary.LittleEndian.PutUint32(framed[5:9], maxBlockSize+1)
	binary.LittleEndian.PutUint32(framed[9:13], 16)

	var r blockReader
	r.push(framed[:])
	_, err := r.next()
	require.Error(t, err)
	require.NotErrorIs(t, err, errNeedMore)
	require.Contains(t, err.Error(), "malformed block")
}
