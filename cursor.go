/*
 * Copyright 2025 BorealDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package boreal

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// readChunkSize is how much the cursor asks the transport for at a time.
const readChunkSize = 64 << 10

// Cursor streams rows out of one response body. It is single-use: after
// the first error (including io.EOF at the end of the stream) it stays in
// that terminal state. A Cursor is not safe for concurrent use.
type Cursor struct {
	body   io.ReadCloser
	codec  *RowCodec
	blocks *blockReader // non-nil when the body is block-framed
	buf    bufList      // decoded bytes feeding the codec
	eof    bool         // transport reported end-of-stream
	err    error        // terminal state
	rows   uint64
}

func newCursor(body io.ReadCloser, codec *RowCodec, compressed bool) *Cursor {
	c := &Cursor{body: body, codec: codec}
	if compressed {
		c.blocks = &blockReader{}
	}
	return c
}

// Next returns the next row, or io.EOF after the last row of a complete
// stream. Any other error is terminal: decoding problems are reported
// as-is, end-of-stream with undecodable trailing bytes as
// ErrTruncatedStream. ctx bounds the wait for transport data.
func (c *Cursor) Next(ctx context.Context) ([]Value, error) {
	if c.err != nil {
		return nil, c.err
	}

	for {
		r := newListReader(&c.buf)
		row, err := c.codec.decodeRow(&r)
		if err == nil {
			r.commit()
			c.rows++
			return row, nil
		}
		if !errors.Is(err, errNeedMore) {
			return nil, c.fail(err)
		}

		if c.eof {
			if c.buf.bytes() == 0 && (c.blocks == nil || c.blocks.buffered() == 0) {
				c.err = io.EOF
				c.release()
				return nil, io.EOF
			}
			return nil, c.fail(ErrTruncatedStream)
		}
		if err := c.pull(ctx); err != nil {
			return nil, c.fail(err)
		}
	}
}

// Rows reports how many rows the cursor has yielded.
func (c *Cursor) Rows() uint64 {
	return c.rows
}

// pull reads one chunk from the transport and feeds it, through the
// compression framer when enabled, into the buffer chain. This is the
// only point where the cursor waits on the network.
func (c *Cursor) pull(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Chunk ownership transfers into the buffer chain, so each read gets
	// a fresh buffer.
	chunk := make([]byte, readChunkSize)
	n, err := c.body.Read(chunk)
	if n > 0 {
		if c.blocks != nil {
			c.blocks.push(chunk[:n])
			if err := c.drainBlocks(); err != nil {
				return err
			}
		} else {
			c.buf.push(chunk[:n])
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		c.eof = true
		return nil
	default:
		return fmt.Errorf("transport: %w", err)
	}
}

// drainBlocks unwraps every fully buffered block into the decode chain.
func (c *Cursor) drainBlocks() error {
	for {
		out, err := c.blocks.next()
		if errors.Is(err, errNeedMore) {
			return nil
		}
		if err != nil {
			return err
		}
		c.buf.push(out)
	}
}

func (c *Cursor) fail(err error) error {
	c.err = err
	c.release()
	sneakyBodyClose(c.body)
	return err
}

func (c *Cursor) release() {
	c.buf.release()
	if c.blocks != nil {
		c.blocks.raw.release()
	}
}

// Close releases buffered chunks and the underlying body. Closing before
// the stream is drained abandons the remaining rows; the cursor yields
// nothing afterwards.
func (c *Cursor) Close() error {
	if c.err == nil {
		c.err = errCursorClosed
	}
	c.release()
	if c.body == nil {
		return nil
	}
	return c.body.Close()
}
