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
	"bytes"
	"context"
	"fmt"
	"io"
)

// Insert is one write transaction: rows stream into the request body as
// they are written, and End awaits the server's acknowledgement. Until
// End returns nil the server has committed nothing. An Insert is
// single-use and not safe for concurrent use.
type Insert struct {
	codec *RowCodec
	pw    *io.PipeWriter
	bw    *blockWriter // non-nil when compression is enabled
	out   io.Writer
	respC chan error
	buf   []byte
	rows  uint64
	sent  uint64
	done  bool
	err   error
}

// Insert opens a write transaction into the given table. typ must match
// the table's column order. ctx covers the whole transaction, through
// End.
func (c *Client) Insert(ctx context.Context, table string, typ RowType) (*Insert, error) {
	codec, err := CompileRow(typ)
	if err != nil {
		return nil, err
	}

	u, err := c.requestURL(map[string]string{
		"query": "INSERT INTO " + table + " FORMAT " + formatRowBinary,
	})
	if err != nil {
		return nil, err
	}
	headers := c.requestHeaders()
	if c.config.Compression != CompressionNone {
		headers.Set(headerCompression, compressionBlock)
	}

	pr, pw := io.Pipe()
	i := &Insert{
		codec: codec,
		pw:    pw,
		out:   pw,
		respC: make(chan error, 1),
	}
	if c.config.Compression != CompressionNone {
		i.bw = newBlockWriter(pw, c.config.Compression)
		i.out = i.bw
	}

	go func() {
		resp, err := c.http.Post(ctx, u, headers, pr)
		if err != nil {
			// Unblock a writer stuck on the pipe.
			pr.CloseWithError(err)
			i.respC <- fmt.Errorf("transport: %w", err)
			return
		}
		err = checkResponse(resp)
		sneakyBodyClose(resp.Body)
		if err != nil {
			pr.CloseWithError(err)
		}
		i.respC <- err
	}()

	return i, nil
}

// Write encodes one row into the request body. An encoding error aborts
// the whole transaction: no partial batch is ever committed.
func (i *Insert) Write(row []Value) error {
	if i.done {
		if i.err != nil {
			return i.err
		}
		return errInsertClosed
	}

	buf, err := i.codec.AppendRow(i.buf[:0], row)
	i.buf = buf[:0]
	if err != nil {
		i.Abort()
		i.err = err
		return err
	}

	if _, werr := i.out.Write(buf); werr != nil {
		// The pipe fails only once the HTTP exchange is over; surface
		// the server's error rather than the bare pipe error.
		i.done = true
		if rerr := <-i.respC; rerr != nil {
			i.err = rerr
		} else {
			i.err = werr
		}
		return i.err
	}
	i.rows++
	i.sent += uint64(len(buf))
	return nil
}

// End flushes the remaining bytes, closes the request body and awaits the
// server's acknowledgement. A nil return means the server accepted the
// whole batch.
func (i *Insert) End(ctx context.Context) error {
	if i.done {
		if i.err != nil {
			return i.err
		}
		return errInsertClosed
	}
	i.done = true

	if i.bw != nil {
		if err := i.bw.Close(); err != nil {
			if rerr := <-i.respC; rerr != nil {
				err = rerr
			}
			i.err = err
			return err
		}
	}
	if err := i.pw.Close(); err != nil {
		i.err = err
		return err
	}

	select {
	case err := <-i.respC:
		i.err = err
		return err
	case <-ctx.Done():
		i.pw.CloseWithError(ctx.Err())
		i.err = ctx.Err()
		return i.err
	}
}

// Abort drops the transaction. The upload is cut short, never finalized,
// so the server discards it. Abort after End or a previous Abort is a
// no-op.
func (i *Insert) Abort() {
	if i.done {
		return
	}
	i.done = true
	i.err = errInsertAborted
	i.pw.CloseWithError(errInsertAborted)
	<-i.respC
}

// Rows reports how many rows were written so far.
func (i *Insert) Rows() uint64 {
	return i.rows
}

// Bytes reports how many serialized bytes were written so far, before
// compression.
func (i *Insert) Bytes() uint64 {
	return i.sent
}

// postRows sends one already-serialized batch of rows as a single insert
// request. The data is kept by the caller, so a failed request can be
// retried with the same bytes.
func (c *Client) postRows(ctx context.Context, table string, rows []byte) error {
	u, err := c.requestURL(map[string]string{
		"query": "INSERT INTO " + table + " FORMAT " + formatRowBinary,
	})
	if err != nil {
		return err
	}
	headers := c.requestHeaders()

	var body io.Reader
	if c.config.Compression != CompressionNone {
		var framed bytes.Buffer
		bw := newBlockWriter(&framed, c.config.Compression)
		if _, err := bw.Write(rows); err != nil {
			return err
		}
		if err := bw.Close(); err != nil {
			return err
		}
		headers.Set(headerCompression, compressionBlock)
		body = &framed
	} else {
		body = bytes.NewReader(rows)
	}

	resp, err := c.http.Post(ctx, u, headers, body)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer sneakyBodyClose(resp.Body)
	return checkResponse(resp)
}
