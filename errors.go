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
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ServerError is an application-level error returned by the BorealDB
// server. The message is the response body, surfaced verbatim.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// ChecksumError reports a compression block whose payload does not match
// its declared checksum. The stream it came from is unusable.
type ChecksumError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("block checksum mismatch: stored %#08x, computed %#08x", e.Stored, e.Computed)
}

// UnsupportedCompressionError reports a compression block with a method
// tag this client does not implement.
type UnsupportedCompressionError struct {
	Method byte
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported compression method %#02x", e.Method)
}

// ErrTruncatedStream is returned by a Cursor when the transport signals
// end-of-stream while undecodable bytes remain buffered.
var ErrTruncatedStream = errors.New("truncated stream: end of stream inside a row or block")

// errNeedMore is the internal signal that decoding cannot proceed until
// more bytes arrive. It never escapes the package API.
var errNeedMore = errors.New("need more data")

var (
	errCursorClosed   = errors.New("cursor is closed")
	errInsertClosed   = errors.New("insert transaction already finalized")
	errInsertAborted  = errors.New("insert transaction aborted")
	errInserterClosed = errors.New("inserter is closed")
)

// checkResponse turns a non-2xx response into a ServerError carrying the
// response body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    string(data),
	}
}

// sneakyBodyClose closes the body and ignores the error.
func sneakyBodyClose(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
