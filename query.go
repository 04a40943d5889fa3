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
	"net/http"

	"github.com/google/uuid"
)

// Query output formats.
const (
	formatRowBinary   = "RowBinary"
	formatArrowStream = "ArrowStream"
)

// Query is one statement to execute on BorealDB.
type Query struct {
	c *Client

	stmt string

	// ID of the query.
	//
	// If provided, the server uses the provided ID for tracking and
	// cancellation; otherwise the server assigns one.
	ID *uuid.UUID
	// Settings are per-query parameter overrides.
	Settings map[string]string
}

// Query creates a new query with the given statement text.
func (c *Client) Query(stmt string) *Query {
	return &Query{
		c:    c,
		stmt: stmt,
	}
}

func (q *Query) params(format string) map[string]string {
	params := make(map[string]string, len(q.Settings)+4)
	for k, v := range q.Settings {
		params[k] = v
	}
	params["query"] = q.stmt
	params["format"] = format
	if q.ID != nil {
		params["query_id"] = q.ID.String()
	}
	if format == formatRowBinary && q.c.config.Compression != CompressionNone {
		params["compress"] = "1"
	}
	return params
}

func (q *Query) send(ctx context.Context, format string) (*http.Response, error) {
	u, err := q.c.requestURL(q.params(format))
	if err != nil {
		return nil, err
	}
	resp, err := q.c.http.Post(ctx, u, q.c.requestHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		sneakyBodyClose(resp.Body)
		return nil, err
	}
	return resp, nil
}

// Rows executes the query and returns a cursor over the result rows. typ
// must match the columns the statement selects, in order. The caller
// drains the cursor and closes it.
func (q *Query) Rows(ctx context.Context, typ RowType) (*Cursor, error) {
	codec, err := CompileRow(typ)
	if err != nil {
		return nil, err
	}
	resp, err := q.send(ctx, formatRowBinary)
	if err != nil {
		return nil, err
	}
	compressed := resp.Header.Get(headerCompression) == compressionBlock
	return newCursor(resp.Body, codec, compressed), nil
}

// Exec executes the query and discards any output. Useful for DDL and
// other statements without a result set.
func (q *Query) Exec(ctx context.Context) error {
	resp, err := q.send(ctx, formatRowBinary)
	if err != nil {
		return err
	}
	sneakyBodyClose(resp.Body)
	return nil
}
