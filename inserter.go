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
	"time"
)

// Quantities are the rows and serialized bytes of one batch.
type Quantities struct {
	Rows  uint64
	Bytes uint64
}

// Inserter accumulates rows and commits them as insert transactions when
// a configured threshold is exceeded. Thresholds may be enabled in any
// subset; with none enabled the inserter only commits on Commit or Close.
//
// There is no background timer: the Period threshold fires inside Write
// and CheckThresholds, so a caller relying on it polls CheckThresholds
// from its own loop.
//
// A failed commit keeps the batch intact. The caller inspects Pending and
// decides: Commit again to re-submit the same rows, or Discard to drop
// them. An Inserter is not safe for concurrent use.
type Inserter struct {
	c     *Client
	table string
	codec *RowCodec

	// MaxRows commits once the batch holds this many rows. 0 disables.
	MaxRows uint64
	// MaxBytes commits once the batch holds this many serialized bytes.
	// 0 disables.
	MaxBytes uint64
	// Period commits once this much time passed since the last commit.
	// 0 disables.
	Period time.Duration
	// RetryFailedCommit re-submits a failed commit once, immediately,
	// before surfacing the error.
	RetryFailedCommit bool

	pending []byte
	rows    uint64
	last    time.Time
	closed  bool
}

// Inserter creates an auto-batching inserter for the given table. typ
// must match the table's column order.
func (c *Client) Inserter(table string, typ RowType) (*Inserter, error) {
	codec, err := CompileRow(typ)
	if err != nil {
		return nil, err
	}
	return &Inserter{
		c:     c,
		table: table,
		codec: codec,
		last:  time.Now(),
	}, nil
}

// Write appends one row to the batch and commits it if a threshold is now
// exceeded. The returned quantities are what was committed by this call:
// zero when no threshold fired.
//
// An encoding error rejects the row and leaves the batch as it was; the
// caller may drop the row and continue.
func (it *Inserter) Write(ctx context.Context, row []Value) (Quantities, error) {
	if it.closed {
		return Quantities{}, errInserterClosed
	}

	mark := len(it.pending)
	pending, err := it.codec.AppendRow(it.pending, row)
	if err != nil {
		it.pending = pending[:mark]
		return Quantities{}, err
	}
	it.pending = pending
	it.rows++

	if it.rowsExceeded() || it.bytesExceeded() || it.periodExceeded() {
		return it.commit(ctx)
	}
	return Quantities{}, nil
}

// CheckThresholds commits the batch if the time threshold has passed.
// Callers relying on Period invoke this from their own scheduling loop.
func (it *Inserter) CheckThresholds(ctx context.Context) (Quantities, error) {
	if it.closed {
		return Quantities{}, errInserterClosed
	}
	if !it.periodExceeded() {
		return Quantities{}, nil
	}
	if it.rows == 0 {
		// Nothing to send; restart the period from now.
		it.last = time.Now()
		return Quantities{}, nil
	}
	return it.commit(ctx)
}

// Commit forces the pending batch out, regardless of thresholds.
// Committing an empty batch is a no-op.
func (it *Inserter) Commit(ctx context.Context) (Quantities, error) {
	if it.closed {
		return Quantities{}, errInserterClosed
	}
	return it.commit(ctx)
}

// Pending reports the accumulated batch not yet committed.
func (it *Inserter) Pending() Quantities {
	return Quantities{Rows: it.rows, Bytes: uint64(len(it.pending))}
}

// Discard drops the pending batch without sending it.
func (it *Inserter) Discard() {
	it.pending = it.pending[:0]
	it.rows = 0
	it.last = time.Now()
}

// Close commits the pending batch and shuts the inserter down. On a
// commit failure the inserter stays open so the batch can be re-submitted
// or discarded.
func (it *Inserter) Close(ctx context.Context) error {
	if it.closed {
		return nil
	}
	if _, err := it.commit(ctx); err != nil {
		return err
	}
	it.closed = true
	return nil
}

func (it *Inserter) rowsExceeded() bool {
	return it.MaxRows > 0 && it.rows >= it.MaxRows
}

func (it *Inserter) bytesExceeded() bool {
	return it.MaxBytes > 0 && uint64(len(it.pending)) >= it.MaxBytes
}

func (it *Inserter) periodExceeded() bool {
	return it.Period > 0 && time.Since(it.last) >= it.Period
}

// commit sends the pending batch as one insert request. Batch state is
// reset only after the server accepts it; on failure everything stays
// buffered.
func (it *Inserter) commit(ctx context.Context) (Quantities, error) {
	if it.rows == 0 {
		it.last = time.Now()
		return Quantities{}, nil
	}

	err := it.c.postRows(ctx, it.table, it.pending)
	if err != nil && it.RetryFailedCommit {
		err = it.c.postRows(ctx, it.table, it.pending)
	}
	if err != nil {
		return Quantities{}, err
	}

	committed := Quantities{Rows: it.rows, Bytes: uint64(len(it.pending))}
	it.pending = it.pending[:0]
	it.rows = 0
	it.last = time.Now()
	return committed, nil
}
