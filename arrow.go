package boreal

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// Arrow executes the query with the Arrow IPC stream output format and
// returns the result as record batches. The records are retained; the
// caller releases them.
//
// The Arrow stream carries its own framing, so the block compression
// layer is not involved on this path.
func (q *Query) Arrow(ctx context.Context) ([]arrow.Record, error) {
	resp, err := q.send(ctx, formatArrowStream)
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)

	reader, err := ipc.NewReader(resp.Body, ipc.WithDelayReadSchema(true))
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	batches := make([]arrow.Record, 0)
	for reader.Next() {
		batch := reader.Record()
		batch.Retain()
		batches = append(batches, batch)
	}
	if err := reader.Err(); err != nil {
		for _, batch := range batches {
			batch.Release()
		}
		return nil, err
	}
	return batches, nil
}
