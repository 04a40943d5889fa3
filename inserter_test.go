package boreal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var inserterTestType = RowType{
	{Name: "id", Type: UInt64},
	{Name: "payload", Type: String},
}

func inserterRow(i int) []Value {
	return []Value{uint64(i), "payload"}
}

func TestInserterMaxRows(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)
	ins.MaxRows = 3

	var commits []Quantities
	for i := 0; i < 5; i++ {
		q, err := ins.Write(ctx, inserterRow(i))
		require.NoError(t, err)
		if q.Rows > 0 {
			commits = append(commits, q)
		}
	}

	// Exactly one auto-commit, after the 3rd row; 2 rows stay pending.
	require.Len(t, commits, 1)
	require.EqualValues(t, 3, commits[0].Rows)
	require.EqualValues(t, 2, ins.Pending().Rows)

	q, err := ins.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, q.Rows)
	require.EqualValues(t, 0, ins.Pending().Rows)

	codec, err := CompileRow(inserterTestType)
	require.NoError(t, err)
	require.Len(t, sink.rows(t, 0, codec), 3)
	require.Len(t, sink.rows(t, 1, codec), 2)
}

func TestInserterMaxBytes(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)
	ins.MaxBytes = 64

	var committed uint64
	for i := 0; i < 10; i++ {
		q, err := ins.Write(ctx, inserterRow(i))
		require.NoError(t, err)
		committed += q.Bytes
		require.Less(t, ins.Pending().Bytes, uint64(64))
	}
	require.NotZero(t, committed)
}

func TestInserterPeriodViaForceCheck(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)
	ins.Period = 10 * time.Millisecond

	_, err = ins.Write(ctx, inserterRow(1))
	require.NoError(t, err)

	// Below the period nothing moves.
	q, err := ins.CheckThresholds(ctx)
	require.NoError(t, err)
	require.Zero(t, q.Rows)

	time.Sleep(20 * time.Millisecond)
	q, err = ins.CheckThresholds(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, q.Rows)
	require.EqualValues(t, 0, ins.Pending().Rows)
}

func TestInserterFailedCommitKeepsBatch(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)
	ins.MaxRows = 2

	_, err = ins.Write(ctx, inserterRow(1))
	require.NoError(t, err)
	_, err = ins.Write(ctx, inserterRow(2))
	var serr *ServerError
	require.ErrorAs(t, err, &serr)

	// The batch survives the failure so the caller can decide.
	require.EqualValues(t, 2, ins.Pending().Rows)

	// Re-submitting the same rows succeeds once the server recovers.
	sink.mu.Lock()
	sink.status = 0
	sink.mu.Unlock()
	q, err := ins.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, q.Rows)
	require.EqualValues(t, 0, ins.Pending().Rows)
}

func TestInserterDiscard(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)

	_, err = ins.Write(ctx, inserterRow(1))
	require.NoError(t, err)
	_, err = ins.Commit(ctx)
	require.Error(t, err)

	ins.Discard()
	require.Zero(t, ins.Pending().Rows)
	require.NoError(t, ins.Close(ctx))
}

func TestInserterRetryPolicy(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "transient", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)
	ins.RetryFailedCommit = true

	_, err = ins.Write(ctx, inserterRow(1))
	require.NoError(t, err)
	q, err := ins.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, q.Rows)
	require.Equal(t, 2, attempts)
}

func TestInserterEncodeErrorRejectsRowOnly(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)

	_, err = ins.Write(ctx, inserterRow(1))
	require.NoError(t, err)
	before := ins.Pending()

	_, err = ins.Write(ctx, []Value{uint64(2), 42})
	require.Error(t, err)
	require.Equal(t, before, ins.Pending(), "a rejected row must not disturb the batch")

	q, err := ins.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, q.Rows)
}

func TestInserterNoThresholdsNeverAutoCommits(t *testing.T) {
	ctx := context.Background()
	sink := &insertSink{}
	srv := httptest.NewServer(sink.handler())
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	ins, err := client.Inserter("events", inserterTestType)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		q, err := ins.Write(ctx, inserterRow(i))
		require.NoError(t, err)
		require.Zero(t, q.Rows)
	}
	q, err := ins.CheckThresholds(ctx)
	require.NoError(t, err)
	require.Zero(t, q.Rows)
	require.EqualValues(t, 1000, ins.Pending().Rows)

	require.NoError(t, ins.Close(ctx))
	require.Zero(t, ins.Pending().Rows)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.bodies, 1)
}
