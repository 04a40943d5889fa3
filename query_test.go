package boreal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestQueryRowsEndToEnd(t *testing.T) {
	want, encoded := cursorTestRows(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "SELECT id, name, tags FROM events", r.URL.Query().Get("query"))
		require.Equal(t, formatRowBinary, r.URL.Query().Get("format"))
		require.Equal(t, "analytics", r.URL.Query().Get("database"))
		require.Equal(t, "reader", r.Header.Get(headerUser))
		require.Equal(t, "secret", r.Header.Get(headerPassword))
		_, _ = w.Write(encoded)
	}))
	defer srv.Close()

	client := NewClient(&Config{
		Endpoint: srv.URL,
		Database: "analytics",
		User:     "reader",
		Password: "secret",
	})
	cur, err := client.Query("SELECT id, name, tags FROM events").Rows(context.Background(), cursorTestType)
	require.NoError(t, err)
	defer cur.Close()

	require.Equal(t, want, drainCursor(t, cur))
	require.EqualValues(t, len(want), cur.Rows())
}

func TestQueryCompressedResponse(t *testing.T) {
	want, encoded := cursorTestRows(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("compress"))
		w.Header().Set(headerCompression, compressionBlock)
		_, _ = w.Write(frameAll(t, CompressionZSTD, encoded))
	}))
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL, Compression: CompressionZSTD})
	cur, err := client.Query("SELECT id, name, tags FROM events").Rows(context.Background(), cursorTestType)
	require.NoError(t, err)
	defer cur.Close()

	require.Equal(t, want, drainCursor(t, cur))
}

// A server configured to compress responses is honored even when the
// client did not ask for compression.
func TestQueryUnsolicitedCompressedResponse(t *testing.T) {
	want, encoded := cursorTestRows(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerCompression, compressionBlock)
		_, _ = w.Write(frameAll(t, CompressionLZ4, encoded))
	}))
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	cur, err := client.Query("SELECT id, name, tags FROM events").Rows(context.Background(), cursorTestType)
	require.NoError(t, err)
	defer cur.Close()

	require.Equal(t, want, drainCursor(t, cur))
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Table events does not exist", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(&Config{Endpoint: srv.URL})
	_, err := client.Query("SELECT 1 FROM events").Rows(context.Background(), cursorTestType)

	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusNotFound, serr.StatusCode)
	require.Contains(t, serr.Message, "Table events does not exist")
}

func TestQueryIDAndSettings(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, id.String(), r.URL.Query().Get("query_id"))
		require.Equal(t, "1000", r.URL.Query().Get("max_rows"))
		require.Equal(t, "1", r.URL.Query().Get("trace"))
	}))
	defer srv.Close()

	client := NewClient(&Config{
		Endpoint: srv.URL,
		Settings: map[string]string{"max_rows": "1000"},
	})
	q := client.Query("SELECT 1")
	q.ID = &id
	q.Settings = map[string]string{"trace": "1"}
	require.NoError(t, q.Exec(context.Background()))
}
