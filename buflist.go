package boreal

// bufList is the chunk-spanning read buffer behind the Cursor and the
// compression framer. Chunks arrive from the transport in arbitrary sizes
// and fragmentation; bufList presents them as one continuous byte
// sequence with a moving read position, without ever re-copying bytes
// that were already consumed.
//
// Ownership of a pushed chunk transfers to the list; the chunk is
// released once the read position passes its end.
type bufList struct {
	chunks [][]byte
	// off is the read offset into chunks[0]. It never exceeds
	// len(chunks[0]).
	off  int
	size int
	// scratch holds bytes assembled across chunk boundaries by a
	// listReader. It is reused between reads, so an assembled view is
	// only valid until the next read.
	scratch []byte
}

// push appends a chunk to the tail. Empty chunks are dropped.
func (b *bufList) push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
}

// bytes reports how many unread bytes the list holds.
func (b *bufList) bytes() int {
	return b.size
}

// commit advances the read position by n bytes and releases every chunk
// fully behind the new position. n must not exceed bytes().
func (b *bufList) commit(n int) {
	if n > b.size {
		panic("boreal: bufList commit past end")
	}
	b.size -= n
	n += b.off
	i := 0
	for i < len(b.chunks) && n >= len(b.chunks[i]) {
		n -= len(b.chunks[i])
		b.chunks[i] = nil
		i++
	}
	b.chunks = b.chunks[i:]
	b.off = n
}

// release drops all buffered chunks.
func (b *bufList) release() {
	for i := range b.chunks {
		b.chunks[i] = nil
	}
	b.chunks = b.chunks[:0]
	b.off = 0
	b.size = 0
	b.scratch = nil
}

// listReader is a tentative cursor over a bufList. Reads advance the
// cursor without consuming anything from the list; commit releases
// everything read so far in one step. Abandoning the reader (for example
// after errNeedMore) leaves the list untouched, so a decode can be
// retried from the same position once more chunks arrive.
type listReader struct {
	list *bufList
	// chunk/off locate the cursor inside the list; pos is the total
	// number of bytes read ahead of the committed position.
	chunk int
	off   int
	pos   int
}

func newListReader(list *bufList) listReader {
	return listReader{list: list, off: list.off}
}

// next returns a view of the next n bytes and advances the cursor, or
// errNeedMore if fewer than n bytes remain. The view borrows either from
// a single chunk or from the list's scratch buffer and is only valid
// until the next call on any reader of this list.
func (r *listReader) next(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if r.pos+n > r.list.size {
		return nil, errNeedMore
	}
	// The cursor may be parked at the end of what used to be the last
	// chunk; hop to the next one before deciding whether n fits.
	if r.off == len(r.list.chunks[r.chunk]) {
		r.chunk++
		r.off = 0
	}
	c := r.list.chunks[r.chunk]
	if r.off+n <= len(c) {
		v := c[r.off : r.off+n]
		r.advance(n)
		return v, nil
	}
	if cap(r.list.scratch) < n {
		r.list.scratch = make([]byte, n)
	}
	v := r.list.scratch[:n]
	for filled := 0; filled < n; {
		c := r.list.chunks[r.chunk]
		m := copy(v[filled:], c[r.off:])
		filled += m
		r.advance(m)
	}
	return v, nil
}

func (r *listReader) advance(n int) {
	r.pos += n
	r.off += n
	if r.off == len(r.list.chunks[r.chunk]) && r.chunk+1 < len(r.list.chunks) {
		r.chunk++
		r.off = 0
	}
}

func (r *listReader) readByte() (byte, error) {
	v, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// commit consumes everything read through this reader from the
// underlying list. The reader must not be used afterwards.
func (r *listReader) commit() {
	r.list.commit(r.pos)
}
