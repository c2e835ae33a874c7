package coalescer

import "log/slog"

// batchRegion is the fixed-capacity staging area a Coalescer accumulates
// records into. It is allocated once at construction and, where the
// platform allows it, backed by an anonymous memory mapping rather than
// the Go heap: the region is bulk-memcpy'd into backend-supplied buffers
// on every flush, and keeping it off-heap means that copy never touches
// the garbage collector.
type batchRegion struct {
	buf     []byte
	pos     int
	mmapped bool
}

func newBatchRegion(size int, logger *slog.Logger) *batchRegion {
	buf, mmapped, err := platformAlloc(size)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("coalescer: off-heap allocation failed, falling back to heap buffer", "error", err, "size", size)
		buf = make([]byte, size)
		mmapped = false
	}
	return &batchRegion{buf: buf, mmapped: mmapped}
}

func (r *batchRegion) cap() int { return len(r.buf) }

// write appends p at the current cursor and advances it. Callers must have
// already reserved room via checkSize.
func (r *batchRegion) write(p []byte) {
	n := copy(r.buf[r.pos:], p)
	r.pos += n
}

// writeFunc invokes encode against the n bytes starting at the cursor,
// avoiding an intermediate staging copy, then advances the cursor by n
// regardless of whether encode wrote fewer bytes (the caller declared n up
// front via checkSize and is trusted to honor it).
func (r *batchRegion) writeFunc(n int, encode Encoder) error {
	if err := encode(r.buf[r.pos : r.pos+n]); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *batchRegion) reset() { r.pos = 0 }

// release returns the off-heap mapping to the OS. Safe to call on a
// heap-backed region (no-op).
func (r *batchRegion) release() {
	if r.mmapped {
		_ = platformFree(r.buf)
		r.mmapped = false
	}
}
