package coalescer

// CheckSize reserves room for a record of exactly n bytes. A producer must
// call CheckSize immediately before the AddBytes call that writes those n
// bytes; interleaving other operations between the two on the same record
// is a usage error.
//
// Returns (true, nil) when the reservation succeeded and the caller may
// proceed to AddBytes. Returns (false, nil) when the backend has no room
// left for a record this size in its current file — the caller must roll
// the backend to a new file and retry the same record. Any non-nil error
// is fatal and the caller must not retry.
func (c *Coalescer) CheckSize(n int) (bool, error) {
	c.opts.Analyzer.Enter(PathCheckSize)
	defer c.opts.Analyzer.Exit(PathCheckSize)

	if !c.started.Load() {
		return false, ErrNotStarted
	}
	if n > c.region.cap() {
		return false, ErrRecordTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bufferLimit == 0 || c.region.pos+n > c.bufferLimit {
		if err := c.flushLocked(false); err != nil {
			return false, err
		}
		if c.observer == nil {
			return false, ErrNoObserver
		}

		rem := c.observer.RemainingBytes()
		if n > rem {
			return false, nil
		}

		limit := rem
		if c.region.cap() < limit {
			limit = c.region.cap()
		}
		c.bufferLimit = limit
		c.delayFlush = true
		return true, nil
	}

	c.delayFlush = true
	return true, nil
}

// AddBytes commits a record reserved by the immediately preceding CheckSize
// call, copying payload into the batch region. If sync is true, the record
// requests a durable flush within the configured timeout bound. callback is
// appended to the callback queue and is handed to the backend exactly once
// on the flush that carries this record.
func (c *Coalescer) AddBytes(payload []byte, sync bool, callback Callback) error {
	c.opts.Analyzer.Enter(PathAddBytes)
	defer c.opts.Analyzer.Exit(PathAddBytes)

	if !c.started.Load() {
		return ErrNotStarted
	}

	c.mu.Lock()
	c.delayFlush = false
	c.region.write(payload)
	c.callbacks = append(c.callbacks, callback)
	c.markSyncLocked(sync)
	c.mu.Unlock()

	return nil
}

// AddBytesFunc commits a record reserved by the immediately preceding
// CheckSize(n) call by invoking encode directly against the batch region,
// avoiding an intermediate staging copy.
func (c *Coalescer) AddBytesFunc(n int, sync bool, callback Callback, encode Encoder) error {
	c.opts.Analyzer.Enter(PathAddBytes)
	defer c.opts.Analyzer.Exit(PathAddBytes)

	if !c.started.Load() {
		return ErrNotStarted
	}

	c.mu.Lock()
	c.delayFlush = false
	err := c.region.writeFunc(n, encode)
	if err == nil {
		c.callbacks = append(c.callbacks, callback)
		c.markSyncLocked(sync)
	}
	c.mu.Unlock()

	return err
}

// markSyncLocked sets the pending-sync watermark and opens the spin gate so
// the timer thread starts timing out toward a flush. Callers must hold c.mu
// for the entire admission — including this call — so a concurrent flush can
// never observe the just-appended record's bytes/callback without also
// observing that it requested a sync.
func (c *Coalescer) markSyncLocked(sync bool) {
	if !sync {
		return
	}
	c.pendingSync.Store(true)
	c.spin.startSpin()
}
