package coalescer

import "fmt"

// Flush transfers the current batch to the backend and resets the region.
// It is a no-op if the region is empty, and — unless force is true — a
// no-op while a reservation is in flight (the delay-flush flag), so a
// timer-driven or size-driven flush never publishes a half-written record.
func (c *Coalescer) Flush(force bool) error {
	c.opts.Analyzer.Enter(PathFlush)
	defer c.opts.Analyzer.Exit(PathFlush)

	if !c.started.Load() {
		return ErrNotStarted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flushLocked(force)
}

// flushLocked implements the same contract as Flush but assumes c.mu is
// already held. Used by CheckSize, which must flush and re-derive
// bufferLimit atomically with respect to concurrent admissions.
func (c *Coalescer) flushLocked(force bool) error {
	if c.region.pos == 0 {
		return nil
	}
	if !force && c.delayFlush {
		return nil
	}
	if c.observer == nil {
		return ErrNoObserver
	}

	dest, err := c.observer.NewBuffer(c.region.cap(), c.region.pos)
	if err != nil {
		return err
	}
	if cap(dest) < c.region.pos {
		return fmt.Errorf("coalescer: observer returned buffer smaller than requested minimum capacity")
	}
	dest = dest[:cap(dest)]
	copy(dest, c.region.buf[:c.region.pos])
	dest = dest[:c.region.pos]

	callbacks := c.callbacks
	syncRequested := c.pendingSync.Load()

	// FlushBuffer takes ownership of dest and callbacks and reports success
	// or failure to the callbacks directly; state below is reset
	// unconditionally once the batch has been handed off, so a backend
	// failure can never cause the same bytes or callbacks to be replayed on
	// the next flush.
	c.observer.FlushBuffer(dest, syncRequested, callbacks)

	c.spin.stopSpin()
	c.pendingSync.Store(false)
	c.callbacks = nil

	c.bytesFlushed.Add(uint64(c.region.pos))
	c.flushesDone.Add(1)

	c.region.reset()
	c.bufferLimit = 0

	return nil
}
