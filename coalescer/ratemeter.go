package coalescer

import (
	"log/slog"
	"time"
)

const rateMeterPeriod = 2 * time.Second

// rateMeter periodically logs bytes/sec and flushes/sec, computed as deltas
// against the previous sample. It has no effect on correctness and swallows
// nothing because it produces no errors to swallow — it only reads atomic
// counters and logs.
type rateMeter struct {
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

func newRateMeter(logger *slog.Logger) *rateMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &rateMeter{logger: logger, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

func (m *rateMeter) run(c *Coalescer) {
	defer close(m.doneCh)

	ticker := time.NewTicker(rateMeterPeriod)
	defer ticker.Stop()

	var lastBytes, lastFlushes uint64
	last := time.Now()

	for {
		select {
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			bytes := c.bytesFlushed.Load()
			flushes := c.flushesDone.Load()
			elapsed := now.Sub(last).Seconds()
			if elapsed > 0 {
				m.logger.Info("coalescer: rate",
					"bytes_per_sec", float64(bytes-lastBytes)/elapsed,
					"flushes_per_sec", float64(flushes-lastFlushes)/elapsed,
				)
			}
			lastBytes, lastFlushes, last = bytes, flushes, now
		}
	}
}

func (m *rateMeter) stop() {
	close(m.stopCh)
	<-m.doneCh
}
