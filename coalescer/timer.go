package coalescer

import (
	"runtime"
	"time"
)

// maxChecksOnSleep is the number of initial timer iterations used to
// sample kernel sleep accuracy before deciding whether to keep sleeping or
// fall back to pure spinning.
const maxChecksOnSleep = 20

// runTimer is the background loop that fires a flush when a sync is
// pending and the timeout has elapsed. It adapts between a nano-sleep and
// a pure spin based on observed clock accuracy.
func (c *Coalescer) runTimer() {
	defer close(c.timerDone)

	useSleep := true
	checks := 0
	failedChecks := 0
	lastFlushTime := time.Now()

	for {
		if c.stopped() {
			return
		}

		if c.pendingSync.Load() {
			if useSleep {
				_ = c.Flush(false)
				lastFlushTime = time.Now()
			} else if c.hasObserver() && time.Since(lastFlushTime) > c.opts.Timeout {
				_ = c.Flush(false)
				lastFlushTime = time.Now()
			}
		}

		useSleep, checks, failedChecks = c.sleepIfPossible(useSleep, checks, failedChecks)

		if c.stopped() {
			return
		}

		c.spin.wait()
		runtime.Gosched()
	}
}

func (c *Coalescer) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Coalescer) hasObserver() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer != nil
}

// sleepIfPossible sleeps for the configured timeout while the timer still
// believes the platform's sleep is accurate. For the first
// maxChecksOnSleep iterations it measures the actual elapsed time; if more
// than half of those samples overshoot 1.5x the timeout, sleeping is
// disabled permanently and the timer falls back to pure spinning with an
// explicit clock comparison.
func (c *Coalescer) sleepIfPossible(useSleep bool, checks, failedChecks int) (bool, int, int) {
	if !useSleep {
		return useSleep, checks, failedChecks
	}

	start := time.Now()
	c.opts.SleepFunc(c.opts.Timeout)

	if checks < maxChecksOnSleep {
		if time.Since(start) > (c.opts.Timeout*3)/2 {
			failedChecks++
		}
		checks++

		if checks == maxChecksOnSleep && failedChecks > maxChecksOnSleep/2 {
			useSleep = false
			c.opts.Logger.Warn("coalescer: kernel sleep accuracy insufficient, falling back to spin",
				"failed_checks", failedChecks, "max_checks", maxChecksOnSleep, "timeout", c.opts.Timeout)
		}
	}

	return useSleep, checks, failedChecks
}
