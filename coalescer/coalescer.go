// Package coalescer implements a latency-bounded write-coalescing buffer
// for journal producers: a single pre-allocated staging region that
// accumulates serialized records and hands them to a backend either when
// the next record would not fit, when the backend is being rolled to a new
// file, or after a bounded time has elapsed since a durable sync was
// requested.
package coalescer

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures a Coalescer. Zero values other than BufferSize are
// valid and select sensible defaults.
type Options struct {
	// BufferSize is the batch region's capacity in bytes. Must be at least
	// as large as the largest permissible record. Required.
	BufferSize int

	// Timeout bounds how long a pending sync can wait before a flush is
	// forced. Zero means DefaultTimeout.
	Timeout time.Duration

	// LogRates enables the periodic bytes/sec, flushes/sec rate meter.
	LogRates bool

	// Analyzer receives enter/exit notifications for every public
	// operation. Nil means NopAnalyzer.
	Analyzer PathAnalyzer

	// Logger receives the sleep-accuracy-fallback diagnostic and, if
	// LogRates is set, the periodic rate samples. Nil means slog.Default().
	Logger *slog.Logger

	// SleepFunc is used by the timer thread while it believes the kernel
	// sleep is accurate. Nil means time.Sleep. Exposed so tests can inject
	// a sleep with controlled overshoot to exercise the sleep-accuracy
	// adaption path without waiting on a real clock.
	SleepFunc func(time.Duration)
}

// DefaultTimeout is the sync latency bound used when Options.Timeout is
// zero.
const DefaultTimeout = time.Millisecond

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Analyzer == nil {
		o.Analyzer = NopAnalyzer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SleepFunc == nil {
		o.SleepFunc = time.Sleep
	}
	return o
}

// Coalescer is a latency-bounded write-coalescing buffer: the batching region, its
// two-phase reserve/commit admission protocol, the timer/spin hybrid flush
// thread, the sync-pending watermark, and the callback queue handed off to
// the backend on each flush.
//
// A single mutex (mu) is the monitor: it serializes
// every public operation and the timer thread's flush calls. Holding it
// while flushing is intentional — it guarantees no producer ever observes
// a partially reset batch region.
type Coalescer struct {
	opts Options

	mu          sync.Mutex // the monitor: guards everything below except the atomics
	region      *batchRegion
	callbacks   []Callback
	bufferLimit int  // 0 means "recompute on next admission"
	delayFlush  bool // D: set true between CheckSize and its paired AddBytes
	observer    Observer

	pendingSync atomic.Bool // S, observable outside the monitor
	started     atomic.Bool

	bytesFlushed atomic.Uint64
	flushesDone  atomic.Uint64

	spin      *spinGate
	stopCh    chan struct{}
	timerDone chan struct{}
	meter     *rateMeter
}

// New constructs a Coalescer. It does not start the timer thread; call
// Start for that.
func New(opts Options) *Coalescer {
	opts = opts.withDefaults()
	c := &Coalescer{
		opts: opts,
		spin: newSpinGate(),
	}
	c.region = newBatchRegion(opts.BufferSize, opts.Logger)
	return c
}

// Start launches the timer thread (and the rate meter, if enabled).
// Idempotent if already started.
func (c *Coalescer) Start() {
	c.opts.Analyzer.Enter(PathStart)
	defer c.opts.Analyzer.Exit(PathStart)

	if !c.started.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	c.stopCh = make(chan struct{})
	c.timerDone = make(chan struct{})
	c.spin.stopSpin() // closed: no sync pending yet, park the timer
	c.mu.Unlock()

	go c.runTimer()

	if c.opts.LogRates {
		c.meter = newRateMeter(c.opts.Logger)
		go c.meter.run(c)
	}
}

// Stop performs a final (non-forced) flush, drops the backend reference,
// stops the timer thread and rate meter, and joins the timer thread. This
// cleanup sequence runs even if the final flush fails; only the error is
// reported back to the caller. Idempotent if not started.
func (c *Coalescer) Stop() error {
	c.opts.Analyzer.Enter(PathStop)
	defer c.opts.Analyzer.Exit(PathStop)

	if !c.started.CompareAndSwap(true, false) {
		return nil
	}

	c.mu.Lock()
	err := c.flushLocked(false)
	c.observer = nil
	stopCh := c.stopCh
	c.mu.Unlock()

	// started is already false at this point, so a failed final flush must
	// not skip the rest of this sequence: it would leak the timer goroutine,
	// leave the off-heap mapping unreleased, and let a subsequent Start
	// launch a second timer goroutine racing the orphaned first one.
	close(stopCh)
	c.spin.release() // unpark the timer so it can observe the close

	<-c.timerDone

	if c.meter != nil {
		c.meter.stop()
		c.meter = nil
	}

	c.region.release()

	return err
}

// SetObserver installs backend as the coalescer's backend collaborator. If
// a prior backend was attached, any in-flight batch is flushed to it first
// so no record is silently reassigned to the new backend.
func (c *Coalescer) SetObserver(backend Observer) error {
	c.opts.Analyzer.Enter(PathSetObserver)
	defer c.opts.Analyzer.Exit(PathSetObserver)

	if !c.started.Load() {
		return ErrNotStarted
	}

	c.mu.Lock()
	prior := c.observer
	c.mu.Unlock()

	if prior != nil {
		if err := c.Flush(false); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.observer = backend
	c.bufferLimit = 0 // must be recomputed against the new backend
	c.mu.Unlock()

	return nil
}

// Stats is a lightweight, best-effort snapshot for observability.
type Stats struct {
	BytesFlushed uint64
	FlushesDone  uint64
}

// Stats returns a snapshot of the flush counters.
func (c *Coalescer) Stats() Stats {
	return Stats{
		BytesFlushed: c.bytesFlushed.Load(),
		FlushesDone:  c.flushesDone.Load(),
	}
}
