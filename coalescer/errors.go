package coalescer

import "errors"

// ErrNotStarted is returned by every public operation other than Start/Stop
// when invoked before Start or after Stop.
var ErrNotStarted = errors.New("coalescer: not started")

// ErrRecordTooLarge is returned by CheckSize when n exceeds the configured
// batch capacity. The caller must not retry with the same record.
var ErrRecordTooLarge = errors.New("coalescer: record larger than buffer size")

// ErrNoObserver is returned when an admission or flush needs the backend
// (to query remaining space or hand off a batch) but none has been
// attached via SetObserver yet.
var ErrNoObserver = errors.New("coalescer: no observer attached")
