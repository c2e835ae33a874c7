// Package backend provides a reference Observer implementation for the
// coalescer package: a single rotating append-only file, sized so that
// CheckSize's "backend has no room left" path and Coalescer's roll/retry
// contract can be exercised end to end.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"journalbuf/coalescer"
	"journalbuf/utils"
)

// ErrClosed is returned by Roll once the backend has been closed, and its
// message is reported through OnError to the callbacks of any FlushBuffer
// call made after Close. RemainingBytes reports zero after Close.
var ErrClosed = errors.New("backend: closed")

const activeFileName = "journal.active"

// FileBackend is a rotating append-only file backend. Records are written
// to the OS synchronously (cheap, buffered) so RemainingBytes stays
// accurate the instant a flush returns; when a flush requests a durable
// sync, the fsync itself runs in a background goroutine so FlushBuffer
// never blocks the coalescer's monitor on completion.
type FileBackend struct {
	dir         string
	maxFileSize int64
	logger      *slog.Logger

	mu      sync.Mutex
	file    *os.File
	written int64
	closed  bool
	lock    *dataDirLock

	pool sync.Pool
	wg   sync.WaitGroup
}

// Open creates or reopens a rotating file backend rooted at dir. maxFileSize
// bounds how many bytes may accumulate in the currently active file before
// RemainingBytes starts reporting zero and callers must Roll.
func Open(dir string, maxFileSize int64, logger *slog.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("backend: maxFileSize must be positive")
	}

	lock, err := acquireDataDirLock(dir)
	if err != nil {
		if errors.Is(err, errLockBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("backend: acquire lock: %w", err)
	}

	f, err := openActive(dir)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	return &FileBackend{
		dir:         dir,
		maxFileSize: maxFileSize,
		logger:      logger,
		file:        f,
		written:     info.Size(),
		lock:        lock,
	}, nil
}

func openActive(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, activeFileName), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
}

// RemainingBytes implements coalescer.Observer.
func (b *FileBackend) RemainingBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	rem := b.maxFileSize - b.written
	if rem < 0 {
		return 0
	}
	if rem > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(rem)
}

// NewBuffer implements coalescer.Observer. Buffers are reused through a
// single pool to avoid an allocation on every flush; a pooled buffer whose
// capacity is below minCapacity is dropped and a new one is allocated.
func (b *FileBackend) NewBuffer(minCapacity, _ int) ([]byte, error) {
	if v := b.pool.Get(); v != nil {
		buf := v.([]byte)
		if cap(buf) >= minCapacity {
			return buf, nil
		}
	}
	return make([]byte, minCapacity), nil
}

// FlushBuffer implements coalescer.Observer. It never returns an error to
// its caller: a failure here can no longer be attributed to any producer
// waiting synchronously (the coalescer has already dropped this batch from
// its own state by the time FlushBuffer runs), so the only way to surface
// it is through the callbacks themselves.
func (b *FileBackend) FlushBuffer(buf []byte, syncRequested bool, callbacks []coalescer.Callback) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		notifyError(callbacks, ErrClosed)
		return
	}
	file := b.file

	n, err := file.Write(buf)
	if err == nil {
		b.written += int64(n)
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("backend: write failed", "error", err, "dir", b.dir)
		notifyError(callbacks, err)
		return
	}

	if !syncRequested {
		notifyDone(callbacks)
		b.pool.Put(buf[:0])
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.pool.Put(buf[:0])

		if err := file.Sync(); err != nil {
			b.logger.Error("backend: fsync failed", "error", err, "dir", b.dir)
			notifyError(callbacks, err)
			return
		}
		notifyDone(callbacks)
	}()
}

// Roll atomically switches the backend to a fresh, empty active file. This
// is the mechanism CheckSize's false return tells producers to invoke: the
// current file has no room left for the next record.
func (b *FileBackend) Roll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	tempPath := filepath.Join(b.dir, "journal."+utils.GenerateUniqueID()+".tmp")
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("backend: create rotation file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("backend: close rotation file: %w", err)
	}

	if err := b.file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("backend: close active file: %w", err)
	}

	activePath := filepath.Join(b.dir, activeFileName)
	if err := replaceFile(activePath, tempPath); err != nil {
		// Best-effort recovery: reopen the old active file so the backend
		// stays usable even though the roll failed.
		if f, reopenErr := openActive(b.dir); reopenErr == nil {
			b.file = f
		}
		return fmt.Errorf("backend: replace active file: %w", err)
	}

	f, err := openActive(b.dir)
	if err != nil {
		return fmt.Errorf("backend: reopen active file: %w", err)
	}
	b.file = f
	b.written = 0
	return nil
}

// Close waits for outstanding async fsyncs, releases the data directory
// lock, and closes the active file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	file := b.file
	b.mu.Unlock()

	b.wg.Wait()

	err := file.Close()
	if lockErr := b.lock.Close(); lockErr != nil {
		err = errors.Join(err, lockErr)
	}
	return err
}

func notifyDone(callbacks []coalescer.Callback) {
	for _, cb := range callbacks {
		cb.Done()
	}
}

func notifyError(callbacks []coalescer.Callback, err error) {
	for _, cb := range callbacks {
		cb.OnError(1, err.Error())
	}
}
