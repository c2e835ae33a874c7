package backend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"journalbuf/backend"
	"journalbuf/coalescer"
)

type blockingCallback struct {
	done chan error
}

func newBlockingCallback() *blockingCallback {
	return &blockingCallback{done: make(chan error, 1)}
}

func (c *blockingCallback) Done()                            { c.done <- nil }
func (c *blockingCallback) OnError(code int, message string) { c.done <- errFromCode(code, message) }

func errFromCode(code int, message string) error {
	return &backendCallbackError{code: code, message: message}
}

type backendCallbackError struct {
	code    int
	message string
}

func (e *backendCallbackError) Error() string { return e.message }

func TestOpenCreatesActiveFile(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 1<<20, nil)
	require.NoError(t, err)
	defer be.Close()

	_, err = os.Stat(filepath.Join(dir, "journal.active"))
	require.NoError(t, err)
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()

	be1, err := backend.Open(dir, 1<<20, nil)
	require.NoError(t, err)
	defer be1.Close()

	_, err = backend.Open(dir, 1<<20, nil)
	require.Error(t, err)
}

func TestFlushBufferWritesAndTracksRemaining(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 100, nil)
	require.NoError(t, err)
	defer be.Close()

	require.Equal(t, 100, be.RemainingBytes())

	payload := []byte("hello world")
	cb := newBlockingCallback()
	be.FlushBuffer(payload, true, []coalescer.Callback{cb})
	require.NoError(t, <-cb.done)

	require.Equal(t, 100-len(payload), be.RemainingBytes())

	data, err := os.ReadFile(filepath.Join(dir, "journal.active"))
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestFlushBufferNonSyncCompletesWithoutWaitingOnFsync(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 100, nil)
	require.NoError(t, err)
	defer be.Close()

	cb := newBlockingCallback()
	be.FlushBuffer([]byte("abc"), false, []coalescer.Callback{cb})
	require.NoError(t, <-cb.done)
}

func TestRollResetsRemainingBytes(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 50, nil)
	require.NoError(t, err)
	defer be.Close()

	cb := newBlockingCallback()
	be.FlushBuffer([]byte("0123456789"), true, []coalescer.Callback{cb})
	require.NoError(t, <-cb.done)
	require.Equal(t, 40, be.RemainingBytes())

	require.NoError(t, be.Roll())
	require.Equal(t, 50, be.RemainingBytes())

	_, err = os.Stat(filepath.Join(dir, "journal.active"))
	require.NoError(t, err)
}

func TestCloseIsIdempotentAndReleasesLock(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 1<<20, nil)
	require.NoError(t, err)

	require.NoError(t, be.Close())
	require.NoError(t, be.Close())

	be2, err := backend.Open(dir, 1<<20, nil)
	require.NoError(t, err)
	require.NoError(t, be2.Close())
}

func TestFlushBufferAfterCloseReturnsErrClosed(t *testing.T) {
	dir := t.TempDir()

	be, err := backend.Open(dir, 1<<20, nil)
	require.NoError(t, err)
	require.NoError(t, be.Close())

	cb := newBlockingCallback()
	be.FlushBuffer([]byte("x"), false, []coalescer.Callback{cb})
	require.EqualError(t, <-cb.done, backend.ErrClosed.Error())
}
