package backend

import (
	"errors"
	"os"
	"path/filepath"
)

var errLockBusy = errors.New("backend: data directory already in use")

// dataDirLock is an advisory, process-exclusive lock on a backend's data
// directory, so two FileBackend instances never rotate the same files
// underneath each other.
type dataDirLock struct {
	file *os.File
}

func acquireDataDirLock(dir string) (*dataDirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(dir, "LOCK")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	l := &dataDirLock{file: f}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *dataDirLock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	cerr := l.file.Close()
	l.file = nil
	if err != nil {
		if cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return cerr
}
