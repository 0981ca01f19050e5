package main

import (
	"bytes"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
)

// Dataset-level tables are shared between concurrent pipeline runs, for
// example two subjects converting at the same time. Updates run under an
// advisory flock on a sidecar .lock file.

const tableLockTimeout = 10 * time.Second

type fileLock struct {
	file *os.File
}

func acquireTableLock(path string, timeout time.Duration) (*fileLock, error) {
	lockPath := path + ".lock"
	deadline := time.Now().Add(timeout)
	for {
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open lock file %s: %v", lockPath, err)
		}
		err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &fileLock{file: file}, nil
		}
		file.Close()
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock on %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *fileLock) release() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
}

// withTableLock reads path under the lock, hands the content to handler and
// atomically replaces the file with the handler's result. A nil result
// means read-only access. A missing file is handed to the handler as nil
// content so the first writer creates the table.
func withTableLock(path string, handler func(content []byte) ([]byte, error)) error {
	lock, err := acquireTableLock(path, tableLockTimeout)
	if err != nil {
		return err
	}
	defer lock.release()

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		content = nil
	}
	updated, err := handler(content)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return atomic.WriteFile(path, bytes.NewReader(updated))
}
