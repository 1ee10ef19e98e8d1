package history

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLedger keeps the whole ledger as an indented JSON array in a single
// file. Appends are serialized by a mutex and published with an atomic
// rename, so readers never observe a partially written ledger.
type FileLedger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileLedger returns a ledger backed by path. The file is created on the
// first append; a missing or empty file reads as an empty ledger.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path, now: time.Now}
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string { return l.path }

func (l *FileLedger) Append(_ context.Context, e Entry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return "", err
	}

	e.ID = FormatID(len(entries) + 1)
	e.Timestamp = l.now().UTC()
	entries = append(entries, &e)

	if err := l.writeAll(entries); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (l *FileLedger) ListBy(_ context.Context, abhaID string) ([]*Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0)
	for _, e := range entries {
		if e.ABHAID == abhaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *FileLedger) readAll() ([]*Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read ledger", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, storageErr("decode ledger", err)
	}
	return entries, nil
}

func (l *FileLedger) writeAll(entries []*Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return storageErr("encode ledger", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageErr("create ledger dir", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return storageErr("create temp ledger", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return storageErr("chmod temp ledger", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageErr("write temp ledger", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageErr("sync temp ledger", err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("close temp ledger", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return storageErr("replace ledger", err)
	}
	return nil
}
