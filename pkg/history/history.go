// Package history maintains a user's download ledger: an append-only text
// file of "post_url, filename" lines. Every append goes through one writer
// goroutine so concurrent download workers never interleave writes.
package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"profilegrab/pkg/models"
)

// ErrClosed is returned by Append after Close
var ErrClosed = errors.New("history log closed")

const separator = ", "

type appendRequest struct {
	entry models.HistoryEntry
	done  chan error
}

// Log is an open history file
type Log struct {
	fs   afero.Fs
	path string

	mu    sync.RWMutex
	names map[string]struct{}

	requests  chan appendRequest
	stopped   chan struct{}
	closeOnce sync.Once
	closing   chan struct{}
}

// Open loads the existing ledger at path, if any, and starts the writer
func Open(fs afero.Fs, path string) (*Log, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	names, err := load(fs, path)
	if err != nil {
		return nil, err
	}

	file, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	l := &Log{
		fs:       fs,
		path:     path,
		names:    names,
		requests: make(chan appendRequest),
		stopped:  make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go l.writer(file)
	return l, nil
}

func load(fs afero.Fs, path string) (map[string]struct{}, error) {
	names := map[string]struct{}{}
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return names, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if e, ok := ParseLine(sc.Text()); ok {
			names[e.Filename] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return names, nil
}

// ParseLine splits a ledger line. A line without a separator is taken to
// be a bare filename.
func ParseLine(line string) (models.HistoryEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.HistoryEntry{}, false
	}
	i := strings.LastIndex(line, separator)
	if i < 0 {
		return models.HistoryEntry{Filename: line}, true
	}
	name := strings.TrimSpace(line[i+len(separator):])
	if name == "" {
		return models.HistoryEntry{}, false
	}
	return models.HistoryEntry{PostURL: line[:i], Filename: name}, true
}

// FormatLine renders an entry the way it is stored
func FormatLine(e models.HistoryEntry) string {
	return e.PostURL + separator + e.Filename + "\n"
}

func (l *Log) writer(file afero.File) {
	defer close(l.stopped)
	defer file.Close()

	for {
		select {
		case req := <-l.requests:
			req.done <- l.write(file, req.entry)
		case <-l.closing:
			return
		}
	}
}

func (l *Log) write(file afero.File, e models.HistoryEntry) error {
	l.mu.RLock()
	_, dup := l.names[e.Filename]
	l.mu.RUnlock()
	if dup {
		return nil
	}

	if _, err := file.WriteString(FormatLine(e)); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync history: %w", err)
	}

	l.mu.Lock()
	l.names[e.Filename] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Contains reports whether filename was already downloaded
func (l *Log) Contains(filename string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.names[filename]
	return ok
}

// Len returns the number of distinct filenames in the ledger
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}

// Append durably records a finished download and returns once the line is
// on disk. A filename already in the ledger is not written again.
func (l *Log) Append(ctx context.Context, e models.HistoryEntry) error {
	if e.Filename == "" || strings.ContainsAny(e.Filename, "\r\n") || strings.ContainsAny(e.PostURL, "\r\n") {
		return fmt.Errorf("invalid history entry %q", e.Filename)
	}

	req := appendRequest{entry: e, done: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-l.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted, the write completes even if ctx ends.
	return <-req.done
}

// Close stops the writer after any accepted append has finished
func (l *Log) Close() error {
	l.closeOnce.Do(func() {
		close(l.closing)
	})
	<-l.stopped
	return nil
}

// Path returns the ledger's file path
func (l *Log) Path() string {
	return l.path
}
