package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow streams events to fn as they are appended to the log, starting with
// the events already on disk. It returns when ctx is cancelled or fn returns
// an error.
func (l *Logger) Follow(ctx context.Context, fn func(LogEvent) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so the log file may be created after we start.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch log directory: %w", err)
	}

	var offset int64
	drain := func() error {
		events, next, err := l.readSince(offset)
		if err != nil {
			return err
		}
		offset = next
		for _, e := range events {
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}

	if err := drain(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != l.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", werr)
		}
	}
}

// readSince reads complete events written after offset.
func (l *Logger) readSince(offset int64) ([]LogEvent, int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	return readFrom(f, offset)
}
