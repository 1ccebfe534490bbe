package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyWriter appends to <dir>/YYYY-MM-DD.log and switches files when the
// local date changes.
type DailyWriter struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// NewDailyWriter creates dir if needed and opens today's file.
func NewDailyWriter(dir string) (*DailyWriter, error) {
	return newDailyWriter(dir, time.Now)
}

func newDailyWriter(dir string, now func() time.Time) (*DailyWriter, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &DailyWriter{dir: dir, now: now}
	if err := w.rotate(now().Format(dayLayout)); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if day := w.now().Format(dayLayout); day != w.day || w.file == nil {
		if err := w.rotate(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

// Path is the file currently written to.
func (w *DailyWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return filepath.Join(w.dir, w.day+".log")
}

// Close closes the current file.
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *DailyWriter) rotate(day string) error {
	f, err := os.OpenFile(filepath.Join(w.dir, day+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open daily log: %w", err)
	}
	if w.file != nil {
		w.file.Close()
	}
	w.file = f
	w.day = day
	return nil
}
