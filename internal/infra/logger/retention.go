package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Prune deletes *.log files in dir whose modification time is older than
// days. It returns the number of files removed. Retention is disabled when
// days is not positive.
func Prune(dir string, days int, now time.Time) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// StartRetention prunes dir once, then every 24 hours until stop is called.
func StartRetention(dir string, days int, log *slog.Logger) (stop func(), err error) {
	if days <= 0 {
		return func() {}, nil
	}
	prune := func() {
		n, err := Prune(dir, days, time.Now())
		if err != nil {
			log.Warn("log retention failed", "dir", dir, "error", err)
			return
		}
		if n > 0 {
			log.Info("old log files removed", "count", n, "retention_days", days)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc("@every 24h", prune); err != nil {
		return nil, fmt.Errorf("schedule log retention: %w", err)
	}
	prune()
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
