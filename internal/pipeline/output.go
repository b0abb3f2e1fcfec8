package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"ytwhisper/internal/subtitles"
	"ytwhisper/internal/textutil"
)

const outputLockRetry = 100 * time.Millisecond

// OutputPath returns where a subtitle for title is written. An empty title
// falls back to fallback (usually the media ID).
func OutputPath(dir, title, fallback string, format subtitles.Format) string {
	return filepath.Join(dir, textutil.FileStem(title, fallback)+format.Extension())
}

// outputLockPath is the advisory lock guarding path. The lock file stays on
// disk after use: unlinking it would let a waiter and a newcomer lock
// different inodes at the same time.
func outputLockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// WriteSubtitles renders segments to path. The document is written to a
// temporary file in the same directory and renamed into place while holding
// an advisory lock on path, so concurrent jobs and processes targeting the
// same file replace it one at a time.
func WriteSubtitles(ctx context.Context, path string, segments []subtitles.Segment, format subtitles.Format, opts subtitles.RenderOptions) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(outputLockPath(path))
	locked, err := lock.TryLockContext(ctx, outputLockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", path)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := subtitles.Render(w, segments, format, opts); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	committed = true
	return nil
}
