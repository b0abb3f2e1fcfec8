package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"ytwhisper/internal/config"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Audio is a transcription-ready audio file derived from a source.
type Audio struct {
	// Source is the URL or path exactly as supplied.
	Source string
	// ID is the yt-dlp video ID, or the file stem for local sources.
	ID string
	// Title is the human title used to name subtitle files.
	Title string
	// Path is the extracted audio file.
	Path string
	// Duration is the media length in seconds, 0 when unknown.
	Duration float64

	scratch *scratchDir
	keep    bool
	cleaned bool
}

// Cleanup releases the audio's hold on its scratch directory. The directory is
// removed once every Audio sharing it has been cleaned up. It is a no-op when
// audio retention is enabled.
func (a *Audio) Cleanup() error {
	if a == nil || a.keep || a.scratch == nil || a.cleaned {
		return nil
	}
	a.cleaned = true
	return a.scratch.release()
}

// scratchDir is shared by every item of one download.
type scratchDir struct {
	path string
	refs atomic.Int32
}

func (s *scratchDir) release() error {
	if s.refs.Add(-1) > 0 {
		return nil
	}
	if err := removeAll(s.path); err != nil {
		return fmt.Errorf("remove scratch dir %s: %w", s.path, err)
	}
	return nil
}

func removeAll(path string) error {
	return os.RemoveAll(path)
}

// Resolver acquires audio for URLs and local files.
type Resolver struct {
	cfg      config.Media
	workRoot string
	language string
	logger   *slog.Logger
	run      CommandRunner
}

// NewResolver builds a resolver from application config.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:      cfg.Media,
		workRoot: cfg.ScratchRoot(),
		language: cfg.Transcription.Language,
		logger:   logging.NewComponentLogger(logger, "media"),
		run:      runCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Resolver) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		r.run = runner
	}
}

// Resolve returns one Audio per media item behind source. Playlist URLs can
// yield several items. A local path that does not exist returns an error
// classified as services.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, source string) ([]*Audio, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "media", "resolve", "empty source", nil)
	}
	if IsURL(source) {
		return r.download(ctx, source)
	}
	audio, err := r.extractLocal(ctx, source)
	if err != nil {
		return nil, err
	}
	return []*Audio{audio}, nil
}

// IsURL reports whether source should be fetched with yt-dlp rather than read from disk.
func IsURL(source string) bool {
	parsed, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	}
	return false
}

func (r *Resolver) newScratchDir() (*scratchDir, error) {
	if err := os.MkdirAll(r.workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work dir: %w", err)
	}
	dir, err := os.MkdirTemp(r.workRoot, "ytwhisper-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &scratchDir{path: dir}, nil
}

func (r *Resolver) finalize(audio *Audio) *Audio {
	audio.keep = r.cfg.KeepAudio
	if audio.keep {
		r.logger.Info("keeping extracted audio",
			logging.String("path", audio.Path),
			logging.String(logging.FieldEventType, "audio_retained"),
		)
	}
	return audio
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
