package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytwhisper/internal/config"
	"ytwhisper/internal/history"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/media"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
	"ytwhisper/internal/transcribe"
)

// AudioSource resolves a URL or path into transcription-ready audio.
type AudioSource interface {
	Resolve(ctx context.Context, source string) ([]*media.Audio, error)
}

// HistoryStore records runs and serves stored transcripts.
type HistoryStore interface {
	Record(ctx context.Context, run history.Run, segments []subtitles.Segment) (history.Run, error)
	FindTranscripts(ctx context.Context, key history.TranscriptKey) ([]history.Transcript, error)
}

// Options controls a pipeline run.
type Options struct {
	OutputDir        string
	Format           subtitles.Format
	Render           subtitles.RenderOptions
	Transcribe       transcribe.Options
	MaxParallelJobs  int
	ReuseTranscripts bool
	// FilterHallucinations drops filler segments before rendering.
	FilterHallucinations bool
}

// OptionsFromConfig derives pipeline options from application config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	format, err := subtitles.ParseFormat(cfg.Subtitles.Format)
	if err != nil {
		return Options{}, err
	}
	return Options{
		OutputDir: cfg.Paths.OutputDir,
		Format:    format,
		Render: subtitles.RenderOptions{
			MaxLineLength: cfg.Subtitles.BreakLines,
			ClampInverted: cfg.Subtitles.ClampInvertedSegments,
		},
		Transcribe:           transcribe.OptionsFromConfig(cfg),
		MaxParallelJobs:      cfg.Workflow.MaxParallelJobs,
		ReuseTranscripts:     cfg.History.Enabled && cfg.History.ReuseTranscripts,
		FilterHallucinations: cfg.Transcription.FilterHallucinations,
	}, nil
}

// Result describes the outcome for one media item. A source that fails before
// any item is known yields a single Result carrying the error.
type Result struct {
	RunID      string
	Source     string
	MediaID    string
	Title      string
	OutputPath string
	Segments   int
	Duration   float64
	Cached     bool
	Err        error
}

// Runner executes the fetch, transcribe, render sequence for a batch of sources.
type Runner struct {
	opts        Options
	audio       AudioSource
	transcriber transcribe.Transcriber
	store       HistoryStore
	logger      *slog.Logger
	out         io.Writer
	outMu       sync.Mutex
}

// NewRunner wires a runner. store may be nil to disable history and reuse.
func NewRunner(opts Options, audio AudioSource, transcriber transcribe.Transcriber, store HistoryStore, logger *slog.Logger) *Runner {
	if opts.MaxParallelJobs <= 0 {
		opts.MaxParallelJobs = 1
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = "."
	}
	if store == nil || isNilStore(store) {
		store = nil
		opts.ReuseTranscripts = false
	}
	return &Runner{
		opts:        opts,
		audio:       audio,
		transcriber: transcriber,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		out:         os.Stdout,
	}
}

func isNilStore(store HistoryStore) bool {
	s, ok := store.(*history.Store)
	return ok && s == nil
}

// SetOutput redirects the "Saved ..." lines printed for each written file.
func (r *Runner) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	r.out = w
}

// Run processes sources and returns one Result per media item in source order.
// The error joins every per-item failure; nil means all items succeeded.
func (r *Runner) Run(ctx context.Context, sources []string) ([]Result, error) {
	if len(sources) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "no sources given", nil)
	}
	if r.transcriber == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run", "no transcriber configured", nil)
	}
	if !r.opts.Format.Timed() && r.opts.Format != subtitles.FormatTXT {
		return nil, &subtitles.UnsupportedFormatError{Format: string(r.opts.Format)}
	}
	topts, err := r.opts.Transcribe.Normalize()
	if err != nil {
		return nil, err
	}
	topts = transcribe.ApplyModelLanguage(topts, r.logger)

	batchID := uuid.NewString()
	started := time.Now()
	r.logger.Info("transcription batch started",
		logging.String("batch_id", batchID),
		logging.Int("sources", len(sources)),
		logging.String("backend", r.transcriber.Backend()),
		logging.String("model", topts.Model),
		logging.String("task", topts.Task),
		logging.String("format", string(r.opts.Format)),
		logging.Int("max_parallel_jobs", r.opts.MaxParallelJobs),
	)

	perSource := make([][]Result, len(sources))
	sem := make(chan struct{}, r.opts.MaxParallelJobs)
	var wg sync.WaitGroup
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			perSource[i] = []Result{{Source: source, Err: err}}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			perSource[i] = []Result{{Source: source, Err: ctx.Err()}}
			continue
		}
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			defer func() { <-sem }()
			perSource[i] = r.processSource(ctx, batchID, source, topts)
		}(i, source)
	}
	wg.Wait()

	var (
		results []Result
		errs    []error
		failed  int
	)
	for _, items := range perSource {
		for _, res := range items {
			results = append(results, res)
			if res.Err != nil {
				failed++
				errs = append(errs, fmt.Errorf("%s: %w", describe(res), res.Err))
			}
		}
	}

	r.logger.Info("transcription batch complete",
		logging.String("batch_id", batchID),
		logging.Int("items", len(results)),
		logging.Int("failed", failed),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return results, errors.Join(errs...)
}

func describe(res Result) string {
	if res.Title != "" {
		return fmt.Sprintf("%s (%s)", res.Source, res.Title)
	}
	return res.Source
}

func (r *Runner) processSource(ctx context.Context, batchID, source string, opts transcribe.Options) []Result {
	source = strings.TrimSpace(source)
	ctx = services.WithSource(ctx, source)
	logger := logging.WithContext(ctx, r.logger)

	if results, ok := r.reuseTranscripts(ctx, batchID, source, opts, logger); ok {
		return results
	}

	audios, err := r.audio.Resolve(ctx, source)
	if err != nil {
		runID := uuid.NewString()
		r.logFailure(logger.With(logging.String(logging.FieldRunID, runID)), "audio acquisition failed", err)
		r.record(ctx, logger, history.Run{ID: runID, BatchID: batchID, Source: source}, opts, nil, err)
		return []Result{{RunID: runID, Source: source, Err: err}}
	}
	if len(audios) == 0 {
		err := services.Wrap(services.ErrNotFound, "pipeline", "resolve", "source produced no media", nil)
		r.logFailure(logger, "no media found", err)
		return []Result{{Source: source, Err: err}}
	}

	results := make([]Result, 0, len(audios))
	for _, audio := range audios {
		if ctx.Err() != nil {
			results = append(results, Result{Source: source, MediaID: audio.ID, Title: audio.Title, Err: ctx.Err()})
			_ = audio.Cleanup()
			continue
		}
		results = append(results, r.processAudio(ctx, batchID, audio, opts))
	}
	return results
}

func (r *Runner) processAudio(ctx context.Context, batchID string, audio *media.Audio, opts transcribe.Options) Result {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	defer func() {
		if err := audio.Cleanup(); err != nil {
			logging.WarnWithContext(logger, "audio cleanup failed", "audio_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate audio left on disk"),
				logging.String(logging.FieldErrorHint, "remove the scratch directory manually"),
			)
		}
	}()

	res := Result{
		RunID:    runID,
		Source:   audio.Source,
		MediaID:  audio.ID,
		Title:    audio.Title,
		Duration: audio.Duration,
	}
	run := history.Run{
		ID:              runID,
		BatchID:         batchID,
		Source:          audio.Source,
		MediaID:         audio.ID,
		Title:           audio.Title,
		DurationSeconds: audio.Duration,
	}

	logger.Info("transcribing audio",
		logging.String("title", audio.Title),
		logging.String("audio", audio.Path),
		logging.String("backend", r.transcriber.Backend()),
		logging.String("model", opts.Model),
		logging.String("language", opts.Language),
	)
	started := time.Now()
	segments, err := r.transcriber.Transcribe(ctx, audio.Path, opts)
	if err != nil {
		r.logFailure(logger, "transcription failed", err)
		r.record(ctx, logger, run, opts, nil, err)
		res.Err = err
		return res
	}
	logger.Info("transcription complete",
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	if r.opts.FilterHallucinations {
		filtered := transcribe.FilterHallucinations(segments)
		transcribe.LogRemovals(ctx, logger, filtered)
		segments = filtered.Segments
	}

	path, err := r.write(ctx, logger, audio.Title, audio.ID, segments)
	if err != nil {
		r.logFailure(logger, "subtitle write failed", err)
		r.record(ctx, logger, run, opts, segments, err)
		res.Err = err
		return res
	}
	run.OutputPath = path
	r.record(ctx, logger, run, opts, segments, nil)

	res.OutputPath = path
	res.Segments = len(segments)
	return res
}

func (r *Runner) reuseTranscripts(ctx context.Context, batchID, source string, opts transcribe.Options, logger *slog.Logger) ([]Result, bool) {
	if !r.opts.ReuseTranscripts || r.store == nil {
		return nil, false
	}
	transcripts, err := r.store.FindTranscripts(ctx, r.key(source, opts))
	if err != nil {
		logging.WarnWithContext(logger, "transcript lookup failed", "transcript_cache_error",
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio will be transcribed again"),
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
		)
		return nil, false
	}
	if len(transcripts) == 0 {
		return nil, false
	}

	results := make([]Result, 0, len(transcripts))
	for _, stored := range transcripts {
		runID := uuid.NewString()
		runCtx := services.WithRunID(ctx, runID)
		runLogger := logging.WithContext(runCtx, r.logger)
		runLogger.Info("reusing stored transcript",
			logging.String("previous_run_id", stored.Run.ID),
			logging.String("title", stored.Run.Title),
			logging.Int("segments", len(stored.Segments)),
			logging.String(logging.FieldEventType, "transcript_cache_hit"),
		)

		res := Result{
			RunID:    runID,
			Source:   source,
			MediaID:  stored.Run.MediaID,
			Title:    stored.Run.Title,
			Duration: stored.Run.DurationSeconds,
			Cached:   true,
		}
		run := history.Run{
			ID:              runID,
			BatchID:         batchID,
			Source:          source,
			MediaID:         stored.Run.MediaID,
			Title:           stored.Run.Title,
			DurationSeconds: stored.Run.DurationSeconds,
		}
		path, err := r.write(runCtx, runLogger, stored.Run.Title, stored.Run.MediaID, stored.Segments)
		if err != nil {
			r.logFailure(runLogger, "subtitle write failed", err)
			r.record(runCtx, runLogger, run, opts, stored.Segments, err)
			res.Err = err
			results = append(results, res)
			continue
		}
		run.OutputPath = path
		r.record(runCtx, runLogger, run, opts, stored.Segments, nil)
		res.OutputPath = path
		res.Segments = len(stored.Segments)
		results = append(results, res)
	}
	return results, true
}

func (r *Runner) write(ctx context.Context, logger *slog.Logger, title, mediaID string, segments []subtitles.Segment) (string, error) {
	path := OutputPath(r.opts.OutputDir, title, mediaID, r.opts.Format)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := WriteSubtitles(ctx, path, segments, r.opts.Format, r.opts.Render); err != nil {
		return "", err
	}

	if issues := subtitles.ValidateFile(path, r.opts.Format, len(segments)); len(issues) > 0 {
		logging.WarnWithContext(logger, "subtitle validation reported issues", "subtitle_validation",
			logging.String("path", path),
			logging.Any("issues", issues),
			logging.String(logging.FieldImpact, "subtitle file may not play correctly"),
			logging.String(logging.FieldErrorHint, "inspect the file or re-render it from history"),
		)
	}

	logger.Info("subtitles written",
		logging.String("path", path),
		logging.String("format", string(r.opts.Format)),
		logging.Int("segments", len(segments)),
		logging.String(logging.FieldEventType, "subtitles_written"),
	)
	r.outMu.Lock()
	fmt.Fprintf(r.out, "Saved %s to %s\n", r.opts.Format.Label(), path)
	r.outMu.Unlock()
	return path, nil
}

func (r *Runner) key(source string, opts transcribe.Options) history.TranscriptKey {
	return history.TranscriptKey{
		Source:   source,
		Backend:  r.transcriber.Backend(),
		Model:    opts.Model,
		Task:     opts.Task,
		Language: opts.Language,
	}
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, run history.Run, opts transcribe.Options, segments []subtitles.Segment, runErr error) {
	if r.store == nil {
		return
	}
	run.Backend = r.transcriber.Backend()
	run.Model = opts.Model
	run.Task = opts.Task
	run.Language = opts.Language
	run.Format = string(r.opts.Format)
	run.Status = history.StatusSucceeded
	if runErr != nil {
		run.Status = history.StatusFailed
		run.ErrorKind = services.Kind(runErr)
		run.ErrorMessage = runErr.Error()
	}
	// Failures of a cancelled batch are still recorded.
	if _, err := r.store.Record(context.WithoutCancel(ctx), run, segments); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history and transcript cache"),
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
		)
	}
}

func (r *Runner) logFailure(logger *slog.Logger, msg string, err error) {
	hint := "check logs for details"
	switch {
	case errors.Is(err, services.ErrNotFound):
		hint = "check the path or URL"
	case errors.Is(err, services.ErrExternalTool):
		hint = "run 'ytwhisper status' to verify yt-dlp, ffmpeg, and whisperx"
	case errors.Is(err, services.ErrConfiguration):
		hint = "run 'ytwhisper config validate'"
	}
	logging.ErrorWithContext(logger, msg, "item_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, hint),
	)
}
