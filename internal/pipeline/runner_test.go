package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ytwhisper/internal/config"
	"ytwhisper/internal/history"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/media"
	"ytwhisper/internal/pipeline"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
	"ytwhisper/internal/testsupport"
	"ytwhisper/internal/transcribe"
)

type fakeSource struct {
	mu       sync.Mutex
	items    map[string][]*media.Audio
	errs     map[string]error
	resolved []string
}

func (f *fakeSource) Resolve(_ context.Context, source string) ([]*media.Audio, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, source)
	f.mu.Unlock()
	if err := f.errs[source]; err != nil {
		return nil, err
	}
	return f.items[source], nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    []transcribe.Options
	segments map[string][]subtitles.Segment
	errs     map[string]error
	delay    time.Duration
	active   atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTranscriber) Backend() string { return config.BackendWhisperX }

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string, opts transcribe.Options) ([]subtitles.Segment, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if err := f.errs[audioPath]; err != nil {
		return nil, err
	}
	if segs, ok := f.segments[audioPath]; ok {
		return segs, nil
	}
	return []subtitles.Segment{
		{Start: 0, End: 2.5, Text: "Hello from " + filepath.Base(audioPath)},
		{Start: 2.5, End: 4, Text: "Second line."},
	}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func audio(source, id, title string) *media.Audio {
	return &media.Audio{Source: source, ID: id, Title: title, Path: "/audio/" + id + ".mp3", Duration: 4}
}

func baseOptions(t *testing.T, cfg *config.Config) pipeline.Options {
	t.Helper()
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	return opts
}

func TestRunWritesSubtitleAndRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := "https://www.youtube.com/watch?v=abc"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "abc", "Sample Talk")}}}
	tr := &fakeTranscriber{}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	var out bytes.Buffer
	runner.SetOutput(&out)

	results, err := runner.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	wantPath, _ := filepath.Abs(filepath.Join(cfg.Paths.OutputDir, "sample-talk.srt"))
	if res.OutputPath != wantPath {
		t.Fatalf("OutputPath = %q, want %q", res.OutputPath, wantPath)
	}
	if res.Segments != 2 || res.Cached || res.RunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello from abc.mp3\n\n2\n00:00:02,500 --> 00:00:04,000\nSecond line.\n\n"
	if string(data) != want {
		t.Fatalf("unexpected document:\n%q\nwant\n%q", data, want)
	}
	if got := out.String(); got != "Saved SRT to "+wantPath+"\n" {
		t.Fatalf("unexpected stdout %q", got)
	}

	run, err := store.Get(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != history.StatusSucceeded || run.OutputPath != wantPath || run.SegmentCount != 2 {
		t.Fatalf("unexpected history run: %+v", run)
	}
	if run.Backend != config.BackendWhisperX || run.Model != cfg.Transcription.Model || run.Format != "srt" {
		t.Fatalf("unexpected run key fields: %+v", run)
	}
}

func TestRunPlaylistProducesOneResultPerItem(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormat("vtt"), testsupport.WithoutHistory())
	source := "https://www.youtube.com/playlist?list=PL1"
	src := &fakeSource{items: map[string][]*media.Audio{source: {
		audio(source, "one", "Episode One"),
		audio(source, "two", "Episode Two"),
	}}}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, &fakeTranscriber{}, nil, logging.NewNop())
	runner.SetOutput(nil)
	results, err := runner.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, name := range []string{"episode-one.vtt", "episode-two.vtt"} {
		if filepath.Base(results[i].OutputPath) != name {
			t.Fatalf("result %d path = %q, want %s", i, results[i].OutputPath, name)
		}
		data, err := os.ReadFile(results[i].OutputPath)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "WEBVTT\n\n") {
			t.Fatalf("expected VTT header in %s, got %q", name, data)
		}
	}
	if results[0].RunID == results[1].RunID {
		t.Fatal("expected distinct run IDs per item")
	}
}

func TestRunContinuesAfterFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	missing := "/nope/missing.mp4"
	broken := "https://example.com/broken"
	good := "https://example.com/good"
	src := &fakeSource{
		items: map[string][]*media.Audio{
			broken: {audio(broken, "broken", "Broken")},
			good:   {audio(good, "good", "Good")},
		},
		errs: map[string]error{
			missing: services.Wrap(services.ErrNotFound, "media", "resolve", "no such file", nil),
		},
	}
	tr := &fakeTranscriber{errs: map[string]error{
		"/audio/broken.mp3": services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "exit 1", nil),
	}}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	runner.SetOutput(nil)
	results, err := runner.Run(context.Background(), []string{missing, broken, good})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !errors.Is(err, services.ErrNotFound) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected both failures in joined error, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err == nil || results[1].Err == nil {
		t.Fatalf("expected first two results to fail: %+v", results)
	}
	if results[2].Err != nil || results[2].OutputPath == "" {
		t.Fatalf("expected good source to succeed: %+v", results[2])
	}

	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	kinds := map[string]int{}
	for _, run := range runs {
		if run.Status == history.StatusFailed {
			kinds[run.ErrorKind]++
		}
	}
	if kinds["not_found"] != 1 || kinds["external_tool"] != 1 {
		t.Fatalf("unexpected failed run kinds: %v", kinds)
	}
}

func TestRunReusesStoredTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := "https://www.youtube.com/watch?v=cached"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "cached", "Cached Talk")}}}
	tr := &fakeTranscriber{}

	first := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	first.SetOutput(nil)
	if _, err := first.Run(context.Background(), []string{source}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	opts := baseOptions(t, cfg)
	opts.Format = subtitles.FormatTXT
	second := pipeline.NewRunner(opts, src, tr, store, logging.NewNop())
	second.SetOutput(nil)
	results, err := second.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if tr.callCount() != 1 {
		t.Fatalf("expected transcriber to run once, ran %d times", tr.callCount())
	}
	if len(src.resolved) != 1 {
		t.Fatalf("expected audio to be resolved once, got %v", src.resolved)
	}
	if len(results) != 1 || !results[0].Cached {
		t.Fatalf("expected cached result, got %+v", results)
	}
	data, err := os.ReadFile(results[0].OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "Hello from cached.mp3\nSecond line.\n" {
		t.Fatalf("unexpected text output %q", data)
	}
}

func TestRunRetriesPlaylistWithFailedEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := "https://www.youtube.com/playlist?list=PLpartial"
	src := &fakeSource{items: map[string][]*media.Audio{source: {
		audio(source, "one", "One"),
		audio(source, "two", "Two"),
	}}}
	tr := &fakeTranscriber{errs: map[string]error{
		"/audio/two.mp3": services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "boom", nil),
	}}

	first := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	first.SetOutput(nil)
	if _, err := first.Run(context.Background(), []string{source}); err == nil {
		t.Fatal("expected first run to report the failed entry")
	}

	tr.errs = nil
	second := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	second.SetOutput(nil)
	results, err := second.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both entries on retry, got %+v", results)
	}
	for _, res := range results {
		if res.Cached || res.Err != nil || res.OutputPath == "" {
			t.Fatalf("expected fresh transcription, got %+v", res)
		}
	}
	if len(src.resolved) != 2 || tr.callCount() != 4 {
		t.Fatalf("expected playlist resolved again and retranscribed: resolved=%v calls=%d", src.resolved, tr.callCount())
	}

	third := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
	third.SetOutput(nil)
	results, err = third.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if len(results) != 2 || !results[0].Cached || !results[1].Cached {
		t.Fatalf("expected complete batch to be reused, got %+v", results)
	}
	if tr.callCount() != 4 {
		t.Fatalf("expected no further transcription, got %d calls", tr.callCount())
	}
}

func TestRunSkipsCacheWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.ReuseTranscripts = false
	store := testsupport.MustOpenStore(t, cfg)
	source := "https://www.youtube.com/watch?v=fresh"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "fresh", "Fresh")}}}
	tr := &fakeTranscriber{}

	for i := range 2 {
		runner := pipeline.NewRunner(baseOptions(t, cfg), src, tr, store, logging.NewNop())
		runner.SetOutput(nil)
		if _, err := runner.Run(context.Background(), []string{source}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if tr.callCount() != 2 {
		t.Fatalf("expected 2 transcriptions, got %d", tr.callCount())
	}
}

func TestRunRejectsMalformedSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	source := "clip.mp4"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "clip", "Clip")}}}
	tr := &fakeTranscriber{segments: map[string][]subtitles.Segment{
		"/audio/clip.mp3": {{Start: 3, End: 1, Text: "backwards"}},
	}}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, tr, nil, logging.NewNop())
	runner.SetOutput(nil)
	results, err := runner.Run(context.Background(), []string{source})
	var malformed *subtitles.MalformedSegmentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSegmentError, got %v", err)
	}
	if len(results) != 1 || results[0].OutputPath != "" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.OutputDir, "clip.srt")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err = %v", statErr)
	}
}

func TestRunValidatesInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	src := &fakeSource{}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, &fakeTranscriber{}, nil, logging.NewNop())
	if _, err := runner.Run(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for no sources, got %v", err)
	}

	opts := baseOptions(t, cfg)
	opts.Transcribe.Task = "summarize"
	runner = pipeline.NewRunner(opts, src, &fakeTranscriber{}, nil, logging.NewNop())
	if _, err := runner.Run(context.Background(), []string{"x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad task, got %v", err)
	}

	opts = baseOptions(t, cfg)
	opts.Format = "ass"
	runner = pipeline.NewRunner(opts, src, &fakeTranscriber{}, nil, logging.NewNop())
	if _, err := runner.Run(context.Background(), []string{"x"}); !errors.Is(err, subtitles.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if len(src.resolved) != 0 {
		t.Fatalf("expected no work before validation passes, resolved %v", src.resolved)
	}
}

func TestRunForcesEnglishForEnglishOnlyModels(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	cfg.Transcription.Model = "small.en"
	cfg.Transcription.Language = "de"
	source := "talk.mp4"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "talk", "Talk")}}}
	tr := &fakeTranscriber{}

	runner := pipeline.NewRunner(baseOptions(t, cfg), src, tr, nil, logging.NewNop())
	runner.SetOutput(nil)
	if _, err := runner.Run(context.Background(), []string{source}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr.calls) != 1 || tr.calls[0].Language != "en" {
		t.Fatalf("expected language forced to en, got %+v", tr.calls)
	}
}

func TestRunHonorsParallelLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	items := map[string][]*media.Audio{}
	var sources []string
	for i := range 6 {
		source := fmt.Sprintf("clip-%d.mp4", i)
		sources = append(sources, source)
		items[source] = []*media.Audio{audio(source, fmt.Sprintf("clip%d", i), "")}
	}
	tr := &fakeTranscriber{delay: 20 * time.Millisecond}

	opts := baseOptions(t, cfg)
	opts.MaxParallelJobs = 2
	runner := pipeline.NewRunner(opts, &fakeSource{items: items}, tr, nil, logging.NewNop())
	runner.SetOutput(nil)
	results, err := runner.Run(context.Background(), sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(sources) {
		t.Fatalf("expected %d results, got %d", len(sources), len(results))
	}
	for i, res := range results {
		if res.Source != sources[i] {
			t.Fatalf("result %d source = %q, want %q", i, res.Source, sources[i])
		}
	}
	if peak := tr.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestRunCancelledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := baseOptions(t, cfg)
	runner := pipeline.NewRunner(opts, &fakeSource{}, &fakeTranscriber{}, nil, logging.NewNop())
	_, err := runner.Run(ctx, []string{"a.mp4", "b.mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunFiltersHallucinations(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormat("txt"), testsupport.WithoutHistory())
	source := "outro.mp4"
	src := &fakeSource{items: map[string][]*media.Audio{source: {audio(source, "outro", "Outro")}}}
	tr := &fakeTranscriber{segments: map[string][]subtitles.Segment{
		"/audio/outro.mp3": {
			{Start: 1, End: 3, Text: "That's all for today."},
			{Start: 60, End: 62, Text: "Thanks for watching!"},
		},
	}}

	opts := baseOptions(t, cfg)
	if !opts.FilterHallucinations {
		t.Fatal("expected hallucination filtering to be on by default")
	}
	runner := pipeline.NewRunner(opts, src, tr, nil, logging.NewNop())
	runner.SetOutput(nil)
	results, err := runner.Run(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Segments != 1 {
		t.Fatalf("Segments = %d, want 1", results[0].Segments)
	}
	data, err := os.ReadFile(results[0].OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "That's all for today.\n" {
		t.Fatalf("unexpected output %q", data)
	}
}
