package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ytwhisper/internal/history"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
	"ytwhisper/internal/testsupport"
)

func sampleRun(source string) history.Run {
	return history.Run{
		Source:   source,
		MediaID:  "abc123",
		Title:    "Sample Talk",
		Backend:  "whisperx",
		Model:    "small",
		Task:     "transcribe",
		Language: "en",
		Format:   "srt",
	}
}

func sampleSegments() []subtitles.Segment {
	return []subtitles.Segment{
		{Start: 0, End: 1.5, Text: "Hello there."},
		{Start: 1.5, End: 3.25, Text: "General Kenobi."},
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if store.Path() != cfg.Paths.HistoryDB {
		t.Fatalf("Path = %q, want %q", store.Path(), cfg.Paths.HistoryDB)
	}
	runs, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty history, got %d runs", len(runs))
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), sampleRun("https://youtu.be/x"), sampleSegments()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after reopen, got %d", len(runs))
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_version SET version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := history.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordFillsDefaultsAndStoresSegments(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.Record(ctx, sampleRun("https://youtu.be/x"), sampleSegments())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == "" || run.BatchID != run.ID {
		t.Fatalf("expected generated id reused as batch id, got id=%q batch=%q", run.ID, run.BatchID)
	}
	if run.Status != history.StatusSucceeded {
		t.Fatalf("Status = %q, want succeeded", run.Status)
	}
	if run.SegmentCount != 2 {
		t.Fatalf("SegmentCount = %d, want 2", run.SegmentCount)
	}
	if run.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Sample Talk" || got.MediaID != "abc123" || got.Format != "srt" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}

	segments, err := store.Segments(ctx, run.ID)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := sampleSegments()
	if len(segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(segments), len(want))
	}
	for i := range want {
		if segments[i] != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, segments[i], want[i])
		}
	}
}

func TestRecordFailedRunKeepsNoSegments(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	failed := sampleRun("https://youtu.be/broken")
	failed.Status = history.StatusFailed
	failed.ErrorKind = "external_tool"
	failed.ErrorMessage = "yt-dlp exited 1"
	run, err := store.Record(ctx, failed, sampleSegments())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	segments, err := store.Segments(ctx, run.ID)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments for failed run, got %d", len(segments))
	}
	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ErrorKind != "external_tool" || got.ErrorMessage != "yt-dlp exited 1" {
		t.Fatalf("unexpected error fields: %+v", got)
	}
}

func TestGetByPrefix(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := sampleRun("a")
	first.ID = "aaaa1111-0000-0000-0000-000000000000"
	second := sampleRun("b")
	second.ID = "aaaa2222-0000-0000-0000-000000000000"
	for _, run := range []history.Run{first, second} {
		if _, err := store.Record(ctx, run, nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.Get(ctx, "aaaa2")
	if err != nil {
		t.Fatalf("Get prefix: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("Get prefix returned %q", got.ID)
	}

	if _, err := store.Get(ctx, "aaaa"); !errors.Is(err, history.ErrAmbiguousID) {
		t.Fatalf("expected ErrAmbiguousID, got %v", err)
	}
	if _, err := store.Get(ctx, "zzzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "%"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected wildcard to be matched literally, got %v", err)
	}
}

func TestListOrdersNewestFirstAndLimits(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, source := range []string{"one", "two", "three"} {
		run := sampleRun(source)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Record(ctx, run, nil); err != nil {
			t.Fatalf("Record %s: %v", source, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Source != "three" || runs[1].Source != "two" {
		t.Fatalf("unexpected order: %q, %q", runs[0].Source, runs[1].Source)
	}
}

func TestFindTranscriptsReturnsLatestBatch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	source := "https://www.youtube.com/playlist?list=PL1"
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := sampleRun(source)
	old.BatchID = "batch-old"
	old.CreatedAt = base
	if _, err := store.Record(ctx, old, []subtitles.Segment{{Start: 0, End: 1, Text: "old"}}); err != nil {
		t.Fatalf("Record old: %v", err)
	}

	for i, text := range []string{"first", "second"} {
		run := sampleRun(source)
		run.BatchID = "batch-new"
		run.MediaID = text
		run.CreatedAt = base.Add(time.Hour + time.Duration(i)*time.Second)
		if _, err := store.Record(ctx, run, []subtitles.Segment{{Start: 0, End: 1, Text: text}}); err != nil {
			t.Fatalf("Record %s: %v", text, err)
		}
	}

	failed := sampleRun(source)
	failed.BatchID = "batch-failed"
	failed.Status = history.StatusFailed
	failed.CreatedAt = base.Add(2 * time.Hour)
	if _, err := store.Record(ctx, failed, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	transcripts, err := store.FindTranscripts(ctx, sampleRun(source).Key())
	if err != nil {
		t.Fatalf("FindTranscripts: %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("expected 2 transcripts from latest batch, got %d", len(transcripts))
	}
	for i, want := range []string{"first", "second"} {
		if transcripts[i].Run.MediaID != want {
			t.Fatalf("transcript %d media id = %q, want %q", i, transcripts[i].Run.MediaID, want)
		}
		if len(transcripts[i].Segments) != 1 || transcripts[i].Segments[0].Text != want {
			t.Fatalf("transcript %d segments = %+v", i, transcripts[i].Segments)
		}
	}
}

func TestFindTranscriptsSkipsIncompleteBatch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	source := "https://www.youtube.com/playlist?list=PL2"
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	done := sampleRun(source)
	done.BatchID = "batch-partial"
	done.MediaID = "one"
	done.CreatedAt = base
	if _, err := store.Record(ctx, done, sampleSegments()); err != nil {
		t.Fatalf("Record succeeded entry: %v", err)
	}
	broken := sampleRun(source)
	broken.BatchID = "batch-partial"
	broken.MediaID = "two"
	broken.Status = history.StatusFailed
	broken.ErrorKind = "external_tool"
	broken.CreatedAt = base.Add(time.Second)
	if _, err := store.Record(ctx, broken, nil); err != nil {
		t.Fatalf("Record failed entry: %v", err)
	}

	transcripts, err := store.FindTranscripts(ctx, sampleRun(source).Key())
	if err != nil {
		t.Fatalf("FindTranscripts: %v", err)
	}
	if len(transcripts) != 0 {
		t.Fatalf("expected incomplete batch to be skipped, got %d transcripts", len(transcripts))
	}
}

func TestFindTranscriptsMatchesWholeKey(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Record(ctx, sampleRun("clip.mp4"), sampleSegments()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*history.TranscriptKey)
		want   int
	}{
		{name: "exact", mutate: func(*history.TranscriptKey) {}, want: 1},
		{name: "case insensitive backend", mutate: func(k *history.TranscriptKey) { k.Backend = "WhisperX" }, want: 1},
		{name: "other model", mutate: func(k *history.TranscriptKey) { k.Model = "large-v3" }, want: 0},
		{name: "other task", mutate: func(k *history.TranscriptKey) { k.Task = "translate" }, want: 0},
		{name: "other language", mutate: func(k *history.TranscriptKey) { k.Language = "" }, want: 0},
		{name: "other source", mutate: func(k *history.TranscriptKey) { k.Source = "other.mp4" }, want: 0},
		{name: "empty source", mutate: func(k *history.TranscriptKey) { k.Source = "" }, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := sampleRun("clip.mp4").Key()
			tt.mutate(&key)
			got, err := store.FindTranscripts(ctx, key)
			if err != nil {
				t.Fatalf("FindTranscripts: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d transcripts, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeleteClearAndPrune(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	oldRun := sampleRun("old")
	oldRun.CreatedAt = now.AddDate(0, 0, -40)
	oldRun, err := store.Record(ctx, oldRun, sampleSegments())
	if err != nil {
		t.Fatalf("Record old: %v", err)
	}
	recent := sampleRun("recent")
	recent.CreatedAt = now
	recent, err = store.Record(ctx, recent, sampleSegments())
	if err != nil {
		t.Fatalf("Record recent: %v", err)
	}

	pruned, err := store.Prune(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("Prune removed %d runs, want 1", pruned)
	}
	if segs, _ := store.Segments(ctx, oldRun.ID); len(segs) != 0 {
		t.Fatalf("expected pruned segments to be removed, got %d", len(segs))
	}

	removed, err := store.Delete(ctx, recent.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected Delete to report removal")
	}
	if removed, _ := store.Delete(ctx, recent.ID); removed {
		t.Fatal("expected second Delete to report nothing removed")
	}

	if _, err := store.Record(ctx, sampleRun("again"), nil); err != nil {
		t.Fatalf("Record again: %v", err)
	}
	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("Clear removed %d runs, want 1", cleared)
	}
}
