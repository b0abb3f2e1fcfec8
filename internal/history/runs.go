package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
)

// ErrAmbiguousID is returned when a run ID prefix matches more than one run.
var ErrAmbiguousID = errors.New("ambiguous run id")

const runColumns = `id, batch_id, source, media_id, title, backend, model, task, language, format,
	output_path, segment_count, duration_seconds, status, error_kind, error_message, created_at`

// Record stores a run and its segments in a single transaction. Missing IDs,
// batch IDs, and timestamps are filled in; the stored run is returned.
func (s *Store) Record(ctx context.Context, run Run, segments []subtitles.Segment) (Run, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if strings.TrimSpace(run.BatchID) == "" {
		run.BatchID = run.ID
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = StatusSucceeded
	}
	key := run.Key().normalized()
	run.Source, run.Backend, run.Model, run.Task, run.Language = key.Source, key.Backend, key.Model, key.Task, key.Language
	if run.Status == StatusSucceeded {
		run.SegmentCount = len(segments)
	}

	err := retryOnBusy(ctx, func() error {
		return s.recordTx(ctx, run, segments)
	})
	if err != nil {
		return Run{}, fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run, nil
}

func (s *Store) recordTx(ctx context.Context, run Run, segments []subtitles.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.BatchID,
		run.Source,
		nullableString(run.MediaID),
		nullableString(run.Title),
		run.Backend,
		run.Model,
		run.Task,
		run.Language,
		run.Format,
		nullableString(run.OutputPath),
		run.SegmentCount,
		run.DurationSeconds,
		string(run.Status),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if run.Status == StatusSucceeded && len(segments) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO segments (run_id, position, start_seconds, end_seconds, text) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare segment insert: %w", err)
		}
		defer stmt.Close()
		for i, seg := range segments {
			if _, err := stmt.ExecContext(ctx, run.ID, i, seg.Start, seg.End, seg.Text); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}
	}
	return tx.Commit()
}

// List returns the most recent runs first. A non-positive limit returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Get returns the run whose ID equals id or, failing that, the single run
// whose ID starts with id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, services.Wrap(services.ErrValidation, "history", "get", "run id is empty", nil)
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, err
	}
	switch len(runs) {
	case 0:
		return Run{}, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("no run matches %q", id), nil)
	case 1:
		return runs[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %q", ErrAmbiguousID, id)
	}
}

// Segments returns the stored segments of a run in their original order.
func (s *Store) Segments(ctx context.Context, runID string) ([]subtitles.Segment, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_seconds, end_seconds, text FROM segments WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load segments for %s: %w", runID, err)
	}
	defer rows.Close()

	var segments []subtitles.Segment
	for rows.Next() {
		var seg subtitles.Segment
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// FindTranscripts returns the successful runs of the most recent batch that
// transcribed key, in recording order. A playlist source yields one transcript
// per entry. A batch where any run for key failed is incomplete and yields
// nothing, so the whole source is processed again. An empty result means
// nothing can be reused.
func (s *Store) FindTranscripts(ctx context.Context, key TranscriptKey) ([]Transcript, error) {
	ctx = ensureContext(ctx)
	key = key.normalized()
	if key.Source == "" {
		return nil, nil
	}

	var batchID string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM runs
		WHERE source = ? AND backend = ? AND model = ? AND task = ? AND language = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		key.Source, key.Backend, key.Model, key.Task, key.Language, string(StatusSucceeded),
	).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transcript batch: %w", err)
	}

	var failed int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs
		WHERE batch_id = ? AND source = ? AND backend = ? AND model = ? AND task = ? AND language = ? AND status = ?`,
		batchID, key.Source, key.Backend, key.Model, key.Task, key.Language, string(StatusFailed),
	).Scan(&failed); err != nil {
		return nil, fmt.Errorf("check transcript batch: %w", err)
	}
	if failed > 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs
		WHERE batch_id = ? AND source = ? AND backend = ? AND model = ? AND task = ? AND language = ? AND status = ?
		ORDER BY created_at, rowid`,
		batchID, key.Source, key.Backend, key.Model, key.Task, key.Language, string(StatusSucceeded))
	if err != nil {
		return nil, fmt.Errorf("find transcripts: %w", err)
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	transcripts := make([]Transcript, 0, len(runs))
	for _, run := range runs {
		segments, err := s.Segments(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, Transcript{Run: run, Segments: segments})
	}
	return transcripts, nil
}

// Delete removes a run and its segments. It reports whether a run was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx, `DELETE FROM segments WHERE run_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete segments for %s: %w", id, err)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete run %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete run %s rows affected: %w", id, err)
	}
	return affected > 0, nil
}

// Clear removes every run and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx, `DELETE FROM segments`); err != nil {
		return 0, fmt.Errorf("clear segments: %w", err)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes runs recorded before cutoff and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`DELETE FROM segments WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, stamp); err != nil {
		return 0, fmt.Errorf("prune segments: %w", err)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE created_at < ?`, stamp)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
