package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run          Run
		mediaID      sql.NullString
		title        sql.NullString
		outputPath   sql.NullString
		statusStr    string
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   string
	)

	if err := scanner.Scan(
		&run.ID,
		&run.BatchID,
		&run.Source,
		&mediaID,
		&title,
		&run.Backend,
		&run.Model,
		&run.Task,
		&run.Language,
		&run.Format,
		&outputPath,
		&run.SegmentCount,
		&run.DurationSeconds,
		&statusStr,
		&errorKind,
		&errorMessage,
		&createdRaw,
	); err != nil {
		return Run{}, err
	}

	run.MediaID = mediaID.String
	run.Title = title.String
	run.OutputPath = outputPath.String
	run.Status = Status(statusStr)
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	if createdRaw != "" {
		ts, err := time.Parse(time.RFC3339Nano, createdRaw)
		if err != nil {
			return Run{}, fmt.Errorf("parse created_at %q: %w", createdRaw, err)
		}
		run.CreatedAt = ts
	}
	return run, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
