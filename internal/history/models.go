package history

import (
	"strings"
	"time"

	"ytwhisper/internal/subtitles"
)

// Status describes how a run finished.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one processed media item.
type Run struct {
	ID              string
	BatchID         string
	Source          string
	MediaID         string
	Title           string
	Backend         string
	Model           string
	Task            string
	Language        string
	Format          string
	OutputPath      string
	SegmentCount    int
	DurationSeconds float64
	Status          Status
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
}

// Key returns the transcript lookup key for the run.
func (r Run) Key() TranscriptKey {
	return TranscriptKey{
		Source:   r.Source,
		Backend:  r.Backend,
		Model:    r.Model,
		Task:     r.Task,
		Language: r.Language,
	}
}

// Succeeded reports whether the run produced a subtitle document.
func (r Run) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// TranscriptKey identifies transcripts that can be reused: the same source
// transcribed by the same backend and model with the same task and language.
type TranscriptKey struct {
	Source   string
	Backend  string
	Model    string
	Task     string
	Language string
}

func (k TranscriptKey) normalized() TranscriptKey {
	return TranscriptKey{
		Source:   strings.TrimSpace(k.Source),
		Backend:  strings.ToLower(strings.TrimSpace(k.Backend)),
		Model:    strings.TrimSpace(k.Model),
		Task:     strings.ToLower(strings.TrimSpace(k.Task)),
		Language: strings.ToLower(strings.TrimSpace(k.Language)),
	}
}

// Transcript pairs a stored run with its segments.
type Transcript struct {
	Run      Run
	Segments []subtitles.Segment
}
