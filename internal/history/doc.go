// Package history persists transcription runs and their segments in SQLite.
//
// Every processed media item becomes a Run row keyed by a UUID, with its
// segments stored alongside so subtitles can be re-rendered in another format
// or line width without transcribing again. FindTranscript looks up the most
// recent successful batch for a (source, backend, model, task, language) key,
// which the pipeline uses as a transcript cache.
//
// The store runs in WAL mode and retries briefly when SQLite reports the
// database as busy, so parallel pipeline jobs can record runs concurrently.
package history
