// Package services defines shared utilities consumed by the transcription
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and source identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     from yt-dlp, ffmpeg, WhisperX, and the Whisper API consistently.
//
// Use these helpers when wiring new collaborators so error handling and
// observability stay uniform across the pipeline.
package services
