// Package subtitles turns transcription segments into subtitle documents.
//
// It owns the timestamp formatter (VTT and SRT styles), the bottom-heavy
// line-wrapping algorithm used to keep long cues readable, and the cue
// renderer that streams WebVTT, SubRip, or plain-text output to an io.Writer.
// Everything here is a pure transform: callers own file handles, naming, and
// the collaborators that produce segments.
//
// Rendering validates the whole segment sequence before the first byte is
// written, so a rejected request never leaves a partial document behind.
package subtitles
