// Package pipeline turns sources into subtitle files.
//
// For every source the Runner resolves audio (downloading URLs with yt-dlp or
// extracting local files with ffmpeg), reuses a stored transcript when the
// history has one for the same backend, model, task, and language, otherwise
// transcribes, and then renders the requested format next to the other
// outputs. Each media item gets its own run ID carried in the context and
// recorded in the history database.
//
// Sources run in parallel up to the configured job limit. A failing source
// never stops the others; Run returns every per-item Result plus the joined
// failures.
package pipeline
