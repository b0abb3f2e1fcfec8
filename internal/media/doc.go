// Package media turns user-supplied sources into local audio files ready for
// transcription.
//
// URLs are handed to yt-dlp, which downloads the best audio stream and
// transcodes it through ffmpeg into the configured format. Local files are
// probed with ffprobe to pick an audio stream and read an embedded title, then
// extracted with ffmpeg. Every resolved Audio owns a scratch directory that
// Cleanup removes unless media.keep_audio is set.
//
// External commands run through a CommandRunner so tests can substitute fakes.
package media
