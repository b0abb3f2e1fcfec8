// Package transcribe runs speech-to-text over an audio file and returns timed
// subtitle segments.
//
// Two backends implement Transcriber: WhisperX, executed locally through uvx,
// and the hosted OpenAI Whisper API. Both honour the same Options (model,
// task, language hint) and return subtitles.Segment values ready for the
// renderer. English-only models (names ending in ".en") force the language to
// English via ApplyModelLanguage.
package transcribe
