// Package preflight provides readiness checks for the external binaries,
// directories, and hosted APIs ytwhisper depends on.
//
// These checks run in two contexts:
//   - The transcribe command calls CheckSystemDeps before downloading anything
//     so a missing yt-dlp or uvx fails fast.
//   - The "ytwhisper status" command renders RunAll and CheckSystemDeps as a table.
//
// Each check is gated by the configured backend. OpenAI is only probed when
// it is the selected transcription backend.
package preflight
