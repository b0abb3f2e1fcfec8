// Package main hosts the ytwhisper CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, applies per-command
// flag overrides, and hands work to the internal packages: transcribe runs
// the pipeline, rerender and history read the run database, status reports
// external tools and directory access, and config scaffolds or validates the
// configuration file.
package main
