package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ytwhisper/internal/config"
	"ytwhisper/internal/deps"
	"ytwhisper/internal/language"
	"ytwhisper/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and backend settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			lines = append(lines, configStatusLines(cfg, colorize)...)
			lines = append(lines, "")

			statuses := preflight.CheckSystemDeps(cfg)
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, status := range statuses {
				lines = append(lines, dependencyStatusLine(status, colorize))
			}
			lines = append(lines, "")

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))

			missing := deps.Missing(statuses)
			failed := 0
			for _, result := range results {
				if !result.Passed {
					failed++
				}
			}
			if len(missing) > 0 || failed > 0 {
				return fmt.Errorf("%d missing dependencies, %d failed checks", len(missing), failed)
			}
			return nil
		},
	}
}

func configStatusLines(cfg *config.Config, colorize bool) []string {
	model := cfg.Transcription.Model
	if cfg.Transcription.Backend == config.BackendOpenAI {
		model = cfg.OpenAI.Model
	}
	breakLines := "off"
	if cfg.Subtitles.BreakLines > 0 {
		breakLines = strconv.Itoa(cfg.Subtitles.BreakLines) + " chars"
	}
	historyState := "disabled"
	if cfg.History.Enabled {
		historyState = cfg.Paths.HistoryDB
		if !cfg.History.ReuseTranscripts {
			historyState += " (no reuse)"
		}
	}
	return []string{
		renderStatusLine("Backend", statusInfo, cfg.Transcription.Backend, colorize),
		renderStatusLine("Model", statusInfo, model, colorize),
		renderStatusLine("Task", statusInfo, cfg.Transcription.Task, colorize),
		renderStatusLine("Language", statusInfo, language.DisplayName(cfg.Transcription.Language), colorize),
		renderStatusLine("Format", statusInfo, strings.ToUpper(cfg.Subtitles.Format), colorize),
		renderStatusLine("Line breaks", statusInfo, breakLines, colorize),
		renderStatusLine("Output directory", statusInfo, cfg.Paths.OutputDir, colorize),
		renderStatusLine("History", statusInfo, historyState, colorize),
		renderStatusLine("Parallel jobs", statusInfo, strconv.Itoa(cfg.Workflow.MaxParallelJobs), colorize),
		renderStatusLine("Keep audio", statusInfo, yesNo(cfg.Media.KeepAudio), colorize),
	}
}

func dependencyStatusLine(status deps.Status, colorize bool) string {
	if status.Available {
		return renderStatusLine(status.Name, statusOK, status.Command, colorize)
	}
	kind := statusError
	if status.Optional {
		kind = statusWarn
	}
	detail := status.Detail
	if status.Description != "" {
		detail = fmt.Sprintf("%s (%s)", detail, status.Description)
	}
	return renderStatusLine(status.Name, kind, detail, colorize)
}
