package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ytwhisper/internal/config"
	"ytwhisper/internal/deps"
	"ytwhisper/internal/history"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/media"
	"ytwhisper/internal/pipeline"
	"ytwhisper/internal/preflight"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
	"ytwhisper/internal/transcribe"
)

type transcribeFlags struct {
	model      string
	format     string
	outputDir  string
	verbose    bool
	task       string
	language   string
	breakLines int
	backend    string
	jobs       int
	noCache    bool
	keepAudio  bool
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	flags := &transcribeFlags{}

	cmd := &cobra.Command{
		Use:   "transcribe <video>...",
		Short: "Transcribe videos or audio files into subtitles",
		Long: "Download each URL with yt-dlp (or read each local file), transcribe the audio, " +
			"and write a subtitle file named after the video title into the output directory.",
		Example: "  ytwhisper transcribe https://www.youtube.com/watch?v=dQw4w9WgXcQ\n" +
			"  ytwhisper transcribe --format vtt --break-lines 42 -o subs talk.mp4",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			if err := requireBinaries(cfg, args); err != nil {
				return err
			}

			transcriber, err := transcribe.New(cfg, logger)
			if err != nil {
				return err
			}
			opts, err := pipeline.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}

			store := openHistoryBestEffort(cfg, logger)
			if store != nil {
				defer store.Close()
			}

			var historyStore pipeline.HistoryStore
			if store != nil {
				historyStore = store
			}
			runner := pipeline.NewRunner(opts, media.NewResolver(cfg, logger), transcriber, historyStore, logger)
			runner.SetOutput(cmd.OutOrStdout())

			results, runErr := runner.Run(cmd.Context(), args)
			if runErr != nil {
				failed := 0
				for _, res := range results {
					if res.Err != nil {
						failed++
					}
				}
				if failed == 0 {
					return runErr
				}
				return fmt.Errorf("%d of %d items failed: %w", failed, len(results), runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.model, "model", "", "Whisper model to use (e.g. tiny, small, medium, large-v3, small.en)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Subtitle format: vtt, srt, or txt")
	cmd.Flags().StringVarP(&flags.outputDir, "output_dir", "o", "", "Directory to save the subtitle files in")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Print debug messages and backend progress")
	cmd.Flags().StringVar(&flags.task, "task", "", "transcribe (source language) or translate (to English)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Spoken language as a code or English name; empty or auto detects it")
	cmd.Flags().IntVar(&flags.breakLines, "break-lines", 0, "Wrap cue text into lines of at most N characters (0 disables)")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Transcription backend: whisperx or openai")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "Number of sources to process in parallel")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Always transcribe, even when history has a matching transcript")
	cmd.Flags().BoolVar(&flags.keepAudio, "keep-audio", false, "Keep the extracted audio files")
	return cmd
}

// apply copies explicitly set flags over the config and revalidates it.
func (f *transcribeFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("backend") {
		cfg.Transcription.Backend = strings.ToLower(strings.TrimSpace(f.backend))
	}
	if changed("model") {
		if cfg.Transcription.Backend == config.BackendOpenAI {
			cfg.OpenAI.Model = strings.TrimSpace(f.model)
		} else {
			cfg.Transcription.Model = strings.TrimSpace(f.model)
		}
	}
	if changed("format") {
		format, err := subtitles.ParseFormat(f.format)
		if err != nil {
			return err
		}
		cfg.Subtitles.Format = string(format)
	}
	if changed("output_dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(f.outputDir))
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		cfg.Paths.OutputDir = dir
	}
	if changed("verbose") {
		cfg.Transcription.Verbose = f.verbose
	}
	if changed("task") {
		cfg.Transcription.Task = strings.ToLower(strings.TrimSpace(f.task))
	}
	if changed("language") {
		cfg.Transcription.Language = strings.TrimSpace(f.language)
	}
	if changed("break-lines") {
		cfg.Subtitles.BreakLines = f.breakLines
	}
	if changed("jobs") {
		cfg.Workflow.MaxParallelJobs = f.jobs
	}
	if changed("no-cache") && f.noCache {
		cfg.History.ReuseTranscripts = false
	}
	if changed("keep-audio") {
		cfg.Media.KeepAudio = f.keepAudio
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return cfg.EnsureDirectories()
}

// requireBinaries fails fast when a tool needed for these sources is missing.
// yt-dlp is only needed when at least one source is a URL.
func requireBinaries(cfg *config.Config, sources []string) error {
	needsDownload := false
	for _, source := range sources {
		if media.IsURL(source) {
			needsDownload = true
			break
		}
	}
	var missing []string
	for _, status := range deps.Missing(preflight.CheckSystemDeps(cfg)) {
		if status.Name == "yt-dlp" && !needsDownload {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "transcribe", "dependencies",
		"missing required tools: "+strings.Join(missing, ", ")+"; run 'ytwhisper status' for details", nil)
}

func openHistoryBestEffort(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String("path", cfg.Paths.HistoryDB),
			logging.String(logging.FieldImpact, "runs are not recorded and transcripts are not reused"),
			logging.String(logging.FieldErrorHint, "check paths.history_db or delete a corrupt database"),
		)
		return nil
	}
	return store
}
