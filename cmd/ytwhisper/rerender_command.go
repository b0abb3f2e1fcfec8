package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ytwhisper/internal/config"
	"ytwhisper/internal/pipeline"
	"ytwhisper/internal/subtitles"
)

func newRerenderCommand(ctx *commandContext) *cobra.Command {
	var (
		formatFlag string
		breakLines int
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "rerender <run-id>",
		Short: "Render a stored transcript again in another format or line width",
		Long: "Load the segments recorded for a previous run and write them out again without " +
			"downloading or transcribing. The run ID may be shortened to any unique prefix.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !run.Succeeded() {
				return fmt.Errorf("run %s failed and has no transcript to render", run.ID)
			}
			segments, err := store.Segments(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			formatName := run.Format
			if cmd.Flags().Changed("format") || formatName == "" {
				formatName = formatFlag
				if !cmd.Flags().Changed("format") {
					formatName = cfg.Subtitles.Format
				}
			}
			format, err := subtitles.ParseFormat(formatName)
			if err != nil {
				return err
			}

			opts := subtitles.RenderOptions{
				MaxLineLength: cfg.Subtitles.BreakLines,
				ClampInverted: cfg.Subtitles.ClampInvertedSegments,
			}
			if cmd.Flags().Changed("break-lines") {
				if breakLines < 0 {
					return errors.New("--break-lines must be >= 0")
				}
				opts.MaxLineLength = breakLines
			}

			dir := rerenderDir(run.OutputPath, cfg.Paths.OutputDir)
			if cmd.Flags().Changed("output_dir") {
				if dir, err = config.ExpandPath(strings.TrimSpace(outputDir)); err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
			}

			path, err := filepath.Abs(pipeline.OutputPath(dir, run.Title, run.MediaID, format))
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			if err := pipeline.WriteSubtitles(cmd.Context(), path, segments, format, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", format.Label(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "Subtitle format: vtt, srt, or txt (defaults to the run's format)")
	cmd.Flags().IntVar(&breakLines, "break-lines", 0, "Wrap cue text into lines of at most N characters (0 disables)")
	cmd.Flags().StringVarP(&outputDir, "output_dir", "o", "", "Directory to save the subtitle file in (defaults to the original location)")
	return cmd
}

// rerenderDir writes next to the original output when the run recorded one.
func rerenderDir(previousOutput, fallback string) string {
	if strings.TrimSpace(previousOutput) != "" {
		return filepath.Dir(previousOutput)
	}
	return fallback
}
