package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
)

func (r *Resolver) extractLocal(ctx context.Context, source string) (*Audio, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "media", "resolve", fmt.Sprintf("%s does not exist", source), nil)
		}
		return nil, services.Wrap(services.ErrValidation, "media", "resolve", "stat source", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "media", "resolve", fmt.Sprintf("%s is a directory", source), nil)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	audio := &Audio{Source: source, ID: stem, Title: stem}

	streamIndex := 0
	probe, err := r.Inspect(ctx, source)
	if err != nil {
		logging.WarnWithContext(r.logger, "ffprobe failed; using first audio stream", "probe_failed",
			logging.String("path", source),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffprobe or set media.ffprobe_binary"),
			logging.String(logging.FieldImpact, "file name used as title"),
		)
	} else {
		streamIndex = probe.SelectAudioStream(r.language)
		if streamIndex < 0 {
			return nil, services.Wrap(services.ErrValidation, "media", "resolve", fmt.Sprintf("%s has no audio stream", source), nil)
		}
		if title := probe.Title(); title != "" {
			audio.Title = title
		}
		audio.Duration = probe.DurationSeconds()
	}

	scratch, err := r.newScratchDir()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "media", "extract", "prepare scratch directory", err)
	}
	dest := filepath.Join(scratch.path, stem+"."+r.cfg.AudioFormat)
	args := buildFFmpegArgs(source, streamIndex, dest, r.cfg.AudioFormat, r.cfg.AudioQuality)
	if _, err := r.run(ctx, r.cfg.FFmpegBinary, args...); err != nil {
		_ = removeAll(scratch.path)
		return nil, services.Wrap(services.ErrExternalTool, "media", "ffmpeg", "extract audio", err)
	}
	scratch.refs.Store(1)
	audio.Path = dest
	audio.scratch = scratch

	r.logger.Info("audio extracted",
		logging.String("path", dest),
		logging.Int("stream", streamIndex),
		logging.String(logging.FieldEventType, "audio_extracted"),
	)
	return r.finalize(audio), nil
}

// buildFFmpegArgs extracts one audio stream as mono 16kHz audio, the input
// rate Whisper models resample to anyway.
func buildFFmpegArgs(source string, streamIndex int, dest, format, quality string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:a:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
	}
	switch format {
	case "wav":
		args = append(args, "-c:a", "pcm_s16le")
	case "flac":
		args = append(args, "-c:a", "flac")
	case "m4a":
		args = append(args, "-c:a", "aac", "-b:a", quality)
	default:
		args = append(args, "-c:a", "libmp3lame", "-b:a", quality)
	}
	return append(args, dest)
}
