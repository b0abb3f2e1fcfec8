package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
)

// ytdlpPrintTemplate emits one JSON object per item after post-processing has
// moved the final audio file into place.
const ytdlpPrintTemplate = "after_move:%(.{id,title,duration,filepath})j"

type ytdlpItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Filepath string  `json:"filepath"`
}

func (r *Resolver) download(ctx context.Context, source string) ([]*Audio, error) {
	scratch, err := r.newScratchDir()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "media", "download", "prepare scratch directory", err)
	}

	args := r.buildYTDLPArgs(scratch.path, source)
	r.logger.Debug("yt-dlp download starting",
		logging.String("command", r.cfg.YTDLPBinary),
		logging.String("args", strings.Join(args, " ")),
	)
	output, err := r.run(ctx, r.cfg.YTDLPBinary, args...)
	if err != nil {
		_ = removeAll(scratch.path)
		return nil, services.Wrap(services.ErrExternalTool, "media", "yt-dlp", "download audio", err)
	}

	items, err := parseYTDLPOutput(output)
	if err != nil {
		_ = removeAll(scratch.path)
		return nil, services.Wrap(services.ErrExternalTool, "media", "yt-dlp", "parse output", err)
	}
	if len(items) == 0 {
		_ = removeAll(scratch.path)
		return nil, services.Wrap(services.ErrExternalTool, "media", "yt-dlp", "no audio produced", nil)
	}

	audios := make([]*Audio, 0, len(items))
	for _, item := range items {
		path := item.Filepath
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(scratch.path, path)
		}
		audio := &Audio{
			Source:   source,
			ID:       item.ID,
			Title:    strings.TrimSpace(item.Title),
			Path:     path,
			Duration: item.Duration,
			scratch:  scratch,
		}
		audios = append(audios, r.finalize(audio))
	}
	scratch.refs.Store(int32(len(audios)))
	r.logger.Info("audio downloaded",
		logging.Int("items", len(audios)),
		logging.String(logging.FieldEventType, "audio_downloaded"),
	)
	return audios, nil
}

func (r *Resolver) buildYTDLPArgs(scratch, source string) []string {
	args := []string{
		"--no-progress",
		"--no-warnings",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", r.cfg.AudioFormat,
		"--audio-quality", r.cfg.AudioQuality,
		"--output", filepath.Join(scratch, "%(id)s.%(ext)s"),
		"--print", ytdlpPrintTemplate,
	}
	if strings.ContainsRune(r.cfg.FFmpegBinary, filepath.Separator) {
		args = append(args, "--ffmpeg-location", r.cfg.FFmpegBinary)
	}
	return append(args, "--", source)
}

func parseYTDLPOutput(output []byte) ([]ytdlpItem, error) {
	var items []ytdlpItem
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var item ytdlpItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, err
		}
		if item.Filepath == "" {
			continue
		}
		items = append(items, item)
	}
	return items, scanner.Err()
}
