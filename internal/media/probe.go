package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ytwhisper/internal/language"
)

// Probe represents the parsed output from an ffprobe inspection.
type Probe struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename string            `json:"filename"`
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func (r *Resolver) Inspect(ctx context.Context, path string) (Probe, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Probe{}, errors.New("ffprobe inspect: empty path")
	}
	binary := strings.TrimSpace(r.cfg.FFprobeBinary)
	if binary == "" {
		binary = "ffprobe"
	}
	output, err := r.run(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var probe Probe
	if err := json.Unmarshal(output, &probe); err != nil {
		return Probe{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return probe, nil
}

// AudioStreams returns the audio streams in container order.
func (p Probe) AudioStreams() []Stream {
	var audio []Stream
	for _, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			audio = append(audio, stream)
		}
	}
	return audio
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (p Probe) DurationSeconds() float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}

// Title returns the container title tag, if any.
func (p Probe) Title() string {
	return strings.TrimSpace(tagValue(p.Format.Tags, "title"))
}

// SelectAudioStream returns the position among audio streams (for ffmpeg's
// 0:a:N mapping) of the stream to transcribe. A stream tagged with the hinted
// language wins, then the default-disposition stream, then the first one.
// Returns -1 when there is no audio.
func (p Probe) SelectAudioStream(languageHint string) int {
	streams := p.AudioStreams()
	if len(streams) == 0 {
		return -1
	}
	if want := language.ToISO2(languageHint); want != "" {
		for i, stream := range streams {
			if language.ToISO2(tagValue(stream.Tags, "language")) == want {
				return i
			}
		}
	}
	for i, stream := range streams {
		if stream.Disposition["default"] == 1 {
			return i
		}
	}
	return 0
}

func tagValue(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
