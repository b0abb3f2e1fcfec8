package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ytwhisper/internal/config"
	"ytwhisper/internal/language"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
)

// MaxUploadBytes is the Whisper API request size limit.
const MaxUploadBytes = 25 << 20

// OpenAI transcribes through the hosted Whisper API.
type OpenAI struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI transcriber.
func NewOpenAI(cfg config.OpenAI, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "new", "api key missing (set OPENAI_API_KEY)", nil)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logging.NewComponentLogger(logger, "openai"),
	}, nil
}

// Backend implements Transcriber.
func (o *OpenAI) Backend() string { return config.BackendOpenAI }

// Transcribe implements Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitles.Segment, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "openai", "transcribe", "stat audio", err)
	}
	if info.Size() > MaxUploadBytes {
		return nil, services.Wrap(services.ErrValidation, "openai", "transcribe",
			fmt.Sprintf("audio is %d bytes, over the %d byte upload limit; lower media.audio_quality", info.Size(), MaxUploadBytes), nil)
	}

	req := openai.AudioRequest{
		Model:                  opts.Model,
		FilePath:               audioPath,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularitySegment},
	}

	o.logger.Info("openai transcription starting",
		logging.String("model", opts.Model),
		logging.String("task", opts.Task),
		logging.String("language", language.DisplayName(opts.Language)),
		logging.String(logging.FieldEventType, "transcription_started"),
	)

	var resp openai.AudioResponse
	if opts.Task == config.TaskTranslate {
		resp, err = o.client.CreateTranslation(ctx, req)
	} else {
		req.Language = opts.Language
		resp, err = o.client.CreateTranscription(ctx, req)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "openai", opts.Task, "", err)
	}

	segments := toSegments(len(resp.Segments), func(i int) (float64, float64, string) {
		seg := resp.Segments[i]
		return seg.Start, seg.End, seg.Text
	})
	if text := strings.TrimSpace(resp.Text); len(segments) == 0 && text != "" {
		// Some compatible servers omit segments; fall back to a single cue.
		segments = []subtitles.Segment{{Start: 0, End: resp.Duration, Text: text}}
	}
	o.logger.Debug("openai transcription finished",
		logging.Int("segments", len(segments)),
		logging.String("detected_language", resp.Language),
	)
	return segments, nil
}
