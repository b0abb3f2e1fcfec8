package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ytwhisper/internal/config"
	"ytwhisper/internal/language"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
)

// Options controls a single transcription.
type Options struct {
	Model    string
	Task     string
	Language string
	Verbose  bool
	// SuppressWarnings silences Python warnings emitted by local backends.
	SuppressWarnings bool
}

// Transcriber converts an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitles.Segment, error)
	// Backend names the implementation for logs and run history.
	Backend() string
}

// OptionsFromConfig derives default options for the configured backend.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Model:            cfg.Transcription.Model,
		Task:             cfg.Transcription.Task,
		Language:         cfg.Transcription.Language,
		Verbose:          cfg.Transcription.Verbose,
		SuppressWarnings: cfg.Transcription.SuppressWarnings,
	}
	if cfg.Transcription.Backend == config.BackendOpenAI {
		opts.Model = cfg.OpenAI.Model
	}
	return opts
}

// Normalize validates the task and canonicalizes the language hint.
func (o Options) Normalize() (Options, error) {
	o.Model = strings.TrimSpace(o.Model)
	if o.Model == "" {
		return o, services.Wrap(services.ErrValidation, "transcribe", "options", "model is required", nil)
	}
	o.Task = strings.ToLower(strings.TrimSpace(o.Task))
	if o.Task == "" {
		o.Task = config.TaskTranscribe
	}
	if o.Task != config.TaskTranscribe && o.Task != config.TaskTranslate {
		return o, services.Wrap(services.ErrValidation, "transcribe", "options", fmt.Sprintf("unsupported task %q", o.Task), nil)
	}
	lang, err := language.Normalize(o.Language)
	if err != nil {
		return o, services.Wrap(services.ErrValidation, "transcribe", "options", "language", err)
	}
	o.Language = lang
	return o, nil
}

// EnglishOnlyModel reports whether model is an English-only Whisper variant.
func EnglishOnlyModel(model string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(model)), ".en")
}

// ApplyModelLanguage forces English for English-only models. A conflicting
// language hint is overridden with a warning.
func ApplyModelLanguage(opts Options, logger *slog.Logger) Options {
	if !EnglishOnlyModel(opts.Model) {
		return opts
	}
	if opts.Language != "" && !language.IsEnglish(opts.Language) {
		logging.WarnWithContext(logger, "English-only model; forcing English detection", "language_forced",
			logging.String("model", opts.Model),
			logging.String("requested_language", opts.Language),
			logging.String(logging.FieldImpact, "requested language ignored"),
			logging.String(logging.FieldErrorHint, "use a multilingual model such as small or medium"),
		)
	}
	opts.Language = "en"
	return opts
}

// New constructs the transcriber selected by transcription.backend.
func New(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	switch cfg.Transcription.Backend {
	case config.BackendWhisperX:
		return NewWhisperX(cfg, logger), nil
	case config.BackendOpenAI:
		return NewOpenAI(cfg.OpenAI, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "new", fmt.Sprintf("unknown backend %q", cfg.Transcription.Backend), nil)
	}
}

func toSegments(count int, at func(int) (float64, float64, string)) []subtitles.Segment {
	segments := make([]subtitles.Segment, 0, count)
	for i := range count {
		start, end, text := at(i)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitles.Segment{Start: start, End: end, Text: text})
	}
	return segments
}
