package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX, BackendOpenAI:
	default:
		return fmt.Errorf("transcription.backend must be %q or %q, got %q", BackendWhisperX, BackendOpenAI, c.Transcription.Backend)
	}
	switch c.Transcription.Task {
	case TaskTranscribe, TaskTranslate:
	default:
		return fmt.Errorf("transcription.task must be %q or %q, got %q", TaskTranscribe, TaskTranslate, c.Transcription.Task)
	}
	switch c.Transcription.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.whisperx_vad_method must be silero or pyannote, got %q", c.Transcription.WhisperXVADMethod)
	}
	if c.Transcription.WhisperXVADMethod == "pyannote" && c.Transcription.WhisperXHuggingFace == "" {
		return errors.New("transcription.whisperx_hf_token is required when whisperx_vad_method is pyannote. Set HF_TOKEN or edit the config")
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.Transcription.Backend != BackendOpenAI {
		return nil
	}
	if c.OpenAI.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("openai.api_key is required for the openai backend. Set OPENAI_API_KEY env var or edit %s (create with 'ytwhisper config init')", defaultPath)
	}
	if !strings.HasPrefix(c.OpenAI.BaseURL, "http://") && !strings.HasPrefix(c.OpenAI.BaseURL, "https://") {
		return fmt.Errorf("openai.base_url must be an http(s) URL, got %q", c.OpenAI.BaseURL)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	switch c.Subtitles.Format {
	case "vtt", "srt", "txt":
	default:
		return fmt.Errorf("subtitles.format must be one of vtt, srt, txt; got %q", c.Subtitles.Format)
	}
	if c.Subtitles.BreakLines < 0 {
		return errors.New("subtitles.break_lines must be zero or positive")
	}
	return nil
}

func (c *Config) validateMedia() error {
	switch c.Media.AudioFormat {
	case "mp3", "m4a", "wav", "flac":
	default:
		return fmt.Errorf("media.audio_format must be mp3, m4a, wav, or flac; got %q", c.Media.AudioFormat)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxParallelJobs < 1 || c.Workflow.MaxParallelJobs > defaultMaxParallelLimit {
		return fmt.Errorf("workflow.max_parallel_jobs must be between 1 and %d", defaultMaxParallelLimit)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
