package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Transcription selects the speech-to-text backend and its options.
type Transcription struct {
	Backend              string `toml:"backend"`
	Model                string `toml:"model"`
	Task                 string `toml:"task"`
	Language             string `toml:"language"`
	Verbose              bool   `toml:"verbose"`
	SuppressWarnings     bool   `toml:"suppress_warnings"`
	FilterHallucinations bool   `toml:"filter_hallucinations"`
	WhisperXCUDAEnabled  bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod    string `toml:"whisperx_vad_method"`
	WhisperXHuggingFace  string `toml:"whisperx_hf_token"`
}

// OpenAI contains settings for the hosted Whisper API backend.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Subtitles contains output formatting settings.
type Subtitles struct {
	Format                string `toml:"format"`
	BreakLines            int    `toml:"break_lines"`
	ClampInvertedSegments bool   `toml:"clamp_inverted_segments"`
}

// Media contains settings for audio acquisition.
type Media struct {
	YTDLPBinary   string `toml:"ytdlp_binary"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	AudioFormat   string `toml:"audio_format"`
	AudioQuality  string `toml:"audio_quality"`
	KeepAudio     bool   `toml:"keep_audio"`
}

// History contains settings for the run history database.
type History struct {
	Enabled          bool `toml:"enabled"`
	ReuseTranscripts bool `toml:"reuse_transcripts"`
}

// Workflow contains pipeline concurrency settings.
type Workflow struct {
	MaxParallelJobs int `toml:"max_parallel_jobs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for ytwhisper.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, log, and history locations
//   - Transcription: backend selection, model, task, and WhisperX tuning
//   - OpenAI: hosted Whisper API credentials
//   - Subtitles: output format and line breaking
//   - Media: yt-dlp and ffmpeg settings
//   - History: run history and transcript reuse
//   - Workflow: parallel job limit
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	OpenAI        OpenAI        `toml:"openai"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Media         Media         `toml:"media"`
	History       History       `toml:"history"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A .env next to the invocation supplies API keys; real env vars win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytwhisper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, work, and log directories, plus the
// history database directory when history is enabled.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.Paths.HistoryDB) != "" {
		dir := filepath.Dir(c.Paths.HistoryDB)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScratchRoot returns the directory intermediate audio files are written under.
func (c *Config) ScratchRoot() string {
	if strings.TrimSpace(c.Paths.WorkDir) != "" {
		return c.Paths.WorkDir
	}
	return os.TempDir()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
