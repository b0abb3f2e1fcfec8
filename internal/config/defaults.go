package config

const (
	defaultConfigPath       = "~/.config/ytwhisper/config.toml"
	defaultOutputDir        = "."
	defaultLogDir           = "~/.local/share/ytwhisper/logs"
	defaultHistoryDB        = "~/.local/share/ytwhisper/history.db"
	defaultBackend          = BackendWhisperX
	defaultModel            = "small"
	defaultTask             = TaskTranscribe
	defaultVADMethod        = "silero"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "whisper-1"
	defaultOpenAITimeout    = 600
	defaultSubtitleFormat   = "srt"
	defaultYTDLPBinary      = "yt-dlp"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultAudioFormat      = "mp3"
	defaultAudioQuality     = "192K"
	defaultMaxParallelJobs  = 1
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
	defaultMaxParallelLimit = 16
)

// Transcription backends.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

// Transcription tasks.
const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Transcription: Transcription{
			Backend:              defaultBackend,
			Model:                defaultModel,
			Task:                 defaultTask,
			SuppressWarnings:     true,
			FilterHallucinations: true,
			WhisperXVADMethod:    defaultVADMethod,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			TimeoutSeconds: defaultOpenAITimeout,
		},
		Subtitles: Subtitles{
			Format: defaultSubtitleFormat,
		},
		Media: Media{
			YTDLPBinary:   defaultYTDLPBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			AudioFormat:   defaultAudioFormat,
			AudioQuality:  defaultAudioQuality,
		},
		History: History{
			Enabled:          true,
			ReuseTranscripts: true,
		},
		Workflow: Workflow{
			MaxParallelJobs: defaultMaxParallelJobs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
