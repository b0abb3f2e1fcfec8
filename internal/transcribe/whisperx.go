package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ytwhisper/internal/config"
	"ytwhisper/internal/language"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
	"ytwhisper/internal/subtitles"
)

// WhisperX invocation constants.
const (
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// EnvRunner executes a command with extra environment entries appended to the
// process environment.
type EnvRunner func(ctx context.Context, env []string, name string, args ...string) error

// WhisperX transcribes through the whisperx CLI launched with uvx.
type WhisperX struct {
	cfg      config.Transcription
	workRoot string
	logger   *slog.Logger
	run      EnvRunner
}

// NewWhisperX creates a WhisperX transcriber from application config.
func NewWhisperX(cfg *config.Config, logger *slog.Logger) *WhisperX {
	return &WhisperX{
		cfg:      cfg.Transcription,
		workRoot: cfg.ScratchRoot(),
		logger:   logging.NewComponentLogger(logger, "whisperx"),
		run:      runWithEnv,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner EnvRunner) {
	if runner != nil {
		w.run = runner
	}
}

// Backend implements Transcriber.
func (w *WhisperX) Backend() string { return config.BackendWhisperX }

// Transcribe implements Transcriber.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string, opts Options) ([]subtitles.Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "whisperx", "transcribe", "audio path required", nil)
	}
	if err := os.MkdirAll(w.workRoot, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "whisperx", "transcribe", "ensure work dir", err)
	}
	outputDir, err := os.MkdirTemp(w.workRoot, "whisperx-*")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "whisperx", "transcribe", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	args := w.buildArgs(audioPath, outputDir, opts)
	w.logger.Info("whisperx transcription starting",
		logging.String("model", opts.Model),
		logging.String("task", opts.Task),
		logging.String("language", language.DisplayName(opts.Language)),
		logging.Bool("cuda", w.cfg.WhisperXCUDAEnabled),
		logging.String(logging.FieldEventType, "transcription_started"),
	)
	if err := w.run(ctx, w.buildEnv(opts), UVXCommand, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "whisperx", "run", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "whisperx", "load output", "", err)
	}
	return segments, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (w *WhisperX) buildArgs(source, outputDir string, opts Options) []string {
	args := make([]string, 0, 40)

	if w.cfg.WhisperXCUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", opts.Model,
		"--task", opts.Task,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--verbose", pythonBool(opts.Verbose),
	)

	vadMethod := w.cfg.WhisperXVADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && w.cfg.WhisperXHuggingFace != "" {
		args = append(args, "--hf_token", w.cfg.WhisperXHuggingFace)
	}

	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}

	if w.cfg.WhisperXCUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func (w *WhisperX) buildEnv(opts Options) []string {
	var env []string
	// Torch 2.6 changed torch.load to weights_only=true, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if opts.SuppressWarnings {
		env = append(env, "PYTHONWARNINGS=ignore")
	}
	return env
}

func pythonBool(value bool) string {
	if value {
		return "True"
	}
	return "False"
}

type whisperXSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]subtitles.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return toSegments(len(payload.Segments), func(i int) (float64, float64, string) {
		seg := payload.Segments[i]
		return seg.Start, seg.End, seg.Text
	}), nil
}

func runWithEnv(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
