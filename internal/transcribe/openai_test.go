package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"ytwhisper/internal/config"
	"ytwhisper/internal/logging"
	"ytwhisper/internal/services"
	"ytwhisper/internal/testsupport"
)

type capturedRequest struct {
	path     string
	model    string
	format   string
	language string
}

func newWhisperAPIServer(t *testing.T, status int, body string) (*httptest.Server, func() capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		mu.Lock()
		captured = capturedRequest{
			path:     r.URL.Path,
			model:    r.FormValue("model"),
			format:   r.FormValue("response_format"),
			language: r.FormValue("language"),
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return captured
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(t.TempDir(), "clip.mp3"), []byte("ID3fake"))
}

const verboseJSON = `{
	"task": "transcribe",
	"language": "english",
	"duration": 4.2,
	"text": "Hello there. General Kenobi.",
	"segments": [
		{"id": 0, "seek": 0, "start": 0.0, "end": 1.8, "text": " Hello there."},
		{"id": 1, "seek": 0, "start": 1.8, "end": 4.2, "text": " General Kenobi."}
	]
}`

func TestOpenAITranscribe(t *testing.T) {
	srv, captured := newWhisperAPIServer(t, http.StatusOK, verboseJSON)
	tr, err := NewOpenAI(config.OpenAI{APIKey: "sk-test", BaseURL: srv.URL, TimeoutSeconds: 5}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	segments, err := tr.Transcribe(context.Background(), writeAudio(t), Options{Model: "whisper-1", Task: "transcribe", Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) != 2 || segments[1].Text != "General Kenobi." || segments[1].End != 4.2 {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	req := captured()
	if req.path != "/audio/transcriptions" {
		t.Fatalf("unexpected path %q", req.path)
	}
	if req.model != "whisper-1" || req.format != "verbose_json" || req.language != "en" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestOpenAITranslateUsesTranslationsEndpoint(t *testing.T) {
	srv, captured := newWhisperAPIServer(t, http.StatusOK, verboseJSON)
	tr, err := NewOpenAI(config.OpenAI{APIKey: "sk-test", BaseURL: srv.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), writeAudio(t), Options{Model: "whisper-1", Task: "translate", Language: "fr"}); err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	req := captured()
	if req.path != "/audio/translations" {
		t.Fatalf("unexpected path %q", req.path)
	}
	if req.language != "" {
		t.Fatalf("translations must not send a language, got %q", req.language)
	}
}

func TestOpenAIFallsBackToSingleCue(t *testing.T) {
	srv, _ := newWhisperAPIServer(t, http.StatusOK, `{"text":"  just text  ","duration":3.5}`)
	tr, err := NewOpenAI(config.OpenAI{APIKey: "sk-test", BaseURL: srv.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	segments, err := tr.Transcribe(context.Background(), writeAudio(t), Options{Model: "whisper-1", Task: "transcribe"})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "just text" || segments[0].End != 3.5 {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestOpenAIAPIError(t *testing.T) {
	srv, _ := newWhisperAPIServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`)
	tr, err := NewOpenAI(config.OpenAI{APIKey: "sk-bad", BaseURL: srv.URL}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	_, err = tr.Transcribe(context.Background(), writeAudio(t), Options{Model: "whisper-1", Task: "transcribe"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestOpenAIRejectsOversizedAudio(t *testing.T) {
	tr, err := NewOpenAI(config.OpenAI{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	path := testsupport.WriteSizedFile(t, filepath.Join(t.TempDir(), "big.mp3"), MaxUploadBytes+1)
	if _, err := tr.Transcribe(context.Background(), path, Options{Model: "whisper-1"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
