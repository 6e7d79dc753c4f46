package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/config"
	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/models"
	"github.com/diogo/nanogenius/internal/tui"
)

// isolate points the config directory at a temp dir and clears overrides
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("NANOGENIUS_HOME", home)
	for _, name := range []string{
		"API_KEY", "GEMINI_API_KEY", "TEXT_MODEL", "IMAGE_MODEL", "STORAGE",
		"STORAGE_DIR", "LOG_LEVEL", "SPEECH_COMMAND", "LISTEN",
	} {
		for _, key := range []string{name, "NANOGENIUS_" + name} {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	return home
}

type testEnv struct {
	deps   *Dependencies
	mock   *api.MockClient
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	home   string
	tuiRan *tui.Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		mock:   &api.MockClient{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		home:   isolate(t),
	}
	env.deps = &Dependencies{
		NewService: func(context.Context, config.Config) (api.Service, error) {
			return env.mock, nil
		},
		RunTUI: func(_ context.Context, d tui.Deps) error {
			env.tuiRan = &d
			return nil
		},
		Stdin:      strings.NewReader(""),
		Stdout:     env.stdout,
		Stderr:     env.stderr,
		IsTerminal: func(any) bool { return false },
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.stdout.Reset()
	e.stderr.Reset()
	cmd := NewRootCmd(e.deps)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommand_Help(t *testing.T) {
	cmd := NewRootCmd(NewDependencies())
	if cmd.Use != "nanogenius [prompt]" {
		t.Errorf("Expected use 'nanogenius [prompt]', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}

	for _, name := range []string{"chat", "ask", "sessions", "config", "serve"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"model", "image-model", "storage", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("global flag --%s missing", flag)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "--version"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "nanogenius "+Version) {
		t.Errorf("output = %q", env.stdout.String())
	}
}

func TestRootCommand_NoArgsStartsChat(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run(t, "--model", "gemini-2.5-pro"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if env.tuiRan == nil {
		t.Fatal("expected the chat TUI to start")
	}
	if env.tuiRan.ModelName != "gemini-2.5-pro" {
		t.Errorf("model = %q, want flag value", env.tuiRan.ModelName)
	}
	if env.tuiRan.Sessions == nil || env.tuiRan.Coordinator == nil || env.tuiRan.Events == nil {
		t.Error("TUI dependencies not wired")
	}
	if env.tuiRan.Speech.Available() {
		t.Error("speech should be unavailable without a configured command")
	}
	if _, err := os.Stat(filepath.Join(env.home, "nanogenius.log")); err != nil {
		t.Errorf("chat mode should log to the log file: %v", err)
	}
}

func TestAsk_StreamsAndPersists(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Chunks = []string{"Go is ", "a language."}

	if err := env.run(t, "What is Go?"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if got := env.stdout.String(); got != "Go is a language.\n" {
		t.Errorf("stdout = %q", got)
	}
	if env.mock.LastText != "What is Go?" {
		t.Errorf("prompt = %q", env.mock.LastText)
	}

	// a second run sees the saved conversation
	if err := env.run(t, "sessions", "show", "@last"); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	out := env.stdout.String()
	if !strings.Contains(out, "What is Go?") || !strings.Contains(out, "Go is a language.") {
		t.Errorf("show output = %q", out)
	}
}

func TestAsk_ReadsStdin(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Chunks = []string{"ok"}
	env.deps.Stdin = strings.NewReader("  piped prompt \n")

	if err := env.run(t, "ask"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if env.mock.LastText != "piped prompt" {
		t.Errorf("prompt = %q", env.mock.LastText)
	}
}

func TestAsk_EmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	err := env.run(t, "ask", "   ")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty prompt error, got %v", err)
	}
}

func TestAsk_ServiceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mock.StreamErr = apierrors.NewUsageLimitError("quota exceeded")

	err := env.run(t, "ask", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apierrors.IsRateLimitError(err) {
		t.Errorf("error should keep its type, got %v", err)
	}
	if !strings.Contains(env.stderr.String(), "Request failed") {
		t.Errorf("stderr = %q", env.stderr.String())
	}
}

func TestAsk_ImageSavedToDownloadDir(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ImageResult = &models.GenerationResult{
		Text:     "A city",
		ImageURL: models.DataURL("image/png", []byte("\x89PNG\r\n\x1a\nfake")),
	}

	if err := env.run(t, "ask", "generate a neon city"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if env.mock.ImageCalls != 1 {
		t.Fatalf("image calls = %d", env.mock.ImageCalls)
	}
	matches, _ := filepath.Glob(filepath.Join(env.home, "images", "*.png"))
	if len(matches) != 1 {
		t.Errorf("saved images = %v", matches)
	}
	if !strings.Contains(env.stdout.String(), "A city") {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestAsk_OutputFile(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Chunks = []string{"saved reply"}
	out := filepath.Join(t.TempDir(), "reply.md")

	if err := env.run(t, "ask", "-o", out, "hi"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "saved reply" {
		t.Errorf("file = %q", data)
	}
	if env.stdout.Len() != 0 {
		t.Errorf("stdout should stay empty, got %q", env.stdout.String())
	}
}

func TestSessionsCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Chunks = []string{"reply"}

	for _, prompt := range []string{"first question", "second question"} {
		if err := env.run(t, "ask", prompt); err != nil {
			t.Fatalf("ask %q: %v", prompt, err)
		}
	}

	if err := env.run(t, "sessions", "list"); err != nil {
		t.Fatal(err)
	}
	list := env.stdout.String()
	if !strings.Contains(list, "ID") || strings.Count(list, models.DefaultSessionTitle) != 2 {
		t.Errorf("list output = %q", list)
	}

	if err := env.run(t, "sessions", "search", "second"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.stdout.String(), "second question") {
		t.Errorf("search output = %q", env.stdout.String())
	}

	if err := env.run(t, "sessions", "export", "--format", "json", "1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.stdout.String(), `"second question"`) {
		t.Errorf("export output = %q", env.stdout.String())
	}

	if err := env.run(t, "sessions", "delete", "1"); err != nil {
		t.Fatal(err)
	}
	if err := env.run(t, "sessions", "list"); err != nil {
		t.Fatal(err)
	}
	if strings.Count(env.stdout.String(), models.DefaultSessionTitle) != 1 {
		t.Errorf("after delete = %q", env.stdout.String())
	}

	if err := env.run(t, "sessions", "show", "no-such-session"); err == nil {
		t.Error("show of an unknown ref should fail")
	}

	if err := env.run(t, "sessions", "clear"); err != nil {
		t.Fatal(err)
	}
	if err := env.run(t, "sessions", "list"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(env.stdout.String(), "question") {
		t.Error("clear should drop every conversation")
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run(t, "config", "path"); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(env.stdout.String()); got != filepath.Join(env.home, "config.json") {
		t.Errorf("path = %q", got)
	}

	if err := env.run(t, "config", "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := env.run(t, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if err := env.run(t, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	t.Setenv("NANOGENIUS_API_KEY", "secret-key-1234")
	if err := env.run(t, "config", "show", "--storage", "sqlite"); err != nil {
		t.Fatal(err)
	}
	out := env.stdout.String()
	if strings.Contains(out, "secret-key") {
		t.Error("API key must be masked")
	}
	if !strings.Contains(out, "****1234") || !strings.Contains(out, `"backend": "sqlite"`) {
		t.Errorf("show output = %q", out)
	}
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{out: &buf, live: true}

	p.write("Hel")
	p.write("Hello")
	p.write("Hello") // no growth
	p.finish("Hello world")

	if got := buf.String(); got != "Hello world\n" {
		t.Errorf("output = %q", got)
	}

	buf.Reset()
	quiet := &streamPrinter{out: &buf}
	quiet.write("ignored")
	if buf.Len() != 0 {
		t.Error("non-live printer should not write")
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "****"},
		{"abcd", "****"},
		{"abcdefgh", "****efgh"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatErrorMessage(t *testing.T) {
	if formatErrorMessage(nil, "x") != "" {
		t.Error("nil error should format empty")
	}

	msg := formatErrorMessage(apierrors.NewAPIError(500, "streamGenerateContent", "boom"), "Request failed")
	for _, want := range []string{"Request failed", "HTTP Status: 500", "Endpoint: streamGenerateContent"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %s", want, msg)
		}
	}

	msg = formatErrorMessage(apierrors.ErrNoAPIKey, "Error")
	if !strings.Contains(msg, "no API key") {
		t.Errorf("message = %s", msg)
	}
}

func TestNewGeminiService_Endpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"

	cfg.API.Backend = "bogus"
	if _, err := newGeminiService(context.Background(), cfg); err == nil {
		t.Error("unknown backend should be rejected")
	}

	cfg.API = config.APIConfig{Backend: "gemini", BaseURL: "https://gateway.example.com"}
	svc, err := newGeminiService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newGeminiService() error: %v", err)
	}
	svc.Close()
}
