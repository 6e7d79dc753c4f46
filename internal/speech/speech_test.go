package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diogo/nanogenius/internal/config"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.SpeechConfig
		available bool
	}{
		{"no command", config.SpeechConfig{}, false},
		{"missing binary", config.SpeechConfig{Command: "definitely-not-a-real-binary-xyz"}, false},
		{"shell", config.SpeechConfig{Command: "sh"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.cfg)
			if got.Available() != tt.available {
				t.Errorf("Detect() = %+v, want available=%v", got, tt.available)
			}
			if !got.Available() && got.Reason == "" {
				t.Error("unavailable capability should carry a reason")
			}
		})
	}
}

func TestDetect_UsesLookPath(t *testing.T) {
	orig := lookPath
	defer func() { lookPath = orig }()
	lookPath = func(string) (string, error) { return "", errors.New("nope") }

	if Detect(config.SpeechConfig{Command: "sh"}).Available() {
		t.Error("Detect() should report unavailable when lookup fails")
	}
}

func TestNewCommandRecognizer_Unavailable(t *testing.T) {
	_, err := NewCommandRecognizer(config.SpeechConfig{})
	if err == nil {
		t.Fatal("expected error without a command")
	}
}

func collect(t *testing.T, r Recognizer) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			events = append(events, ev)
			if ev.Kind == EventEnded {
				return events
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %+v", events)
		}
	}
}

func TestCommandRecognizer_Result(t *testing.T) {
	r, err := NewCommandRecognizer(config.SpeechConfig{
		Command:  "sh",
		Args:     []string{"-c", "echo '  hello {lang}  '"},
		Language: "en-US",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events := collect(t, r)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != EventStarted {
		t.Errorf("first event = %v, want started", events[0].Kind)
	}
	if events[1].Kind != EventResult || events[1].Transcript != "hello en-US" {
		t.Errorf("second event = %+v, want result 'hello en-US'", events[1])
	}
	if r.Listening() {
		t.Error("Listening() should be false after Ended")
	}
}

func TestCommandRecognizer_Failure(t *testing.T) {
	r, err := NewCommandRecognizer(config.SpeechConfig{Command: "sh", Args: []string{"-c", "echo mic busy >&2; exit 3"}})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	events := collect(t, r)

	if len(events) != 3 || events[1].Kind != EventFailed || events[1].Err == nil {
		t.Fatalf("events = %+v, want started/failed/ended", events)
	}
}

func TestCommandRecognizer_StopAndBusy(t *testing.T) {
	r, err := NewCommandRecognizer(config.SpeechConfig{Command: "sh", Args: []string{"-c", "sleep 10"}})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("second Start() error = %v, want ErrAlreadyListening", err)
	}

	stopped := time.Now()
	r.Stop()
	events := collect(t, r)

	if elapsed := time.Since(stopped); elapsed > 2*time.Second {
		t.Errorf("Ended arrived %v after Stop", elapsed)
	}
	for _, ev := range events {
		if ev.Kind == EventFailed || ev.Kind == EventResult {
			t.Errorf("stopped recognition emitted %+v", ev)
		}
	}
	if r.Listening() {
		t.Error("Listening() should be false after Ended")
	}
}

func TestCommandRecognizer_StopReachesChildren(t *testing.T) {
	// the sleep outlives its shell unless the whole group is killed
	r, err := NewCommandRecognizer(config.SpeechConfig{Command: "sh", Args: []string{"-c", "sleep 30; echo late"}})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	stopped := time.Now()
	r.Stop()
	collect(t, r)
	if elapsed := time.Since(stopped); elapsed > 2*time.Second {
		t.Fatalf("Ended arrived %v after Stop", elapsed)
	}

	// a new recognition can start right away
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() after Stop error: %v", err)
	}
	r.Stop()
	collect(t, r)
}
