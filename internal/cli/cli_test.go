package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/logging"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
commons:
  shared: hello
frames:
  - name: greet
    routine: echo
    environments:
      text: hi
  - name: counter
    routine: count
    redo: 2
`)
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if len(sc.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(sc.Frames))
	}
	if sc.Frames[0].Environments["text"] != "hi" {
		t.Errorf("environments not decoded: %#v", sc.Frames[0].Environments)
	}
	if sc.Frames[1].Redo != 2 {
		t.Errorf("redo = %d, want 2", sc.Frames[1].Redo)
	}
	if sc.Commons["shared"] != "hello" {
		t.Errorf("commons not decoded: %#v", sc.Commons)
	}
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: a
    routine: echo
    retries: 3
`)
	if _, err := LoadScenario(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadScenarioRejectsMissingRoutine(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: a
`)
	if _, err := LoadScenario(path); err == nil {
		t.Fatal("expected error for missing routine")
	}
}

func TestLoadScenarioRejectsUnknownRealm(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: a
    routine: echo
    realm: orbital
`)
	if _, err := LoadScenario(path); err == nil {
		t.Fatal("expected error for unknown realm")
	}
}

func TestRunScenarioSuccess(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: greet
    routine: echo
    environments:
      text: hi
  - name: counter
    routine: count
    redo: 2
`)
	var out bytes.Buffer
	ok, err := RunScenario(context.Background(), path, RunOptions{
		Logger: logging.NewNop(),
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if !ok {
		t.Fatalf("expected success, output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "greet") {
		t.Errorf("output missing frame name:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "0 failed") {
		t.Errorf("output missing summary:\n%s", out.String())
	}
}

func TestRunScenarioReportsFailure(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: broken
    routine: fail
    environments:
      message: boom
`)
	var out bytes.Buffer
	ok, err := RunScenario(context.Background(), path, RunOptions{
		Logger: logging.NewNop(),
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if ok {
		t.Fatal("expected failure to be reported")
	}
	if !strings.Contains(out.String(), "boom") {
		t.Errorf("output missing frame error:\n%s", out.String())
	}
}

func TestRunScenarioTimeout(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: slow
    routine: sleep
    environments:
      millis: 5000
`)
	var out bytes.Buffer
	start := time.Now()
	_, err := RunScenario(context.Background(), path, RunOptions{
		Logger:  logging.NewNop(),
		Out:     &out,
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout took too long: %s", time.Since(start))
	}
}

func TestRunScenarioUnknownRoutine(t *testing.T) {
	path := writeScenario(t, `
frames:
  - name: a
    routine: nonsense
`)
	if _, err := RunScenario(context.Background(), path, RunOptions{Logger: logging.NewNop()}); err == nil {
		t.Fatal("expected unknown routine error")
	}
}
