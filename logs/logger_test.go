package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/wallet/config"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(config.Log{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.WarnContext(WithRun(context.Background(), "01RUN"), "shown", "app", "todo")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record passed a warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "run=01RUN") || !strings.Contains(out, "app=todo") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewFileIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.log")
	logger, closeFn, err := New(config.Log{Level: "debug", File: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.With("stage", "commit").Debug("step")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &rec); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, b)
	}
	if rec["msg"] != "step" || rec["stage"] != "commit" {
		t.Fatalf("record = %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	if l, err := ParseLevel("ERROR"); err != nil || l.String() != "ERROR" {
		t.Fatalf("ParseLevel(ERROR) = %v, %v", l, err)
	}
}

func TestToJournalKey(t *testing.T) {
	if got := toJournalKey("app.name-1"); got != "APP_NAME_1" {
		t.Fatalf("toJournalKey = %q", got)
	}
}
