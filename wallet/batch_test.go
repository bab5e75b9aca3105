package wallet

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"xdao.co/wallet/template"
	"xdao.co/wallet/unit"
)

func sampleRecords() []template.FileRecord {
	return []template.FileRecord{
		{Path: "/index.html", Content: template.Text("<html>")},
		{Path: "/img/logo.png", Content: template.Binary([]byte{0x89, 'P', 'N', 'G', 0})},
		{Path: "/js/app.js", Content: template.Text("app()")},
	}
}

func TestWriteFilesWritesEveryRecord(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	u := f.load(t, f.seedUnit(t, nil))

	records := sampleRecords()
	before := slices.Clone(records)
	if err := WriteFiles(ctx, u, records, "/app"); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}

	files, err := u.ListFiles(ctx, "/")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != len(records) {
		t.Fatalf("unit holds %d files, want %d: %v", len(files), len(records), files)
	}
	for _, rec := range records {
		got, err := u.ReadFile(ctx, "/app"+rec.Path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if !bytes.Equal(got, rec.Content.Bytes()) {
			t.Fatalf("%s: content mismatch", rec.Path)
		}
	}
	for i := range records {
		if records[i].Path != before[i].Path {
			t.Fatalf("caller's records were modified")
		}
	}
}

func TestWriteFilesLastRecordFirst(t *testing.T) {
	f := newFixture(t, "")
	u := &faultyUnit{Unit: f.load(t, f.seedUnit(t, nil))}
	if err := WriteFiles(context.Background(), u, sampleRecords(), "app"); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	want := []string{"/app/js/app.js", "/app/img/logo.png", "/app/index.html"}
	if !slices.Equal(u.writes, want) {
		t.Fatalf("write order = %v want %v", u.writes, want)
	}
}

func TestWriteFilesEmpty(t *testing.T) {
	u := &faultyUnit{failBegin: errInjected}
	if err := WriteFiles(context.Background(), u, nil, "/app"); err != nil {
		t.Fatalf("empty list: %v", err)
	}
}

func TestWriteFilesBeginFailure(t *testing.T) {
	f := newFixture(t, "")
	u := &faultyUnit{Unit: f.load(t, f.seedUnit(t, nil)), failBegin: errInjected}
	err := WriteFiles(context.Background(), u, sampleRecords(), "/app")
	if !IsKind(err, KindBatchBegin) || !errors.Is(err, errInjected) {
		t.Fatalf("got %v want BatchBegin wrapping the injected error", err)
	}
	if len(u.writes) != 0 {
		t.Fatalf("wrote without a batch: %v", u.writes)
	}
}

func TestWriteFailureStopsAndCancels(t *testing.T) {
	f := newFixture(t, "")
	inner := f.load(t, f.seedUnit(t, nil))
	u := &faultyUnit{Unit: inner, failWrite: errInjected, failPath: "/app/img/logo.png"}

	err := WriteFiles(context.Background(), u, sampleRecords(), "/app")
	if !IsKind(err, KindWrite) || IsKind(err, KindCancel) {
		t.Fatalf("got %v want Write error with a clean cancel", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Path != "/app/img/logo.png" {
		t.Fatalf("error does not name the failing path: %v", err)
	}
	if u.cancels != 1 {
		t.Fatalf("cancels = %d want 1", u.cancels)
	}
	if len(u.writes) != 2 {
		t.Fatalf("remaining records were not abandoned: %v", u.writes)
	}
	if err := inner.BeginBatch(context.Background()); err != nil {
		t.Fatalf("batch left open after write failure: %v", err)
	}
}

func TestCommitFailureRestoresPreBatchState(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	inner := f.load(t, f.seedUnit(t, map[string]string{"/app/keep.txt": "keep"}))
	u := &faultyUnit{Unit: inner, failCommit: errInjected}

	records := []template.FileRecord{{Path: "/new.txt", Content: template.Text("new")}}
	err := WriteFiles(ctx, u, records, "/app")
	if !IsKind(err, KindCommit) || !errors.Is(err, errInjected) {
		t.Fatalf("got %v want Commit error carrying the commit cause", err)
	}
	if IsKind(err, KindCancel) {
		t.Fatalf("cancel succeeded but was reported as failed: %v", err)
	}

	if _, err := inner.ReadFile(ctx, "/app/new.txt"); !errors.Is(err, unit.ErrNotFound) {
		t.Fatalf("uncommitted file visible after cancel: %v", err)
	}
	if got := readString(t, inner, "/app/keep.txt"); got != "keep" {
		t.Fatalf("pre-batch file changed: %q", got)
	}
	reloaded := f.load(t, inner.Key())
	files, err := reloaded.ListFiles(ctx, "/")
	if err != nil || len(files) != 1 {
		t.Fatalf("stored state changed: %v, %v", files, err)
	}
}

func TestCommitAndCancelFailureReportsBoth(t *testing.T) {
	f := newFixture(t, "")
	errCancel := errors.New("cancel refused")
	u := &faultyUnit{Unit: f.load(t, f.seedUnit(t, nil)), failCommit: errInjected, failCancel: errCancel}

	err := WriteFiles(context.Background(), u, sampleRecords(), "/app")
	if !IsKind(err, KindCommit) || !IsKind(err, KindCancel) {
		t.Fatalf("got %v want both Commit and Cancel kinds", err)
	}
	if !errors.Is(err, errInjected) || !errors.Is(err, errCancel) {
		t.Fatalf("lost a cause: %v", err)
	}
	if KindOf(err) != KindCommit {
		t.Fatalf("outer kind = %s want Commit", KindOf(err))
	}
}

func TestWriteFilesCancelledContext(t *testing.T) {
	f := newFixture(t, "")
	u := f.load(t, f.seedUnit(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteFiles(ctx, u, sampleRecords(), "/app")
	if !errors.Is(err, context.Canceled) || !IsKind(err, KindBatchBegin) {
		t.Fatalf("got %v want BatchBegin wrapping context.Canceled", err)
	}
}
