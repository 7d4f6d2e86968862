package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/pipeline"
)

func TestRunMockToFallback(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"-source", "mock",
		"-template", "employees",
		"-rows", "20",
		"-seed", "1",
		"-chunk-size", "10",
		"-fallback", filepath.Join(dir, "fallback.db"),
		"-history", filepath.Join(dir, "history.json"),
	}, &stdout, &stderr)

	if code != 0 {
		t.Fatalf("run = %d, stderr: %s", code, stderr.String())
	}

	var res pipeline.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode result %q: %v", stdout.String(), err)
	}
	if !res.Success || res.RowsProcessed != 20 {
		t.Errorf("result = %+v, want 20 rows ingested", res)
	}
	if res.BackendUsed != "fallback" {
		t.Errorf("BackendUsed = %q, want fallback with no primary configured", res.BackendUsed)
	}
	if res.TableName != "employees" {
		t.Errorf("TableName = %q, want employees", res.TableName)
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source", nil},
		{"bad source", []string{"-source", "ftp"}},
		{"excel without file", []string{"-source", "excel"}},
		{"bad mode", []string{"-source", "mock", "-mode", "upsert"}},
		{"unknown metrics backend", []string{"-source", "mock", "-metrics", "statsd"}},
		{"unknown flag", []string{"-bogus"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != 2 {
				t.Fatalf("run = %d, want 2 (stderr: %s)", code, stderr.String())
			}
		})
	}
}

func TestRunMissingExcelFile(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"-source", "excel",
		"-file", filepath.Join(dir, "absent.xlsx"),
		"-fallback", filepath.Join(dir, "fallback.db"),
		"-history", filepath.Join(dir, "history.json"),
	}, &stdout, &stderr)

	// The file is checked when the run opens the source, not at flag time.
	if code != 1 {
		t.Fatalf("run = %d, want 1", code)
	}
	var res pipeline.Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Success || res.State != pipeline.StateFailed {
		t.Errorf("result = %+v, want failed", res)
	}
}
