package jobconfig

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gosched/internal/facade"
	"gosched/internal/job"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "every seconds", raw: "every 30s"},
		{name: "every minutes uppercase unit", raw: "every 5M"},
		{name: "standard cron", raw: "*/5 * * * *"},
		{name: "descriptor", raw: "@daily"},
		{name: "extended cron", raw: "0 0 12 * * * 2030"},
		{name: "garbage", raw: "not a schedule", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sched, err := ParseSchedule(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSchedule(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if sched == nil {
				t.Fatalf("ParseSchedule(%q): nil schedule", tt.raw)
			}
		})
	}
}

func TestParseScheduleEveryProducesDelay(t *testing.T) {
	t.Parallel()
	sched, err := ParseSchedule("every 45s")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	d, ok := sched.(job.Delay)
	if !ok {
		t.Fatalf("got %T, want job.Delay", sched)
	}
	if d.Value != 45 || d.Unit != "s" {
		t.Fatalf("got Delay{%d, %q}, want {45, \"s\"}", d.Value, d.Unit)
	}
}

func TestParseRepeatVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want job.Repeat
	}{
		{name: "absent", raw: "", want: job.RepeatForever},
		{name: "true", raw: "true", want: job.RepeatForever},
		{name: "false", raw: "false", want: job.RepeatNever},
		{name: "integer", raw: "3", want: job.RepeatN(3)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseRepeat(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parseRepeat(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("parseRepeat(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseRepeatRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := parseRepeat(json.RawMessage(`"nope"`)); err == nil {
		t.Fatal("expected error for a string repeat value")
	}
}

func TestParseRepeatRejectsNegativeInteger(t *testing.T) {
	t.Parallel()
	_, err := parseRepeat(json.RawMessage(`-5`))
	if !errors.Is(err, facade.ErrInvalidRepeat) {
		t.Fatalf("parseRepeat(-5) = %v, want facade.ErrInvalidRepeat", err)
	}
}

func TestToOptionsRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()
	_, err := toOptions(JobDefOptions{NonexistentTimeStrategy: "explode"})
	if err == nil {
		t.Fatal("expected error for an unrecognized nonexistent_time_strategy")
	}
}

func TestToOptionsDefaultsStrategyToSkip(t *testing.T) {
	t.Parallel()
	opts, err := toOptions(JobDefOptions{})
	if err != nil {
		t.Fatalf("toOptions: %v", err)
	}
	if opts.NonexistentTimeStrategy != job.StrategySkip {
		t.Fatalf("NonexistentTimeStrategy = %v, want %v", opts.NonexistentTimeStrategy, job.StrategySkip)
	}
}

func TestParseJSONFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	doc := `{"jobs":[{"name":"heartbeat","schedule":"every 10s","task":"heartbeat"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Jobs) != 1 || f.Jobs[0].Name != "heartbeat" {
		t.Fatalf("got %+v, want a single heartbeat job", f.Jobs)
	}
}

func TestParseYAMLFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	doc := "jobs:\n  - name: heartbeat\n    schedule: every 10s\n    task: heartbeat\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Jobs) != 1 || f.Jobs[0].Schedule != "every 10s" {
		t.Fatalf("got %+v, want a single 'every 10s' job", f.Jobs)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	doc := `{"jobs":[{"name":"x","schedule":"every 1s","task":"x","bogus":true}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Parse(path); err == nil {
		t.Fatal("expected an unknown-field error")
	}
}
