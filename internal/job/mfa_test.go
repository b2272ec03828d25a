package job

import (
	"testing"
	"time"
)

func TestNormalizeMFASubstitutesSentinel(t *testing.T) {
	t.Parallel()
	var gotArgs []any
	m := MFA{
		Fn: func(args ...any) error {
			gotArgs = args
			return nil
		},
		Args: []any{"static", SchedExScheduledTime, 42},
	}
	fn := NormalizeMFA(m)
	fireAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := fn(fireAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotArgs) != 3 {
		t.Fatalf("got %d args, want 3", len(gotArgs))
	}
	if gotArgs[0] != "static" || gotArgs[2] != 42 {
		t.Fatalf("non-sentinel args were mutated: %v", gotArgs)
	}
	got, ok := gotArgs[1].(time.Time)
	if !ok || !got.Equal(fireAt) {
		t.Fatalf("sentinel not substituted with fire instant: %v", gotArgs[1])
	}
}

func TestNormalizeMFALegacySentinel(t *testing.T) {
	t.Parallel()
	var gotArgs []any
	m := MFA{
		Fn: func(args ...any) error {
			gotArgs = args
			return nil
		},
		Args: []any{FledexSchedulerScheduledTime},
	}
	fireAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := NormalizeMFA(m)(fireAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := gotArgs[0].(time.Time); !ok || !got.Equal(fireAt) {
		t.Fatalf("legacy sentinel not substituted: %v", gotArgs[0])
	}
}

func TestNormalizeMFANoSubstringMatch(t *testing.T) {
	t.Parallel()
	var gotArgs []any
	m := MFA{
		Fn: func(args ...any) error {
			gotArgs = args
			return nil
		},
		Args: []any{"prefix:" + SchedExScheduledTime},
	}
	fireAt := time.Now()
	if err := NormalizeMFA(m)(fireAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gotArgs[0].(time.Time); ok {
		t.Fatal("substring-containing argument should not be substituted")
	}
}
