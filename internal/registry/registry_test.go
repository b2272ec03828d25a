package registry

import (
	"testing"
	"time"

	"gosched/internal/activity"
	"gosched/internal/job"
	"gosched/internal/timescale"
)

func newHandle(t *testing.T, repeat job.Repeat) *activity.Handle {
	t.Helper()
	j := job.Job{
		Task:     job.Func0(func() error { return nil }),
		Schedule: job.Delay{Value: 5, Unit: "ms"},
		Options:  job.Options{Repeat: repeat}.WithDefaults(),
	}
	h, err := activity.New(j, job.TestOptions{TimeScale: timescale.Real()}, activity.Config{})
	if err != nil {
		t.Fatalf("activity.New: %v", err)
	}
	return h
}

func TestUpsertLookup(t *testing.T) {
	t.Parallel()
	r := New()
	h := newHandle(t, job.RepeatForever)
	defer h.Cancel()

	r.Upsert("job-a", h)
	got, ok := r.Lookup("job-a")
	if !ok || got != h {
		t.Fatalf("Lookup returned (%v, %v), want (%v, true)", got, ok, h)
	}
}

func TestLookupMiss(t *testing.T) {
	t.Parallel()
	r := New()
	if _, ok := r.Lookup("nope"); ok {
		t.Fatal("expected a miss for an unregistered name")
	}
}

func TestRemoveOnlyRemovesMatchingHandle(t *testing.T) {
	t.Parallel()
	r := New()
	h1 := newHandle(t, job.RepeatForever)
	h2 := newHandle(t, job.RepeatForever)
	defer h1.Cancel()
	defer h2.Cancel()

	r.Upsert("job-a", h1)
	r.Upsert("job-a", h2) // replaces h1

	r.Remove("job-a", h1) // stale handle, should not remove h2's entry
	got, ok := r.Lookup("job-a")
	if !ok || got != h2 {
		t.Fatalf("Remove with a stale handle evicted the current registration")
	}

	r.Remove("job-a", h2)
	if _, ok := r.Lookup("job-a"); ok {
		t.Fatal("expected job-a to be removed")
	}
}

func TestWatchRemovesOnTermination(t *testing.T) {
	t.Parallel()
	r := New()
	h := newHandle(t, job.RepeatN(1))
	r.Upsert("job-a", h)
	r.Watch("job-a", h)

	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.Lookup("job-a"); !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Watch did not remove the entry after termination")
}
