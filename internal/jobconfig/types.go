// Package jobconfig declares the on-disk job-definitions file format and a
// manager that hot-reloads it, reconciling the declared job set against the
// running scheduler through internal/facade. Adapted from the teacher's
// internal/config manager/yaml split.
package jobconfig

import "encoding/json"

// File is the top-level shape of a job-definitions document: a flat list of
// named job declarations. Unlike the teacher's monolithic Config (telegram,
// logging, pprof, plugins, ...), this format has exactly one concern.
type File struct {
	Jobs []JobDef `json:"jobs"`
}

// JobDef is one declared job. Schedule is a small string grammar handled by
// ParseSchedule: a plain cron expression/descriptor, or "every <n><unit>"
// for a repeating delay (e.g. "every 30s").
//
// Task names a function registered with the Manager's TaskRegistry (config
// files carry data, never code); Args is passed through to that function
// m/f/a-style, with job.SchedExScheduledTime/job.FledexSchedulerScheduledTime
// sentinels substituted by internal/job.NormalizeMFA at fire time.
//
// Name is required: reconciliation identifies jobs by name across reloads,
// so an unnamed entry can never be diffed against a previous revision.
type JobDef struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Options  JobDefOptions `json:"options,omitempty"`
	Task     string        `json:"task"`
	Args     []any         `json:"args,omitempty"`
}

// JobDefOptions mirrors the recognized job.Options keys as their
// JSON-friendly equivalents. Repeat is a raw JSON value because the schema
// accepts a bool or a non-negative integer (job.Repeat's three cases).
type JobDefOptions struct {
	Timezone                string          `json:"timezone,omitempty"`
	Overlap                 bool            `json:"overlap,omitempty"`
	Repeat                  json.RawMessage `json:"repeat,omitempty"`
	RunOnce                 bool            `json:"run_once,omitempty"`
	NonexistentTimeStrategy string          `json:"nonexistent_time_strategy,omitempty"`
}
