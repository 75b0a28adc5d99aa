package packaging

import (
	"sort"
	"time"
)

// Stage describes a high-level packaging phase.
type Stage string

const (
	// StageScan is the module source scan (e.g. __file__ detection).
	StageScan Stage = "scan"
	// StageInfer is the package-hierarchy inference stage.
	StageInfer Stage = "infer"
	// StageCompile is the bytecode materialization stage.
	StageCompile Stage = "compile"
	// StageWrite is the blob/manifest emission stage.
	StageWrite Stage = "write"
	// StageLink is the linking-info resolution stage.
	StageLink Stage = "link"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a resource (or for the overall pipeline when
// Resource is empty).
type Event struct {
	Resource string
	Stage    Stage
	Status   Status
	Err      error
	Elapsed  time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, resource string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Resource: resource, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

// StringSet is a deduplicated name set with deterministic (lexicographic)
// enumeration, used for link dependency categories.
type StringSet map[string]struct{}

// NewStringSet builds a set from items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s StringSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports membership.
func (s StringSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the contents in lexicographic order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}
