// Package logtest provides a ServiceLogger that records entries for
// assertions in tests.
package logtest

import (
	"sync"

	"github.com/drblury/sqsreporter/internal/runtime/logging"
)

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Err    error
	Fields logging.LogFields
}

// Recorder is a concurrency-safe ServiceLogger. Loggers derived through With
// share the parent's entry list.
type Recorder struct {
	shared *entries
	fields logging.LogFields
}

type entries struct {
	mu   sync.Mutex
	list []Entry
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{shared: &entries{}}
}

// Entries returns a snapshot of everything logged so far.
func (r *Recorder) Entries() []Entry {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	out := make([]Entry, len(r.shared.list))
	copy(out, r.shared.list)
	return out
}

// ByLevel filters recorded entries by level.
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) With(fields logging.LogFields) logging.ServiceLogger {
	return &Recorder{shared: r.shared, fields: merge(r.fields, fields)}
}

func (r *Recorder) Debug(msg string, fields logging.LogFields) { r.record("debug", msg, nil, fields) }
func (r *Recorder) Info(msg string, fields logging.LogFields)  { r.record("info", msg, nil, fields) }
func (r *Recorder) Trace(msg string, fields logging.LogFields) { r.record("trace", msg, nil, fields) }

func (r *Recorder) Error(msg string, err error, fields logging.LogFields) {
	r.record("error", msg, err, fields)
}

func (r *Recorder) record(level, msg string, err error, fields logging.LogFields) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	r.shared.list = append(r.shared.list, Entry{Level: level, Msg: msg, Err: err, Fields: merge(r.fields, fields)})
}

func merge(base, extra logging.LogFields) logging.LogFields {
	out := make(logging.LogFields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
