// Package applog is the process-wide logging facility. It backs the
// LV2 log:log feature handed to the plugin and the host's own stderr
// output, gating trace-level messages behind -t and colorizing when
// stderr is a terminal (charmbracelet/log does both natively).
package applog

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet/log.Logger with the two verbosity levels
// jalv's -t flag distinguishes: normal (info/warn/error), and trace (debug).
type Logger struct {
	l *log.Logger
}

// New creates a logger writing to stderr. When trace is true, debug-level
// messages (used for LV2_LOG__Trace) are emitted; otherwise they are
// dropped before formatting.
func New(trace bool) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if trace {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return &Logger{l: l}
}

// Trace logs an LV2_LOG__Trace-equivalent message.
func (lg *Logger) Trace(msg string, kv ...any) { lg.l.Debug(msg, kv...) }

// Note logs an LV2_LOG__Note-equivalent informational message.
func (lg *Logger) Note(msg string, kv ...any) { lg.l.Info(msg, kv...) }

// Warning logs an LV2_LOG__Warning-equivalent message. Warnings are
// logged but never fail the operation that produced them.
func (lg *Logger) Warning(msg string, kv ...any) { lg.l.Warn(msg, kv...) }

// Error logs an LV2_LOG__Error-equivalent message.
func (lg *Logger) Error(msg string, kv ...any) { lg.l.Error(msg, kv...) }

// RTSink is a realtime-safe channel-backed sink: the audio thread posts
// preformatted records without blocking or allocating in the common case
// (the channel is sized generously at construction), and a non-realtime
// drain goroutine forwards them to a Logger.
type RTSink struct {
	records chan record
}

type record struct {
	level Level
	msg   string
}

// Level selects which Logger method an RTSink record is replayed through.
type Level int

const (
	LevelTrace Level = iota
	LevelNote
	LevelWarning
	LevelError
)

// NewRTSink creates a sink with the given channel depth. A depth of a few
// hundred is enough to absorb a burst without the RT thread blocking;
// if the channel is full, the record is dropped rather than stalling the
// audio callback.
func NewRTSink(depth int) *RTSink {
	return &RTSink{records: make(chan record, depth)}
}

// Postf formats nothing on the RT thread beyond the Sprintf call itself;
// callers on the RT path should prefer the lower-overhead Post for a
// static message when possible.
func (s *RTSink) Postf(lv Level, format string, args ...any) {
	select {
	case s.records <- record{level: lv, msg: sprintf(format, args...)}:
	default:
		// Drop rather than block the realtime thread.
	}
}

// Post enqueues a static message without formatting.
func (s *RTSink) Post(lv Level, msg string) {
	select {
	case s.records <- record{level: lv, msg: msg}:
	default:
	}
}

// Drain runs on the non-realtime thread, forwarding queued records to lg
// until done is closed. Intended to be run in its own goroutine for
// the lifetime of the host.
func (s *RTSink) Drain(lg *Logger, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case r := <-s.records:
			switch r.level {
			case LevelTrace:
				lg.Trace(r.msg)
			case LevelNote:
				lg.Note(r.msg)
			case LevelWarning:
				lg.Warning(r.msg)
			case LevelError:
				lg.Error(r.msg)
			}
		}
	}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
