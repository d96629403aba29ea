package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/stem"
)

// State is the transport state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status texts.
const (
	TextIdle     = "Idle"
	TextReady    = "Ready"
	TextFullMix  = "Playing (Full Mix)"
	TextEnding   = "Playing (Silent - Ending...)"
	TextStopped  = "Stopped"
	TextFinished = "Finished"
)

// PlayingText labels a session with n audible stems.
func PlayingText(n int) string {
	if n == 0 {
		return TextEnding
	}
	if n == stem.Count {
		return TextFullMix
	}
	if n == 1 {
		return "Playing (1 Stem)"
	}
	return fmt.Sprintf("Playing (%d Stems)", n)
}

// Status is what the engine publishes after every change.
type Status struct {
	State   State         `json:"state"`
	Text    string        `json:"status"`
	Loading bool          `json:"loading"`
	Song    string        `json:"song,omitempty"`
	Title   string        `json:"title,omitempty"`
	Active  stem.Set      `json:"active"`
	Elapsed time.Duration `json:"-"`
	Session string        `json:"session,omitempty"`
	Error   string        `json:"error,omitempty"`

	// Err is the error behind Error, for callers that need errors.Is.
	Err error `json:"-"`
}

// MarshalJSON adds the elapsed time in seconds and as m:ss.
func (s Status) MarshalJSON() ([]byte, error) {
	type plain Status
	return json.Marshal(struct {
		plain
		Seconds float64 `json:"elapsed"`
		Time    string  `json:"time"`
	}{plain(s), s.Elapsed.Seconds(), FormatTime(s.Elapsed)})
}

// FormatTime renders d as m:ss, truncating to whole seconds.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Sink receives status updates. Publish is called on the engine goroutine and
// must not block or call back into the engine.
type Sink interface {
	Publish(Status)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Status)

func (f SinkFunc) Publish(s Status) { f(s) }

// MultiSink fans one status out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(s Status) {
	for _, sink := range m {
		sink.Publish(s)
	}
}

// LogSink logs status changes. Elapsed-only updates are logged at debug.
type LogSink struct {
	log  zerolog.Logger
	mu   sync.Mutex
	last Status
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "status").Logger()}
}

func (l *LogSink) Publish(s Status) {
	l.mu.Lock()
	changed := s.Text != l.last.Text || s.Active != l.last.Active ||
		s.Loading != l.last.Loading || s.Error != l.last.Error || s.Song != l.last.Song
	l.last = s
	l.mu.Unlock()

	ev := l.log.Debug()
	if changed {
		ev = l.log.Info()
	}
	if s.Error != "" {
		ev = l.log.Warn()
	}
	ev.Str("status", s.Text).
		Str("song", s.Song).
		Bool("loading", s.Loading).
		Stringer("active", s.Active).
		Str("time", FormatTime(s.Elapsed)).
		Str("error", s.Error).
		Msg("status")
}
