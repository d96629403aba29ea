// Package engine is the transport state machine of the player. It owns the
// loaded song, the activity set and the mix graph session, and applies every
// command and asynchronous event on a single goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/asset"
	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/mixgraph"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

var (
	// ErrInvalidCommand is returned for commands that do not apply in the
	// current state. The engine ignores them.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrClosed is returned once Run has exited.
	ErrClosed = errors.New("engine closed")
)

// Namer resolves song ids to display names.
type Namer interface {
	DisplayName(id string) string
}

// Options tune the engine's timing.
type Options struct {
	Fade        time.Duration // mute/unmute ramp
	EndDebounce time.Duration // delay between the last voice ending and Finished
	Tick        time.Duration // elapsed-time publish interval while playing, 0 disables
	Names       Namer
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		Fade:        50 * time.Millisecond,
		EndDebounce: 50 * time.Millisecond,
		Tick:        500 * time.Millisecond,
	}
}

type command struct {
	fn    func() error
	reply chan error
}

type loadDone struct {
	gen  uint64
	song *asset.Song
	err  error
}

type voiceEnded struct {
	session string
	stem    stem.Stem
}

type debounceFired struct {
	session string
}

// Engine drives one mix graph. Create it with New and start Run before
// issuing commands.
type Engine struct {
	log   zerolog.Logger
	graph *mixgraph.Graph
	store asset.Store
	sink  Sink
	opts  Options

	cmds   chan command
	events chan any
	done   chan struct{}
	last   atomic.Pointer[Status]

	// Owned by the Run goroutine.
	ctx        context.Context
	state      State
	song       string
	buffers    map[stem.Stem]*audio.Buffer
	act        *Activity
	note       string
	frozen     time.Duration
	err        error
	gen        uint64
	cancelLoad context.CancelFunc
	session    string
	live       stem.Set
	debounce   *time.Timer
}

// New creates an idle engine.
func New(graph *mixgraph.Graph, store asset.Store, sink Sink, opts Options, logger zerolog.Logger) *Engine {
	if sink == nil {
		sink = SinkFunc(func(Status) {})
	}
	e := &Engine{
		log:    logger.With().Str("component", "engine").Logger(),
		graph:  graph,
		store:  store,
		sink:   sink,
		opts:   opts,
		cmds:   make(chan command),
		events: make(chan any, 16),
		done:   make(chan struct{}),
		act:    NewActivity(graph, opts.Fade),
	}
	idle := e.snapshot()
	e.last.Store(&idle)
	return e
}

// Run applies commands and events until ctx is cancelled. It must be called
// exactly once.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.ctx = ctx

	var tick <-chan time.Time
	if e.opts.Tick > 0 {
		t := time.NewTicker(e.opts.Tick)
		defer t.Stop()
		tick = t.C
	}

	e.log.Info().
		Dur("fade", e.opts.Fade).
		Dur("end_debounce", e.opts.EndDebounce).
		Msg("engine started")
	e.publish()

	for {
		select {
		case <-ctx.Done():
			e.teardown()
			e.log.Info().Msg("engine stopped")
			return nil
		case c := <-e.cmds:
			c.reply <- c.fn()
		case ev := <-e.events:
			e.handle(ev)
		case <-tick:
			if e.state == Playing {
				e.publish()
			}
		}
	}
}

func (e *Engine) do(fn func() error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case e.cmds <- c:
	case <-e.done:
		return ErrClosed
	}
	select {
	case err := <-c.reply:
		return err
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) post(ev any) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// SelectSong loads songID, discarding whatever was loaded or playing. An
// empty id resets the engine. The load completes asynchronously.
func (e *Engine) SelectSong(songID string) error {
	return e.do(func() error {
		e.teardown()
		e.err = nil
		if songID == "" {
			e.publish()
			return nil
		}

		e.gen++
		gen := e.gen
		ctx, cancel := context.WithCancel(e.ctx)
		e.cancelLoad = cancel
		e.state = Loading
		e.song = songID
		e.publish()

		e.log.Info().Str("song", songID).Uint64("gen", gen).Msg("loading song")
		go func() {
			song, err := asset.LoadSong(ctx, e.store, songID)
			e.post(loadDone{gen: gen, song: song, err: err})
		}()
		return nil
	})
}

// ToggleStem starts playback with only st when ready, or flips st's
// audibility while playing. Muting the last audible stem stops playback.
func (e *Engine) ToggleStem(st stem.Stem) error {
	return e.do(func() error {
		if !st.Valid() {
			return e.invalid("toggle %s: unknown stem", st)
		}
		switch e.state {
		case Ready:
			if e.buffers[st] == nil {
				return e.invalid("toggle %s: not loaded", st)
			}
			return e.start(stem.NewSet(st))
		case Playing:
			if e.act.IsActive(st) {
				e.act.Deactivate(st)
				if e.act.ActiveCount() == 0 {
					e.stop(TextStopped)
				}
			} else {
				if !e.live.Has(st) {
					return e.invalid("toggle %s: voice has ended", st)
				}
				e.act.Activate(st)
			}
			e.publish()
			return nil
		default:
			return e.invalid("toggle %s while %s", st, e.state)
		}
	})
}

// ToggleFullMix starts playback with every stem when ready, or fades in
// every muted stem while playing.
func (e *Engine) ToggleFullMix() error {
	return e.do(func() error {
		switch e.state {
		case Ready:
			return e.start(stem.Full())
		case Playing:
			if changed := e.act.FullMix(e.live); !changed.Empty() {
				e.log.Debug().Stringer("unmuted", changed).Msg("full mix")
				e.publish()
			}
			return nil
		default:
			return e.invalid("full mix while %s", e.state)
		}
	})
}

// Reset returns the engine to idle with nothing loaded.
func (e *Engine) Reset() error {
	return e.SelectSong("")
}

// Restart replays the current song from the beginning, keeping the
// audible stems. Only valid while playing.
func (e *Engine) Restart() error {
	return e.do(func() error {
		if e.state != Playing {
			return e.invalid("restart while %s", e.state)
		}
		active := e.act.Active()
		if active.Empty() {
			return e.invalid("restart with no audible stems")
		}
		e.stopDebounce()
		e.graph.EndSessionKeepGains()
		info, err := e.graph.CreateSession(e.buffers, active, e.onVoiceEnded)
		if err != nil {
			e.stop(TextStopped)
			e.fail(err)
			return err
		}
		e.begin(info, active)
		return nil
	})
}

// Status returns the current status. After Run has exited it returns the
// last published one.
func (e *Engine) Status() Status {
	var s Status
	if err := e.do(func() error { s = e.snapshot(); return nil }); err != nil {
		return *e.last.Load()
	}
	return s
}

func (e *Engine) handle(ev any) {
	switch ev := ev.(type) {
	case loadDone:
		e.loaded(ev)
	case voiceEnded:
		e.voiceEnded(ev)
	case debounceFired:
		e.debounceFired(ev)
	}
}

func (e *Engine) loaded(ev loadDone) {
	if ev.gen != e.gen || e.state != Loading {
		e.log.Debug().Uint64("gen", ev.gen).Msg("stale load result dropped")
		return
	}
	e.cancelLoad()
	e.cancelLoad = nil

	if ev.err != nil {
		title := e.title(e.song)
		e.log.Error().Err(ev.err).Str("song", e.song).Msg("song load failed")
		e.state = Idle
		e.song = ""
		e.fail(fmt.Errorf("failed to load song %q: %w", title, ev.err))
		return
	}

	e.buffers = ev.song.Buffers
	e.state = Ready
	e.log.Info().Str("song", e.song).Str("title", e.title(e.song)).Msg("song loaded")
	e.publish()
}

func (e *Engine) voiceEnded(ev voiceEnded) {
	if ev.session != e.session || e.state != Playing {
		return
	}
	e.live = e.live.Remove(ev.stem)
	e.act.Drop(ev.stem)
	e.log.Debug().Str("stem", ev.stem.String()).Int("live", e.live.Len()).Msg("voice ended")
	if e.live.Empty() || e.act.ActiveCount() == 0 {
		e.armDebounce()
	}
	e.publish()
}

func (e *Engine) armDebounce() {
	if e.debounce != nil {
		return
	}
	id := e.session
	e.debounce = time.AfterFunc(e.opts.EndDebounce, func() {
		e.post(debounceFired{session: id})
	})
}

func (e *Engine) stopDebounce() {
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

func (e *Engine) debounceFired(ev debounceFired) {
	if ev.session != e.session || e.state != Playing {
		return
	}
	e.debounce = nil
	if !e.live.Empty() && e.act.ActiveCount() > 0 {
		return
	}
	e.log.Info().Str("session", e.session).Msg("playback finished")
	e.stop(TextFinished)
	e.publish()
}

// start creates a fresh session from the loaded buffers.
func (e *Engine) start(active stem.Set) error {
	info, err := e.graph.CreateSession(e.buffers, active, e.onVoiceEnded)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not start playback")
		e.fail(err)
		return err
	}
	e.begin(info, active)
	return nil
}

func (e *Engine) begin(info mixgraph.Info, active stem.Set) {
	e.stopDebounce()
	e.session = info.ID
	e.live = info.Voices
	e.act.Reset(active.Intersect(info.Voices))
	e.state = Playing
	e.note = ""
	e.err = nil
	e.log.Info().
		Str("session", info.ID).
		Stringer("active", e.act.Active()).
		Dur("t0", info.StartAt).
		Msg("playback started")
	if e.act.ActiveCount() == 0 {
		e.armDebounce()
	}
	e.publish()
}

// onVoiceEnded runs on the render goroutine with the graph locked.
func (e *Engine) onVoiceEnded(session string, st stem.Stem) {
	go e.post(voiceEnded{session: session, stem: st})
}

// stop ends the session and leaves the song loaded.
func (e *Engine) stop(note string) {
	e.stopDebounce()
	e.frozen = 0
	if note == TextStopped {
		e.frozen = e.graph.Elapsed()
	}
	e.graph.EndSession()
	e.session = ""
	e.live = 0
	e.act.Clear()
	e.state = Ready
	e.note = note
}

// teardown drops the session, the buffers and any load in flight.
func (e *Engine) teardown() {
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.stopDebounce()
	e.graph.EndSession()
	e.session = ""
	e.live = 0
	e.act.Clear()
	e.buffers = nil
	e.song = ""
	e.note = ""
	e.frozen = 0
	e.state = Idle
}

func (e *Engine) fail(err error) {
	e.err = err
	e.publish()
}

func (e *Engine) invalid(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrInvalidCommand}, args...)...)
	e.log.Debug().Err(err).Msg("command ignored")
	return err
}

func (e *Engine) title(id string) string {
	if e.opts.Names == nil {
		return id
	}
	return e.opts.Names.DisplayName(id)
}

func (e *Engine) snapshot() Status {
	s := Status{
		State:   e.state,
		Text:    e.act.StatusText(e.state),
		Loading: e.state == Loading,
		Song:    e.song,
		Active:  e.act.Active(),
		Session: e.session,
		Err:     e.err,
	}
	if e.song != "" {
		s.Title = e.title(e.song)
	}
	if e.state == Ready && e.note != "" {
		s.Text = e.note
	}
	switch {
	case e.state == Playing:
		s.Elapsed = e.graph.Elapsed()
	case e.note == TextStopped:
		s.Elapsed = e.frozen
	}
	if e.err != nil {
		s.Error = e.err.Error()
	}
	return s
}

func (e *Engine) publish() {
	s := e.snapshot()
	e.last.Store(&s)
	e.sink.Publish(s)
}
