// Package mixgraph owns the per-stem signal path (voice -> gain -> output)
// for one playback session and doubles as the playback clock.
//
// All voices of a session are started at one clock position under a single
// lock acquisition, so stems are sample-aligned by construction. Muting is
// always a gain operation; voices are only stopped when the session ends.
package mixgraph

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

// ErrNoPlayableStems is returned when a session would have no voices.
var ErrNoPlayableStems = errors.New("no playable stems")

// EndFunc is called once per voice that plays to the end of its buffer. It
// runs on the render goroutine with the graph locked and must not block or
// call back into the graph.
type EndFunc func(sessionID string, s stem.Stem)

// Info is a point-in-time view of the current session.
type Info struct {
	ID          string
	StartSample int
	StartAt     time.Duration
	Voices      stem.Set // stems that got a voice
	Running     stem.Set // stems whose voice is still playing
}

type session struct {
	id      string
	startAt int
	voices  map[stem.Stem]*audio.Voice
	gains   map[stem.Stem]*audio.Gain
}

// Graph mixes the voices of at most one session. It implements beep.Streamer;
// the output backend pulls from it on the render goroutine while the engine
// issues commands from the control goroutine.
type Graph struct {
	mu      sync.Mutex
	log     zerolog.Logger
	clock   int
	master  float64
	session *session
	kept    map[stem.Stem]*audio.Gain
	scratch [][2]float64
}

// New creates an empty graph with the given master gain.
func New(master float64, logger zerolog.Logger) *Graph {
	if master <= 0 || master > 1 {
		master = 1
	}
	return &Graph{
		log:    logger.With().Str("component", "mixgraph").Logger(),
		master: master,
	}
}

// CreateSession tears down any previous session and starts one voice per
// buffered stem at the current clock position. Stems in active start at
// gain 1, the rest at 0. Gains preserved by EndSessionKeepGains are reused.
func (g *Graph) CreateSession(buffers map[stem.Stem]*audio.Buffer, active stem.Set, onEnded EndFunc) (Info, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.kept
	g.kept = nil
	if g.session != nil {
		g.stopVoices(g.session)
		g.session = nil
	}

	s := &session{
		id:      uuid.NewString(),
		startAt: g.clock,
		voices:  make(map[stem.Stem]*audio.Voice, stem.Count),
		gains:   make(map[stem.Stem]*audio.Gain, stem.Count),
	}

	for _, st := range stem.All {
		buf := buffers[st]
		if buf == nil {
			g.log.Warn().Str("stem", st.String()).Msg("buffer not loaded, skipping")
			continue
		}

		target := 0.0
		if active.Has(st) {
			target = 1
		}
		gain, ok := kept[st]
		if ok {
			gain.RampTo(target, 0)
		} else {
			gain = audio.NewGain(target)
		}

		v := audio.NewVoice(buf)
		id := s.id
		v.OnEnded(func() {
			if onEnded != nil {
				onEnded(id, st)
			}
		})
		if err := v.Start(s.startAt); err != nil {
			g.log.Error().Err(err).Str("stem", st.String()).Msg("voice start failed")
			continue
		}
		s.voices[st] = v
		s.gains[st] = gain
	}

	if len(s.voices) == 0 {
		return Info{}, ErrNoPlayableStems
	}

	g.session = s
	g.log.Debug().
		Str("session", s.id).
		Int("start_sample", s.startAt).
		Int("voices", len(s.voices)).
		Msg("session created")
	return g.infoLocked(), nil
}

// SetGain ramps a stem's gain linearly from its momentary value to target
// over ramp, replacing any ramp in flight. Without a session or gain for
// the stem it does nothing.
func (g *Graph) SetGain(st stem.Stem, target float64, ramp time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		g.log.Debug().Str("stem", st.String()).Msg("set gain without session ignored")
		return
	}
	gain, ok := g.session.gains[st]
	if !ok {
		g.log.Debug().Str("stem", st.String()).Msg("set gain on missing stem ignored")
		return
	}
	gain.RampTo(target, audio.Samples(ramp))
}

// EndSession stops and releases every voice and gain. Safe to call repeatedly.
func (g *Graph) EndSession() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.kept = nil
	if g.session == nil {
		return
	}
	g.stopVoices(g.session)
	g.log.Debug().Str("session", g.session.id).Msg("session ended")
	g.session = nil
}

// EndSessionKeepGains stops and releases the voices but keeps the gains so
// the next CreateSession picks them up.
func (g *Graph) EndSessionKeepGains() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return
	}
	g.stopVoices(g.session)
	g.kept = g.session.gains
	g.log.Debug().Str("session", g.session.id).Msg("session soft-stopped")
	g.session = nil
}

func (g *Graph) stopVoices(s *session) {
	for st, v := range s.voices {
		v.Stop()
		delete(s.voices, st)
	}
}

// Info returns the current session, or false if there is none.
func (g *Graph) Info() (Info, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return Info{}, false
	}
	return g.infoLocked(), true
}

func (g *Graph) infoLocked() Info {
	s := g.session
	info := Info{
		ID:          s.id,
		StartSample: s.startAt,
		StartAt:     audio.Duration(s.startAt),
	}
	for st, v := range s.voices {
		info.Voices = info.Voices.Add(st)
		if v.State() == audio.VoiceStarted {
			info.Running = info.Running.Add(st)
		}
	}
	return info
}

// VoiceStarts returns the clock position each voice of the session started at.
func (g *Graph) VoiceStarts() map[stem.Stem]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[stem.Stem]int)
	if g.session == nil {
		return out
	}
	for st, v := range g.session.voices {
		out[st] = v.StartAt()
	}
	return out
}

// Gain returns the momentary and target value of a stem's gain.
func (g *Graph) Gain(st stem.Stem) (value, target float64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return 0, 0, false
	}
	gain, ok := g.session.gains[st]
	if !ok {
		return 0, 0, false
	}
	return gain.Value(), gain.Target(), true
}

// Ramping reports whether any gain of the session is mid-ramp.
func (g *Graph) Ramping() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return false
	}
	for _, gain := range g.session.gains {
		if gain.Ramping() {
			return true
		}
	}
	return false
}

// Now returns the playback clock: time rendered since the graph was created.
func (g *Graph) Now() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return audio.Duration(g.clock)
}

// Elapsed returns the time played since the session started, or 0.
func (g *Graph) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil {
		return 0
	}
	return audio.Duration(g.clock - g.session.startAt)
}

// Stream renders the next len(samples) frames of the mix and advances the
// clock. It always fills the whole slice, with silence if nothing plays.
func (g *Graph) Stream(samples [][2]float64) (n int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}
	g.clock += len(samples)

	s := g.session
	if s == nil {
		return len(samples), true
	}

	if cap(g.scratch) < len(samples) {
		g.scratch = make([][2]float64, len(samples))
	}
	tmp := g.scratch[:len(samples)]

	for _, st := range stem.All {
		v, ok := s.voices[st]
		if !ok || v.State() != audio.VoiceStarted {
			continue
		}
		got, _ := v.Stream(tmp)
		for i := got; i < len(tmp); i++ {
			tmp[i] = [2]float64{}
		}
		s.gains[st].Apply(tmp)
		for i := range tmp {
			samples[i][0] += tmp[i][0]
			samples[i][1] += tmp[i][1]
		}
	}

	for i := range samples {
		samples[i][0] = clip(samples[i][0] * g.master)
		samples[i][1] = clip(samples[i][1] * g.master)
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (g *Graph) Err() error { return nil }

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
