package audio

import (
	"errors"

	"github.com/faiface/beep"
)

// ErrVoiceUsed is returned when starting a voice that already ran.
var ErrVoiceUsed = errors.New("voice already started")

// VoiceState is the lifecycle position of a Voice.
type VoiceState int

const (
	VoiceCreated VoiceState = iota
	VoiceStarted
	VoiceEnded
	VoiceStopped
)

func (s VoiceState) String() string {
	switch s {
	case VoiceCreated:
		return "created"
	case VoiceStarted:
		return "started"
	case VoiceEnded:
		return "ended"
	case VoiceStopped:
		return "stopped"
	}
	return "unknown"
}

// Voice plays one Buffer once from the beginning. It cannot be seeked or
// restarted; replaying needs a new Voice.
//
// Voice is not safe for concurrent use. The mix graph serializes access.
type Voice struct {
	src     beep.StreamSeeker
	startAt int
	state   VoiceState
	onEnded func()
}

// NewVoice binds a voice to b.
func NewVoice(b *Buffer) *Voice {
	return &Voice{src: b.Streamer()}
}

// OnEnded sets the hook fired once when the voice plays out its buffer.
func (v *Voice) OnEnded(fn func()) {
	v.onEnded = fn
}

// Start marks the voice as playing from clock sample position at.
func (v *Voice) Start(at int) error {
	if v.state != VoiceCreated {
		return ErrVoiceUsed
	}
	v.startAt = at
	v.state = VoiceStarted
	return nil
}

// Stop halts the voice. The end hook is detached first so a stopped voice
// never reports a natural end.
func (v *Voice) Stop() {
	v.onEnded = nil
	if v.state == VoiceCreated || v.state == VoiceStarted {
		v.state = VoiceStopped
	}
}

// State returns the lifecycle state.
func (v *Voice) State() VoiceState { return v.state }

// StartAt returns the clock sample position the voice started at.
func (v *Voice) StartAt() int { return v.startAt }

// Position returns how many frames have been played.
func (v *Voice) Position() int { return v.src.Position() }

// Len returns the length of the underlying buffer in frames.
func (v *Voice) Len() int { return v.src.Len() }

// Stream fills samples from the buffer. Once the buffer is exhausted the
// voice moves to VoiceEnded and fires its end hook.
func (v *Voice) Stream(samples [][2]float64) (n int, ok bool) {
	if v.state != VoiceStarted {
		return 0, false
	}
	n, ok = v.src.Stream(samples)
	if !ok || v.src.Position() >= v.src.Len() {
		v.state = VoiceEnded
		hook := v.onEnded
		v.onEnded = nil
		if hook != nil {
			hook()
		}
	}
	return n, n > 0
}

// Err always returns nil; buffers cannot fail mid-stream.
func (v *Voice) Err() error { return nil }
