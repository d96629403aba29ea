// Package output plays the mix on a sound device, or paces it in real time
// without one, and hands every rendered frame to remote listeners.
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// Backend renders a streamer until its context is cancelled.
type Backend interface {
	// Run blocks, pulling audio from the source, until ctx is done.
	Run(ctx context.Context) error
	// Frames carries the rendered mix as 20ms PCM frames.
	Frames() <-chan []int16
	Name() string
}

// Options configure a backend.
type Options struct {
	Kind   string        // speaker, oto, portaudio or headless
	Buffer time.Duration // device buffer
}

// New opens the backend named by opts.Kind, reading from src.
func New(opts Options, src beep.Streamer, logger zerolog.Logger) (Backend, error) {
	log := logger.With().Str("component", "output").Str("backend", opts.Kind).Logger()
	if opts.Buffer <= 0 {
		opts.Buffer = 100 * time.Millisecond
	}

	switch opts.Kind {
	case "speaker":
		return newSpeaker(src, opts.Buffer, log), nil
	case "oto":
		return newOto(src, opts.Buffer, log), nil
	case "portaudio":
		return newPortAudio(src, opts.Buffer, log), nil
	case "headless", "":
		return newHeadless(src, log), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q", opts.Kind)
	}
}

// Tap passes audio through unchanged and copies it to a FrameWriter.
type Tap struct {
	src beep.Streamer
	w   *audio.FrameWriter
}

// NewTap wraps src, sending 20ms PCM frames to out without blocking.
func NewTap(src beep.Streamer, out chan<- []int16) *Tap {
	return &Tap{src: src, w: audio.NewFrameWriter(out)}
}

func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.src.Stream(samples)
	t.w.Write(samples[:n])
	return n, ok
}

func (t *Tap) Err() error { return t.src.Err() }

func frameChan() chan []int16 {
	return make(chan []int16, 100)
}
