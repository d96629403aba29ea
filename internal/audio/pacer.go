package audio

import (
	"context"
	"time"

	"github.com/faiface/beep"
)

// Pacer pulls audio from a streamer at real-time rate and emits 20ms PCM
// frames. It stands in for a sound card when running headless.
type Pacer struct {
	src     beep.Streamer
	frameCh chan []int16
}

// NewPacer creates a pacer reading from src.
func NewPacer(src beep.Streamer) *Pacer {
	return &Pacer{
		src:     src,
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pacer) Frames() <-chan []int16 {
	return p.frameCh
}

// Run renders one frame per tick. Blocks until ctx is cancelled.
func (p *Pacer) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	buf := make([][2]float64, FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, _ := p.src.Stream(buf)
		for i := n; i < len(buf); i++ {
			buf[i] = [2]float64{}
		}
		frame := FramesToPCM(buf)

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// FrameWriter regroups arbitrarily sized chunks of rendered audio into 20ms
// PCM frames. Frames are dropped if out is full, so the writer never blocks
// the render goroutine.
type FrameWriter struct {
	out     chan<- []int16
	pending [][2]float64
}

// NewFrameWriter sends complete frames to out.
func NewFrameWriter(out chan<- []int16) *FrameWriter {
	return &FrameWriter{out: out, pending: make([][2]float64, 0, FrameSize)}
}

// Write appends rendered frames and flushes every complete 20ms frame.
func (w *FrameWriter) Write(samples [][2]float64) {
	for len(samples) > 0 {
		room := FrameSize - len(w.pending)
		if room > len(samples) {
			room = len(samples)
		}
		w.pending = append(w.pending, samples[:room]...)
		samples = samples[room:]
		if len(w.pending) == FrameSize {
			select {
			case w.out <- FramesToPCM(w.pending):
			default:
			}
			w.pending = w.pending[:0]
		}
	}
}
