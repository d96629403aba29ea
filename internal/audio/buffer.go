package audio

import (
	"time"

	"github.com/faiface/beep"
)

// resampleQuality is passed to beep.Resample when a stem is not at SampleRate.
const resampleQuality = 4

// Buffer holds the decoded audio of one stem. It is never written to after
// construction, so any number of voices may read from it.
type Buffer struct {
	buf *beep.Buffer
}

// NewBuffer drains s into a Buffer, resampling to SampleRate if needed.
func NewBuffer(s beep.Streamer, from beep.Format) *Buffer {
	if from.SampleRate != 0 && from.SampleRate != Format.SampleRate {
		s = beep.Resample(resampleQuality, from.SampleRate, Format.SampleRate, s)
	}
	b := beep.NewBuffer(Format)
	b.Append(s)
	return &Buffer{buf: b}
}

// FromFrames builds a Buffer from stereo frames already at SampleRate.
func FromFrames(frames [][2]float64) *Buffer {
	return NewBuffer(&frameStreamer{frames: frames}, Format)
}

// Len returns the number of sample frames.
func (b *Buffer) Len() int {
	return b.buf.Len()
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	return Duration(b.buf.Len())
}

// Streamer returns a fresh reader over the whole buffer.
func (b *Buffer) Streamer() beep.StreamSeeker {
	return b.buf.Streamer(0, b.buf.Len())
}

type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (f *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= len(f.frames) {
		return 0, false
	}
	n := copy(samples, f.frames[f.pos:])
	f.pos += n
	return n, true
}

func (f *frameStreamer) Err() error { return nil }
