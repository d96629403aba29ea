package audio

import (
	"time"

	"github.com/faiface/beep"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16 // PCM output; stems are held at StorePrecision
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// StorePrecision is the byte width of a sample inside a Buffer. beep.Buffer
// quantizes to its format's precision, so stems are held at 32 bits.
const StorePrecision = 4

// Format is the format every stem is decoded and mixed in.
var Format = beep.Format{
	SampleRate:  SampleRate,
	NumChannels: Channels,
	Precision:   StorePrecision,
}

// Samples converts a duration to a sample count at the engine rate.
func Samples(d time.Duration) int {
	return Format.SampleRate.N(d)
}

// Duration converts a sample count to a duration at the engine rate.
func Duration(n int) time.Duration {
	return Format.SampleRate.D(n)
}
