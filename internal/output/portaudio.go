package output

import (
	"context"
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// PortAudio plays through the default PortAudio device using blocking writes.
type PortAudio struct {
	src    beep.Streamer
	frames chan []int16
	block  int
	log    zerolog.Logger
}

func newPortAudio(src beep.Streamer, buffer time.Duration, log zerolog.Logger) *PortAudio {
	frames := frameChan()
	return &PortAudio{
		src:    NewTap(src, frames),
		frames: frames,
		block:  audio.Samples(buffer),
		log:    log,
	}
}

func (p *PortAudio) Name() string            { return "portaudio" }
func (p *PortAudio) Frames() <-chan []int16 { return p.frames }

func (p *PortAudio) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	out := make([]float32, p.block*audio.Channels)
	stream, err := portaudio.OpenDefaultStream(0, audio.Channels, float64(audio.SampleRate), p.block, out)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()
	p.log.Info().Int("block", p.block).Msg("portaudio playing")

	buf := make([][2]float64, p.block)
	for ctx.Err() == nil {
		fill(p.src, buf, out)
		if err := stream.Write(); err != nil {
			p.log.Warn().Err(err).Msg("write audio")
		}
	}
	return nil
}

// fill renders len(buf) frames from src into interleaved out.
func fill(src beep.Streamer, buf [][2]float64, out []float32) {
	n, _ := src.Stream(buf)
	for i := n; i < len(buf); i++ {
		buf[i] = [2]float64{}
	}
	for i, s := range buf {
		out[2*i] = float32(s[0])
		out[2*i+1] = float32(s[1])
	}
}
