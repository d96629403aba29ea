package output

import (
	"context"
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// Speaker plays through beep's speaker package.
type Speaker struct {
	tap    *Tap
	frames chan []int16
	buffer int
	log    zerolog.Logger
}

func newSpeaker(src beep.Streamer, buffer time.Duration, log zerolog.Logger) *Speaker {
	frames := frameChan()
	return &Speaker{
		tap:    NewTap(src, frames),
		frames: frames,
		buffer: audio.Samples(buffer),
		log:    log,
	}
}

func (s *Speaker) Name() string            { return "speaker" }
func (s *Speaker) Frames() <-chan []int16 { return s.frames }

func (s *Speaker) Run(ctx context.Context) error {
	if err := speaker.Init(audio.Format.SampleRate, s.buffer); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(s.tap)
	s.log.Info().Int("buffer_samples", s.buffer).Msg("speaker playing")

	<-ctx.Done()
	speaker.Clear()
	speaker.Close()
	return nil
}
