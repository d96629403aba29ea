package output

import (
	"context"

	"github.com/faiface/beep"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// Headless renders in real time without a sound device, so the mix can
// still be heard through the remote streams.
type Headless struct {
	pacer *audio.Pacer
	log   zerolog.Logger
}

func newHeadless(src beep.Streamer, log zerolog.Logger) *Headless {
	return &Headless{pacer: audio.NewPacer(src), log: log}
}

func (h *Headless) Name() string            { return "headless" }
func (h *Headless) Frames() <-chan []int16 { return h.pacer.Frames() }

func (h *Headless) Run(ctx context.Context) error {
	h.log.Info().Msg("rendering without a sound device")
	h.pacer.Run(ctx)
	return nil
}
