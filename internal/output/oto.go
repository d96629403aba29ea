package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// Oto plays through an oto v3 context in float32 little-endian format.
type Oto struct {
	reader *Float32Reader
	frames chan []int16
	buffer time.Duration
	log    zerolog.Logger
}

func newOto(src beep.Streamer, buffer time.Duration, log zerolog.Logger) *Oto {
	frames := frameChan()
	return &Oto{
		reader: NewFloat32Reader(NewTap(src, frames)),
		frames: frames,
		buffer: buffer,
		log:    log,
	}
}

func (o *Oto) Name() string            { return "oto" }
func (o *Oto) Frames() <-chan []int16 { return o.frames }

func (o *Oto) Run(ctx context.Context) error {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   o.buffer,
	})
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(o.reader)
	player.Play()
	o.log.Info().Dur("buffer", o.buffer).Msg("oto playing")

	<-ctx.Done()
	return player.Close()
}

// Float32Reader renders a streamer into interleaved float32LE bytes.
type Float32Reader struct {
	src beep.Streamer
	buf [][2]float64
}

// NewFloat32Reader wraps src as an io.Reader.
func NewFloat32Reader(src beep.Streamer) *Float32Reader {
	return &Float32Reader{src: src}
}

// Read fills p with whole stereo frames; a trailing partial frame is left
// for the next call.
func (r *Float32Reader) Read(p []byte) (int, error) {
	const frameBytes = 2 * 4
	n := len(p) / frameBytes
	if n == 0 {
		return 0, nil
	}
	if cap(r.buf) < n {
		r.buf = make([][2]float64, n)
	}
	buf := r.buf[:n]
	got, _ := r.src.Stream(buf)
	for i := got; i < n; i++ {
		buf[i] = [2]float64{}
	}
	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*frameBytes:], math.Float32bits(float32(s[0])))
		binary.LittleEndian.PutUint32(p[i*frameBytes+4:], math.Float32bits(float32(s[1])))
	}
	return n * frameBytes, nil
}
