package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedFormat is returned for containers no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decode reads an encoded stem. The container is picked from name's extension:
// mp3 and wav are decoded in-process, flac and ogg go through FFmpeg.
// Cancelling ctx kills a running FFmpeg.
func Decode(ctx context.Context, r io.Reader, name string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp3":
		return DecodeMP3(r)
	case ".wav":
		return DecodeWAV(r)
	case ".flac", ".ogg", ".opus", ".m4a":
		return DecodeFFmpeg(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (*Buffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("mp3 read: %w", err)
	}
	frames := bytesToFrames(pcm)
	if len(frames) == 0 {
		return nil, errors.New("mp3 decode: no audio frames")
	}
	from := beep.Format{SampleRate: beep.SampleRate(d.SampleRate()), NumChannels: 2, Precision: 2}
	return NewBuffer(&frameStreamer{frames: frames}, from), nil
}

// DecodeWAV decodes a RIFF/WAVE stream.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	defer s.Close()
	return NewBuffer(s, format), nil
}

// DecodeFFmpeg pipes r through FFmpeg and reads back raw PCM at the engine
// rate, for containers without a native Go decoder.
func DecodeFFmpeg(ctx context.Context, r io.Reader) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = r
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return FromFrames(bytesToFrames(out)), nil
}

// bytesToFrames converts interleaved little-endian int16 stereo to frames.
func bytesToFrames(pcm []byte) [][2]float64 {
	frames := make([][2]float64, len(pcm)/4)
	for i := range frames {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		frames[i][0] = float64(l) / 32768
		frames[i][1] = float64(r) / 32768
	}
	return frames
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FramesToPCM interleaves stereo frames into int16 samples, clipping at full scale.
func FramesToPCM(frames [][2]float64) []int16 {
	out := make([]int16, len(frames)*Channels)
	for i, f := range frames {
		out[i*2] = toInt16(f[0])
		out[i*2+1] = toInt16(f[1])
	}
	return out
}

func toInt16(v float64) int16 {
	v *= 32768
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
