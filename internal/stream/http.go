package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
)

// HTTPHandler serves the live mix as a chunked MP3 stream.
// Each connection spawns an FFmpeg process to encode PCM -> MP3 in real-time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	bitrate     int // kbps
	log         zerolog.Logger
}

// NewHTTPHandler creates an HTTP stream handler encoding at bitrate kbps.
func NewHTTPHandler(b *Broadcaster, bitrate int, logger zerolog.Logger) *HTTPHandler {
	if bitrate <= 0 {
		bitrate = 192
	}
	return &HTTPHandler{
		broadcaster: b,
		bitrate:     bitrate,
		log:         logger.With().Str("component", "http-stream").Logger(),
	}
}

// ffmpegArgs builds the PCM stdin -> MP3 stdout pipeline.
func (h *HTTPHandler) ffmpegArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", fmt.Sprint(audio.SampleRate),
		"-ac", fmt.Sprint(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", h.bitrate),
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "stemdeck")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", h.ffmpegArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.log.Error().Err(err).Msg("stdin pipe")
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.log.Error().Err(err).Msg("stdout pipe")
		return
	}

	if err := cmd.Start(); err != nil {
		h.log.Error().Err(err).Msg("ffmpeg start")
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.log.Info().Str("remote", r.RemoteAddr).Int("listeners", h.broadcaster.ListenerCount()).Msg("listener connected")
	defer h.log.Info().Str("remote", r.RemoteAddr).Msg("listener disconnected")

	// Feed PCM frames to FFmpeg
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame := <-listener.C:
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	// Read MP3 from FFmpeg and write to HTTP response
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Warn().Err(err).Msg("ffmpeg read")
			}
			break
		}
	}

	cancel()
	cmd.Wait()
}
