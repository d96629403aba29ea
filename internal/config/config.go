package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Output backends.
const (
	OutputSpeaker   = "speaker"
	OutputOto       = "oto"
	OutputPortAudio = "portaudio"
	OutputHeadless  = "headless"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Addr string
	Port int

	// Assets
	Assets  string // directory or http(s) base URL
	Catalog string // optional YAML catalog file

	// Playback
	Output      string
	Fade        time.Duration // mute/unmute ramp
	EndDebounce time.Duration // wait after the last voice ends
	Tick        time.Duration // elapsed-time updates while playing
	Buffer      time.Duration // output device buffer
	MasterGain  float64

	// Remote listening
	MP3Bitrate  int // kbps
	OpusBitrate int // bps

	// Logging
	LogLevel  string
	LogPretty bool

	Keyboard bool
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is read first if present; variables
// already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr: envStr("STEMDECK_ADDR", ""),
		Port: envInt("STEMDECK_PORT", 8080),

		Assets:  envStr("STEMDECK_ASSETS", "public/audio"),
		Catalog: envStr("STEMDECK_CATALOG", ""),

		Output:      strings.ToLower(envStr("STEMDECK_OUTPUT", OutputSpeaker)),
		Fade:        envMillis("STEMDECK_FADE", 50),
		EndDebounce: envMillis("STEMDECK_END_DEBOUNCE", 50),
		Tick:        envMillis("STEMDECK_TICK", 500),
		Buffer:      envMillis("STEMDECK_BUFFER", 100),
		MasterGain:  envFloat("STEMDECK_MASTER_GAIN", 1.0),

		MP3Bitrate:  envInt("STEMDECK_MP3_BITRATE", 192),
		OpusBitrate: envInt("STEMDECK_OPUS_BITRATE", 128000),

		LogLevel:  envStr("STEMDECK_LOG_LEVEL", "info"),
		LogPretty: envBool("STEMDECK_LOG_PRETTY", true),

		Keyboard: envBool("STEMDECK_KEYBOARD", true),
	}
}

// ListenAddr is the host:port the HTTP server binds.
func (c Config) ListenAddr() string {
	return c.Addr + ":" + strconv.Itoa(c.Port)
}

// RemoteAssets reports whether Assets points at an HTTP server.
func (c Config) RemoteAssets() bool {
	return strings.HasPrefix(c.Assets, "http://") || strings.HasPrefix(c.Assets, "https://")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
