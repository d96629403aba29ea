package stream

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFFmpegArgsUseBitrate(t *testing.T) {
	h := NewHTTPHandler(NewBroadcaster(zerolog.Nop()), 320, zerolog.Nop())
	args := h.ffmpegArgs()
	i := slices.Index(args, "-b:a")
	if i < 0 || args[i+1] != "320k" {
		t.Errorf("args = %v, want -b:a 320k", args)
	}
	if j := slices.Index(args, "-ar"); j < 0 || args[j+1] != "48000" {
		t.Errorf("args = %v, want -ar 48000", args)
	}

	if d := NewHTTPHandler(NewBroadcaster(zerolog.Nop()), 0, zerolog.Nop()); d.bitrate != 192 {
		t.Errorf("default bitrate = %d, want 192", d.bitrate)
	}
}

func TestWebRTCHandlerRejectsBadRequests(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster(zerolog.Nop()), 0, zerolog.Nop())

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"preflight", http.MethodOptions, "", http.StatusOK},
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"garbage", http.MethodPost, "{", http.StatusBadRequest},
		{"empty sdp", http.MethodPost, `{"type":"offer","sdp":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/offer", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d after rejected offers", h.PeerCount())
	}
}
