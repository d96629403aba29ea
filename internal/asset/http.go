package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

// HTTPStore downloads stems from <baseURL>/<songID>/<stem><ext>.
type HTTPStore struct {
	baseURL string
	ext     string
	http    *http.Client
}

// NewHTTPStore creates a store for an audio folder served over HTTP.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		ext:     ".mp3",
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch implements Store.
func (s *HTTPStore) Fetch(ctx context.Context, songID string, st stem.Stem) (*audio.Buffer, error) {
	if !validSongID(songID) {
		return nil, fmt.Errorf("%w: invalid song id %q", ErrNotFound, songID)
	}
	name := st.String() + s.ext
	u := s.baseURL + "/" + url.PathEscape(songID) + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrNotFound, resp.StatusCode, name)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP error status %d for %s", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}

	buf, err := audio.Decode(ctx, bytes.NewReader(body), name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return buf, nil
}
