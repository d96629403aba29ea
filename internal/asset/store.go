// Package asset resolves a song identifier to one decoded buffer per stem.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

var (
	// ErrNotFound means the stem file does not exist in the store.
	ErrNotFound = errors.New("asset not found")
	// ErrDecode means the stem file exists but could not be decoded.
	ErrDecode = errors.New("asset decode failed")
	// ErrAssetLoad marks a failed song load; every LoadError matches it.
	ErrAssetLoad = errors.New("asset load failed")
)

// Store fetches and decodes a single stem of a song.
type Store interface {
	Fetch(ctx context.Context, songID string, s stem.Stem) (*audio.Buffer, error)
}

// LoadError reports which stem broke a song load.
type LoadError struct {
	Song string
	Stem stem.Stem
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load/decode %s of %q: %v", e.Stem, e.Song, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrAssetLoad, e.Err}
}

// Song is a fully loaded song: one buffer for every stem.
type Song struct {
	ID      string
	Buffers map[stem.Stem]*audio.Buffer
}

// LoadSong fetches every stem in parallel. Either all stems load or none are
// returned; the first failure cancels the remaining fetches.
func LoadSong(ctx context.Context, store Store, songID string) (*Song, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	buffers := make(map[stem.Stem]*audio.Buffer, stem.Count)

	for _, st := range stem.All {
		g.Go(func() error {
			buf, err := store.Fetch(gctx, songID, st)
			if err != nil {
				return &LoadError{Song: songID, Stem: st, Err: err}
			}
			if buf == nil || buf.Len() == 0 {
				return &LoadError{Song: songID, Stem: st, Err: fmt.Errorf("%w: empty audio", ErrDecode)}
			}
			mu.Lock()
			buffers[st] = buf
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Song{ID: songID, Buffers: buffers}, nil
}
