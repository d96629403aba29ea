package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

// Extensions are tried in order when looking up a stem file.
var Extensions = []string{".mp3", ".wav", ".flac", ".ogg"}

// FSStore reads stems laid out as <root>/<songID>/<stem>.<ext>.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// Fetch implements Store.
func (s *FSStore) Fetch(ctx context.Context, songID string, st stem.Stem) (*audio.Buffer, error) {
	if !validSongID(songID) {
		return nil, fmt.Errorf("%w: invalid song id %q", ErrNotFound, songID)
	}

	for _, ext := range Extensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.root, songID, st.String()+ext)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		buf, err := audio.Decode(ctx, f, path)
		f.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, songID, st)
}

func validSongID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
