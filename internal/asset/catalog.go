package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Title names one song of the catalog.
type Title struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type catalogFile struct {
	Songs []Title `yaml:"songs"`
}

// DefaultTitles is used when no catalog file is configured.
var DefaultTitles = []Title{
	{ID: "songA", Name: "David Guetta - Titanium"},
	{ID: "songB", Name: "Doechii - Anxiety"},
	{ID: "songC", Name: "Ed Sheeran - Shape of You"},
	{ID: "songD", Name: "Charlie Puth - We Dont Talk Anymore"},
}

// Catalog maps song ids to display names.
type Catalog struct {
	mu     sync.RWMutex
	titles []Title
}

// NewCatalog creates a catalog holding titles.
func NewCatalog(titles []Title) *Catalog {
	c := &Catalog{}
	c.Replace(titles)
	return c
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) ([]Title, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Songs) == 0 {
		return nil, errors.New("parse catalog: no songs")
	}
	seen := make(map[string]bool, len(f.Songs))
	for i, t := range f.Songs {
		if !validSongID(t.ID) {
			return nil, fmt.Errorf("catalog entry %d: invalid id %q", i, t.ID)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if f.Songs[i].Name == "" {
			f.Songs[i].Name = t.ID
		}
	}
	return f.Songs, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	titles, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(titles), nil
}

func readCatalog(path string) ([]Title, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(titles []Title) {
	cp := make([]Title, len(titles))
	copy(cp, titles)
	c.mu.Lock()
	c.titles = cp
	c.mu.Unlock()
}

// Titles returns a copy of the catalog in file order.
func (c *Catalog) Titles() []Title {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Title, len(c.titles))
	copy(out, c.titles)
	return out
}

// Has reports whether id is listed.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.titles {
		if t.ID == id {
			return true
		}
	}
	return false
}

// DisplayName returns the song's name, or id itself if it is not listed.
func (c *Catalog) DisplayName(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.titles {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}

// Watch reloads the catalog whenever path changes. Invalid files are logged
// and the previous contents kept. Blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, path string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "catalog").Str("path", path).Logger()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			titles, err := readCatalog(path)
			if err != nil {
				log.Warn().Err(err).Msg("catalog reload failed, keeping previous")
				continue
			}
			c.Replace(titles)
			log.Info().Int("songs", len(titles)).Msg("catalog reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}
