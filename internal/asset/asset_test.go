package asset

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/audio"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

type fakeStore struct {
	fail  map[stem.Stem]error
	calls atomic.Int32
}

func (f *fakeStore) Fetch(ctx context.Context, songID string, st stem.Stem) (*audio.Buffer, error) {
	f.calls.Add(1)
	if err := f.fail[st]; err != nil {
		return nil, err
	}
	return audio.FromFrames(make([][2]float64, 480)), nil
}

func wavFile(frames int) []byte {
	data := make([]byte, frames*4)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], uint16(4096))
	}
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint32(audio.SampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(audio.SampleRate*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func writeSong(t *testing.T, root, id string, stems ...stem.Stem) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, st := range stems {
		if err := os.WriteFile(filepath.Join(dir, st.String()+".wav"), wavFile(960), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadSongAllStems(t *testing.T) {
	store := &fakeStore{}
	song, err := LoadSong(context.Background(), store, "songA")
	if err != nil {
		t.Fatalf("LoadSong: %v", err)
	}
	if song.ID != "songA" || len(song.Buffers) != stem.Count {
		t.Errorf("got %q with %d buffers", song.ID, len(song.Buffers))
	}
	if store.calls.Load() != stem.Count {
		t.Errorf("fetched %d stems, want %d", store.calls.Load(), stem.Count)
	}
}

func TestLoadSongRejectsPartial(t *testing.T) {
	store := &fakeStore{fail: map[stem.Stem]error{stem.Bass: ErrNotFound}}
	song, err := LoadSong(context.Background(), store, "songB")
	if song != nil {
		t.Fatalf("partial song returned: %+v", song)
	}
	if !errors.Is(err, ErrAssetLoad) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrAssetLoad wrapping ErrNotFound", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Stem != stem.Bass || le.Song != "songB" {
		t.Errorf("LoadError = %+v", le)
	}
}

type emptyStore struct{}

func (emptyStore) Fetch(context.Context, string, stem.Stem) (*audio.Buffer, error) {
	return audio.FromFrames(nil), nil
}

func TestLoadSongRejectsEmptyAudio(t *testing.T) {
	_, err := LoadSong(context.Background(), emptyStore{}, "songC")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestFSStore(t *testing.T) {
	root := t.TempDir()
	writeSong(t, root, "songA", stem.All...)
	store := NewFSStore(root)

	buf, err := store.Fetch(context.Background(), "songA", stem.Drums)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if buf.Len() != 960 {
		t.Errorf("Len = %d, want 960", buf.Len())
	}

	song, err := LoadSong(context.Background(), store, "songA")
	if err != nil || len(song.Buffers) != stem.Count {
		t.Fatalf("LoadSong: %v", err)
	}
}

func TestFSStoreMissingStem(t *testing.T) {
	root := t.TempDir()
	writeSong(t, root, "songB", stem.Vocals, stem.Drums, stem.Instruments)
	store := NewFSStore(root)

	_, err := LoadSong(context.Background(), store, "songB")
	var le *LoadError
	if !errors.As(err, &le) || le.Stem != stem.Bass || !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want bass not found", err)
	}
}

func TestFSStoreRejectsBadIDs(t *testing.T) {
	store := NewFSStore(t.TempDir())
	for _, id := range []string{"", ".", "..", "../etc", `a\b`} {
		if _, err := store.Fetch(context.Background(), id, stem.Vocals); !errors.Is(err, ErrNotFound) {
			t.Errorf("Fetch(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestFSStoreDecodeError(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "songD")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vocals.wav"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFSStore(root).Fetch(context.Background(), "songD", stem.Vocals)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestHTTPStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stems/songA/drums.mp3":
			w.Write([]byte("not really an mp3"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL + "/stems/")

	if _, err := store.Fetch(context.Background(), "songA", stem.Vocals); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing stem err = %v, want ErrNotFound", err)
	}
	if _, err := store.Fetch(context.Background(), "songA", stem.Drums); !errors.Is(err, ErrDecode) {
		t.Errorf("bad body err = %v, want ErrDecode", err)
	}
}

func TestHTTPStoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL).Fetch(context.Background(), "songA", stem.Bass)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want a plain HTTP error", err)
	}
}

func TestParseCatalog(t *testing.T) {
	titles, err := ParseCatalog([]byte(`
songs:
  - id: songA
    name: David Guetta - Titanium
  - id: songX
`))
	if err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(titles)
	if got := c.DisplayName("songA"); got != "David Guetta - Titanium" {
		t.Errorf("DisplayName(songA) = %q", got)
	}
	if got := c.DisplayName("songX"); got != "songX" {
		t.Errorf("unnamed entry = %q, want id", got)
	}
	if got := c.DisplayName("nope"); got != "nope" {
		t.Errorf("unknown id = %q, want id", got)
	}
	if !c.Has("songX") || c.Has("nope") {
		t.Error("Has mismatch")
	}
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "songs: [unterminated"},
		{"empty file", ""},
		{"no songs", "songs: []\n"},
		{"empty id", "songs:\n  - name: x\n"},
		{"path id", "songs:\n  - id: ../x\n"},
		{"duplicate", "songs:\n  - id: a\n  - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := NewCatalog(DefaultTitles)
	if len(c.Titles()) != 4 {
		t.Fatalf("got %d titles", len(c.Titles()))
	}
	if c.DisplayName("songB") != "Doechii - Anxiety" {
		t.Errorf("songB = %q", c.DisplayName("songB"))
	}
}

func TestCatalogWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("songs:\n  - id: songA\n    name: First\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, path, zerolog.Nop()) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("songs:\n  - id: songA\n    name: Second\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for c.DisplayName("songA") != "Second" {
		select {
		case <-deadline:
			t.Fatalf("catalog not reloaded, name = %q", c.DisplayName("songA"))
		case <-time.After(20 * time.Millisecond):
		}
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestCatalogWatchKeepsPreviousOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("songs:\n  - id: songA\n    name: First\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	var out lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, path, zerolog.New(&out)) }()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("songs: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for !strings.Contains(out.String(), "catalog reload failed") {
		select {
		case <-deadline:
			t.Fatalf("no reload failure logged, log = %q", out.String())
		case <-time.After(20 * time.Millisecond):
		}
	}
	if !strings.Contains(out.String(), `"component":"catalog"`) {
		t.Errorf("watch log lacks component field: %q", out.String())
	}
	if got := c.DisplayName("songA"); got != "First" {
		t.Errorf("DisplayName = %q after bad reload, want First", got)
	}
}
