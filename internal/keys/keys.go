// Package keys is a single-keystroke command surface for a terminal:
// v/d/b/i toggle a stem, f plays the full mix, r restarts, x resets and q
// quits.
package keys

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/satindergrewal/stemdeck/internal/stem"
)

// ErrNotTerminal is returned by Run when stdin is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Controller is the subset of the engine keys can drive.
type Controller interface {
	ToggleStem(st stem.Stem) error
	ToggleFullMix() error
	Restart() error
	Reset() error
}

const ctrlC = 3

var stemKeys = map[rune]stem.Stem{
	'v': stem.Vocals,
	'd': stem.Drums,
	'b': stem.Bass,
	'i': stem.Instruments,
}

// Help is a one-line summary of the bindings.
const Help = "keys: [v]ocals [d]rums [b]ass [i]nstruments [f]ull mix [r]estart [x] reset [q]uit"

// Dispatch applies one keystroke. It reports whether the key asks to quit
// and ignores keys without a binding.
func Dispatch(ctl Controller, key rune) (quit bool, err error) {
	if key == ctrlC {
		return true, nil
	}
	key = unicode.ToLower(key)
	if st, ok := stemKeys[key]; ok {
		return false, ctl.ToggleStem(st)
	}
	switch key {
	case 'f':
		return false, ctl.ToggleFullMix()
	case 'r':
		return false, ctl.Restart()
	case 'x':
		return false, ctl.Reset()
	case 'q':
		return true, nil
	}
	return false, nil
}

// Serve reads keystrokes from r until it ends, a quit key is read or ctx is
// cancelled. quit is called for a quit key.
func Serve(ctx context.Context, r io.Reader, ctl Controller, quit func(), logger zerolog.Logger) error {
	log := logger.With().Str("component", "keys").Logger()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	keys := make(chan rune)
	errc := make(chan error, 1)

	go func() {
		br := bufio.NewReader(r)
		for {
			k, _, err := br.ReadRune()
			if err != nil {
				errc <- err
				return
			}
			select {
			case keys <- k:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read key: %w", err)
		case k := <-keys:
			stop, err := Dispatch(ctl, k)
			if err != nil {
				log.Debug().Err(err).Str("key", string(k)).Msg("key ignored")
			}
			if stop {
				if quit != nil {
					quit()
				}
				return nil
			}
		}
	}
}

// Run puts stdin into raw mode and serves keystrokes from it, restoring the
// terminal on return.
func Run(ctx context.Context, ctl Controller, quit func(), logger zerolog.Logger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	fmt.Fprint(os.Stderr, Help+"\r\n")
	return Serve(ctx, os.Stdin, ctl, quit, logger)
}
