package stem

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stem identifies one isolated track of a song.
type Stem uint8

const (
	Vocals Stem = iota
	Drums
	Bass
	Instruments
)

// All lists every stem in display order.
var All = []Stem{Vocals, Drums, Bass, Instruments}

// Count is the number of stems a song is made of.
const Count = 4

var names = [Count]string{"vocals", "drums", "bass", "instruments"}

func (s Stem) String() string {
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("stem(%d)", uint8(s))
}

// Valid reports whether s is one of the known stems.
func (s Stem) Valid() bool {
	return int(s) < Count
}

// Parse resolves a stem name (case-insensitive).
func Parse(name string) (Stem, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Stem(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stem %q", name)
}

// Set is a set of stems stored as a bitmask.
type Set uint8

// NewSet builds a set from the given stems.
func NewSet(stems ...Stem) Set {
	var s Set
	for _, st := range stems {
		s = s.Add(st)
	}
	return s
}

// Full is the set of every stem.
func Full() Set {
	return NewSet(All...)
}

func (s Set) Add(st Stem) Set    { return s | 1<<st }
func (s Set) Remove(st Stem) Set { return s &^ (1 << st) }
func (s Set) Has(st Stem) bool   { return s&(1<<st) != 0 }
func (s Set) Empty() bool        { return s == 0 }

// Intersect returns the stems present in both sets.
func (s Set) Intersect(o Set) Set { return s & o }

// Len returns the number of stems in the set.
func (s Set) Len() int {
	n := 0
	for _, st := range All {
		if s.Has(st) {
			n++
		}
	}
	return n
}

// Slice returns the members in display order.
func (s Set) Slice() []Stem {
	out := make([]Stem, 0, Count)
	for _, st := range All {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// Names returns the member names in display order.
func (s Set) Names() []string {
	out := make([]string, 0, Count)
	for _, st := range s.Slice() {
		out = append(out, st.String())
	}
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.Names(), " ") + "]"
}

// MarshalJSON encodes the set as a list of stem names.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of stem names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	var out Set
	for _, name := range list {
		st, err := Parse(name)
		if err != nil {
			return err
		}
		out = out.Add(st)
	}
	*s = out
	return nil
}
