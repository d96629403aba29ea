package engine

import (
	"testing"
	"time"

	"github.com/satindergrewal/stemdeck/internal/stem"
)

type gainCall struct {
	stem   stem.Stem
	target float64
	ramp   time.Duration
}

type fakeGains struct {
	calls []gainCall
}

func (f *fakeGains) SetGain(st stem.Stem, target float64, ramp time.Duration) {
	f.calls = append(f.calls, gainCall{st, target, ramp})
}

func TestActivityPairsChangesWithRamps(t *testing.T) {
	g := &fakeGains{}
	a := NewActivity(g, 50*time.Millisecond)

	a.Activate(stem.Drums)
	a.Deactivate(stem.Drums)
	a.Activate(stem.Vocals)

	want := []gainCall{
		{stem.Drums, 1, 50 * time.Millisecond},
		{stem.Drums, 0, 50 * time.Millisecond},
		{stem.Vocals, 1, 50 * time.Millisecond},
	}
	if len(g.calls) != len(want) {
		t.Fatalf("got %d gain calls, want %d", len(g.calls), len(want))
	}
	for i := range want {
		if g.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, g.calls[i], want[i])
		}
	}
	if !a.IsActive(stem.Vocals) || a.IsActive(stem.Drums) || a.ActiveCount() != 1 {
		t.Errorf("active = %v", a.Active())
	}
}

func TestFullMixIsAdditive(t *testing.T) {
	g := &fakeGains{}
	a := NewActivity(g, time.Millisecond)
	a.Reset(stem.NewSet(stem.Bass))

	changed := a.FullMix(stem.Full())
	if changed != stem.NewSet(stem.Vocals, stem.Drums, stem.Instruments) {
		t.Errorf("changed = %v", changed)
	}
	if a.Active() != stem.Full() {
		t.Errorf("active = %v, want full", a.Active())
	}
	for _, c := range g.calls {
		if c.target != 1 || c.stem == stem.Bass {
			t.Errorf("unexpected gain call %+v", c)
		}
	}

	n := len(g.calls)
	if changed := a.FullMix(stem.Full()); !changed.Empty() {
		t.Errorf("second full mix changed %v", changed)
	}
	if len(g.calls) != n || a.Active() != stem.Full() {
		t.Error("second full mix was not a no-op")
	}
}

func TestFullMixRespectsAvailable(t *testing.T) {
	a := NewActivity(&fakeGains{}, 0)
	a.FullMix(stem.NewSet(stem.Vocals, stem.Bass))
	if a.Active() != stem.NewSet(stem.Vocals, stem.Bass) {
		t.Errorf("active = %v", a.Active())
	}
}

func TestResetDropClearDoNotRamp(t *testing.T) {
	g := &fakeGains{}
	a := NewActivity(g, time.Millisecond)
	a.Reset(stem.Full())
	a.Drop(stem.Vocals)
	if a.ActiveCount() != 3 {
		t.Errorf("count = %d, want 3", a.ActiveCount())
	}
	a.Clear()
	if a.ActiveCount() != 0 {
		t.Errorf("count after Clear = %d", a.ActiveCount())
	}
	if len(g.calls) != 0 {
		t.Errorf("got %d gain calls, want none", len(g.calls))
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		state  State
		active stem.Set
		want   string
	}{
		{Idle, 0, "Idle"},
		{Loading, 0, "Idle"},
		{Ready, 0, "Ready"},
		{Playing, 0, "Playing (Silent - Ending...)"},
		{Playing, stem.NewSet(stem.Drums), "Playing (1 Stem)"},
		{Playing, stem.NewSet(stem.Drums, stem.Vocals), "Playing (2 Stems)"},
		{Playing, stem.NewSet(stem.Drums, stem.Vocals, stem.Bass), "Playing (3 Stems)"},
		{Playing, stem.Full(), "Playing (Full Mix)"},
	}
	for _, tt := range tests {
		a := NewActivity(&fakeGains{}, 0)
		a.Reset(tt.active)
		if got := a.StatusText(tt.state); got != tt.want {
			t.Errorf("StatusText(%v, %v) = %q, want %q", tt.state, tt.active, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{999 * time.Millisecond, "0:00"},
		{9500 * time.Millisecond, "0:09"},
		{61 * time.Second, "1:01"},
		{10*time.Minute + 5*time.Second, "10:05"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.d); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
