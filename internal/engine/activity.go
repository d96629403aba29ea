package engine

import (
	"time"

	"github.com/satindergrewal/stemdeck/internal/stem"
)

// GainSetter is the part of the mix graph the activity controller drives.
type GainSetter interface {
	SetGain(st stem.Stem, target float64, ramp time.Duration)
}

// Activity is the record of which stems are meant to be audible. Every
// change to the set is paired with the matching gain ramp.
type Activity struct {
	gains  GainSetter
	fade   time.Duration
	active stem.Set
}

// NewActivity creates an empty activity set fading over fade.
func NewActivity(gains GainSetter, fade time.Duration) *Activity {
	return &Activity{gains: gains, fade: fade}
}

// Activate fades st in.
func (a *Activity) Activate(st stem.Stem) {
	a.active = a.active.Add(st)
	a.gains.SetGain(st, 1, a.fade)
}

// Deactivate fades st out.
func (a *Activity) Deactivate(st stem.Stem) {
	a.active = a.active.Remove(st)
	a.gains.SetGain(st, 0, a.fade)
}

// FullMix activates every stem of available that is not already active and
// returns the stems it changed. Active stems are never deactivated.
func (a *Activity) FullMix(available stem.Set) stem.Set {
	var changed stem.Set
	for _, st := range available.Slice() {
		if !a.active.Has(st) {
			a.Activate(st)
			changed = changed.Add(st)
		}
	}
	return changed
}

func (a *Activity) IsActive(st stem.Stem) bool { return a.active.Has(st) }
func (a *Activity) ActiveCount() int           { return a.active.Len() }
func (a *Activity) Active() stem.Set           { return a.active }

// Reset replaces the set without issuing gain commands. Used when a new
// session already starts with these gains.
func (a *Activity) Reset(s stem.Set) { a.active = s }

// Drop removes st without a ramp, for a voice that has already ended.
func (a *Activity) Drop(st stem.Stem) { a.active = a.active.Remove(st) }

// Clear empties the set.
func (a *Activity) Clear() { a.active = 0 }

// StatusText derives the status label from the transport state.
func (a *Activity) StatusText(state State) string {
	switch state {
	case Ready:
		return TextReady
	case Playing:
		return PlayingText(a.active.Len())
	default:
		return TextIdle
	}
}
