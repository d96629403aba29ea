package audio

// Gain is an attenuation in [0,1] that can be ramped linearly over a number
// of samples. A new ramp always starts from the momentary value, so issuing
// RampTo while another ramp is in flight replaces it without a jump.
type Gain struct {
	value  float64
	target float64
	step   float64
	left   int
}

// NewGain returns a gain resting at v.
func NewGain(v float64) *Gain {
	v = clamp01(v)
	return &Gain{value: v, target: v}
}

// Value returns the momentary gain.
func (g *Gain) Value() float64 { return g.value }

// Target returns the value the gain is heading to.
func (g *Gain) Target() float64 { return g.target }

// Ramping reports whether a ramp is still in progress.
func (g *Gain) Ramping() bool { return g.left > 0 }

// RampTo cancels any pending ramp and moves linearly from the current value
// to target over the given number of samples. samples <= 0 jumps immediately.
func (g *Gain) RampTo(target float64, samples int) {
	target = clamp01(target)
	g.target = target
	if samples <= 0 || g.value == target {
		g.value = target
		g.step = 0
		g.left = 0
		return
	}
	g.step = (target - g.value) / float64(samples)
	g.left = samples
}

// Next returns the gain for the current sample and advances by one sample.
func (g *Gain) Next() float64 {
	v := g.value
	if g.left > 0 {
		g.left--
		if g.left == 0 {
			g.value = g.target
		} else {
			g.value += g.step
		}
	}
	return v
}

// Apply scales samples in place, advancing the ramp once per frame.
func (g *Gain) Apply(samples [][2]float64) {
	if g.left == 0 {
		if g.value == 1 {
			return
		}
		for i := range samples {
			samples[i][0] *= g.value
			samples[i][1] *= g.value
		}
		return
	}
	for i := range samples {
		v := g.Next()
		samples[i][0] *= v
		samples[i][1] *= v
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
