package loop

// maxHalvings bounds how far below the master length a take may quantise.
const maxHalvings = 3

// Clock is the shared timing reference for a scene. The first take to finish
// recording fixes the master length; later takes quantise against it. Takes
// bind to the clock while they exist and the master length is released once
// the last one is ditched.
type Clock struct {
	master int
	phase  int
	bound  int
}

// NewClock creates an unfixed clock.
func NewClock() *Clock {
	return &Clock{}
}

// IsFixed reports whether a master length is set.
func (c *Clock) IsFixed() bool { return c.master > 0 }

// MasterLength returns the master length, 0 when unfixed.
func (c *Clock) MasterLength() int { return c.master }

// Phase returns the position within the master cycle.
func (c *Clock) Phase() int { return c.phase }

// Bound returns the number of takes holding the clock.
func (c *Clock) Bound() int { return c.bound }

// Fix sets the master length and restarts the cycle. It does nothing once a
// master length is set.
func (c *Clock) Fix(length int) bool {
	if c.master > 0 || length <= 0 {
		return false
	}
	c.master = length
	c.phase = 0
	return true
}

// Restore sets the master length and phase when loading a saved performance.
func (c *Clock) Restore(length, phase int) {
	if length <= 0 {
		return
	}
	c.master = length
	c.phase = wrap(phase, length)
}

// Advance moves the phase on by numSamples.
func (c *Clock) Advance(numSamples int) {
	if c.master > 0 && numSamples > 0 {
		c.phase = (c.phase + numSamples) % c.master
	}
}

// Bind registers a take.
func (c *Clock) Bind() { c.bound++ }

// Release unregisters a take and clears the master when none are left.
func (c *Clock) Release() {
	if c.bound > 0 {
		c.bound--
	}
	if c.bound == 0 {
		c.master = 0
		c.phase = 0
	}
}

// QuantiseLength snaps a recorded length to the nearest of master·k for
// k >= 1 or master/2^j for 1 <= j <= 3. Ties go to the longer candidate.
// Quantising a quantised length returns it unchanged. With no master the
// length is returned as is.
func (c *Clock) QuantiseLength(length int) int {
	if c.master <= 0 || length <= 0 {
		return length
	}

	k := (length + c.master/2) / c.master
	if k < 1 {
		k = 1
	}
	best := c.master * k
	bestDist := abs(length - best)

	for j := 1; j <= maxHalvings; j++ {
		candidate := c.master >> j
		if candidate <= 0 {
			break
		}
		if d := abs(length - candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// MasterLoopCount returns how many master cycles a length spans, at least 1.
func (c *Clock) MasterLoopCount(length int) int {
	if c.master <= 0 || length <= c.master {
		return 1
	}
	return length / c.master
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
