// Package buffer provides the sample stores used on the audio path: a growable
// circular buffer for loops and channel routing, and a single-producer
// single-consumer FIFO for pull-model audio devices.
package buffer

import "github.com/justyntemme/loopstation/pkg/framework/process"

// minGrowth is the smallest allocation made when a linear buffer first grows
const minGrowth = 1024

// Circular is a loop buffer with independent read and write cursors. It grows
// linearly up to maxCapacity until SetLength fixes a length, then wraps at
// length plus the fade margin. Writes past maxCapacity are dropped.
type Circular struct {
	data        []float32
	length      int
	fadeMargin  int
	maxCapacity int
	writePos    int
	readPos     int
	recorded    int
}

// NewCircular creates a linear buffer holding only the fade margin
func NewCircular(fadeMargin, maxCapacity int) *Circular {
	if fadeMargin < 0 {
		fadeMargin = 0
	}
	if maxCapacity < fadeMargin {
		maxCapacity = fadeMargin
	}
	return &Circular{
		data:        make([]float32, fadeMargin),
		fadeMargin:  fadeMargin,
		maxCapacity: maxCapacity,
	}
}

// NewRing creates a fixed-length ring with no fade margin
func NewRing(length int) *Circular {
	c := NewCircular(0, length)
	c.SetLength(length)
	return c
}

// EffectiveLength is the wrap modulus, or 0 while no length is fixed
func (c *Circular) EffectiveLength() int {
	if c.length == 0 {
		return 0
	}
	return c.length + c.fadeMargin
}

// Length returns the logical length
func (c *Circular) Length() int { return c.length }

// FadeMargin returns the number of samples reserved past the logical length
func (c *Circular) FadeMargin() int { return c.fadeMargin }

// Capacity returns the allocated storage in samples
func (c *Circular) Capacity() int { return len(c.data) }

// MaxCapacity returns the hard storage limit
func (c *Circular) MaxCapacity() int { return c.maxCapacity }

// WritePos returns the write cursor
func (c *Circular) WritePos() int { return c.writePos }

// ReadPos returns the read cursor
func (c *Circular) ReadPos() int { return c.readPos }

// Recorded returns the number of committed samples, clamped to the buffer size
func (c *Circular) Recorded() int { return c.recorded }

// SetLength fixes the logical length and switches the buffer to ring mode.
// Storage grows to length+fadeMargin; if that exceeds maxCapacity the length is
// clamped. The clamped length is returned, 0 if nothing fits.
func (c *Circular) SetLength(length int) int {
	if length <= 0 {
		return c.length
	}
	need := length + c.fadeMargin
	if need > c.maxCapacity {
		need = c.maxCapacity
		length = need - c.fadeMargin
		if length <= 0 {
			return c.length
		}
	}
	if len(c.data) < need {
		data := make([]float32, need)
		copy(data, c.data)
		c.data = data
	}

	c.length = length
	c.writePos %= need
	c.readPos %= need
	if c.recorded > need {
		c.recorded = need
	}
	return length
}

// target resolves a write position relative to the write cursor
func (c *Circular) target(indexOffset int) (int, bool) {
	pos := c.writePos + indexOffset
	if pos < 0 {
		return 0, false
	}
	if eff := c.EffectiveLength(); eff > 0 {
		for pos >= eff {
			pos -= eff
		}
		return pos, true
	}
	if pos >= len(c.data) && !c.grow(pos+1) {
		return 0, false
	}
	return pos, true
}

// grow doubles storage until minSize fits, capped at maxCapacity
func (c *Circular) grow(minSize int) bool {
	if len(c.data) >= c.maxCapacity {
		return false
	}
	size := len(c.data) * 2
	if size < minGrowth {
		size = minGrowth
	}
	for size < minSize {
		size *= 2
	}
	if size > c.maxCapacity {
		size = c.maxCapacity
	}
	data := make([]float32, size)
	copy(data, c.data)
	c.data = data
	return minSize <= size
}

// OnWrite mixes sample into the buffer
func (c *Circular) OnWrite(sample float32, indexOffset int) int {
	if idx, ok := c.target(indexOffset); ok {
		c.data[idx] += sample
	}
	return indexOffset + 1
}

// OnOverwrite replaces the sample in the buffer
func (c *Circular) OnOverwrite(sample float32, indexOffset int) int {
	if idx, ok := c.target(indexOffset); ok {
		c.data[idx] = sample
	}
	return indexOffset + 1
}

// EndWrite commits numSamples; the write cursor only moves when advance is set
func (c *Circular) EndWrite(numSamples int, advance bool) {
	if numSamples <= 0 {
		return
	}
	eff := c.EffectiveLength()
	if advance {
		c.writePos += numSamples
		if eff > 0 {
			for c.writePos >= eff {
				c.writePos -= eff
			}
		} else if c.writePos > c.maxCapacity {
			c.writePos = c.maxCapacity
		}
	}

	limit := eff
	if limit == 0 {
		limit = len(c.data)
	}
	c.recorded += numSamples
	if c.recorded > limit {
		c.recorded = limit
	}
}

// Read copies numSamples forward from the read cursor into dst and advances
// the read cursor. Nothing is copied before the first committed write.
func (c *Circular) Read(dst []float32, numSamples int) int {
	eff := c.EffectiveLength()
	if eff == 0 || c.recorded == 0 {
		return 0
	}
	if numSamples > len(dst) {
		numSamples = len(dst)
	}

	pos := c.readPos
	done := 0
	for done < numSamples {
		n := numSamples - done
		if pos+n > eff {
			n = eff - pos
		}
		copy(dst[done:done+n], c.data[pos:pos+n])
		done += n
		pos += n
		if pos >= eff {
			pos = 0
		}
	}
	c.readPos = pos
	return done
}

// OnPlay pushes numSamples from the read cursor into dst without moving the
// cursor; EndPlay moves it.
func (c *Circular) OnPlay(dst process.Sink, numSamples int) {
	eff := c.EffectiveLength()
	if eff == 0 || c.recorded == 0 {
		return
	}
	pos := c.readPos
	for i := 0; i < numSamples; i++ {
		dst.OnWrite(c.data[pos], i)
		pos++
		if pos >= eff {
			pos = 0
		}
	}
}

// EndPlay advances the read cursor
func (c *Circular) EndPlay(numSamples int) {
	eff := c.EffectiveLength()
	if eff == 0 || numSamples <= 0 {
		return
	}
	c.readPos += numSamples
	for c.readPos >= eff {
		c.readPos -= eff
	}
}

// Delay places the read cursor numSamples behind the write cursor. Requests
// larger than the effective length are clamped to it. The new read cursor is
// returned.
func (c *Circular) Delay(numSamples int) int {
	eff := c.EffectiveLength()
	if eff == 0 {
		return c.readPos
	}
	if numSamples < 0 {
		numSamples = 0
	}
	if numSamples > eff {
		numSamples = eff
	}
	pos := c.writePos - numSamples
	if pos < 0 {
		pos += eff
	}
	c.readPos = pos
	return c.readPos
}

// Zero silences the next numSamples positions from the write cursor
func (c *Circular) Zero(numSamples int) {
	eff := c.EffectiveLength()
	if eff == 0 {
		return
	}
	if numSamples > eff {
		numSamples = eff
	}
	pos := c.writePos
	for i := 0; i < numSamples; i++ {
		c.data[pos] = 0
		pos++
		if pos >= eff {
			pos = 0
		}
	}
}

// At returns the sample at an absolute position, 0 outside storage
func (c *Circular) At(i int) float32 {
	if i < 0 || i >= len(c.data) {
		return 0
	}
	return c.data[i]
}

// AddAt mixes sample into an absolute position; positions outside storage
// are ignored.
func (c *Circular) AddAt(i int, sample float32) {
	if i >= 0 && i < len(c.data) {
		c.data[i] += sample
	}
}

// Region returns a view of storage [start, start+n), clamped to what is
// allocated. The view is invalidated by growth, Load and Reset.
func (c *Circular) Region(start, n int) []float32 {
	if start < 0 {
		n += start
		start = 0
	}
	if start > len(c.data) {
		start = len(c.data)
	}
	if n < 0 {
		n = 0
	}
	if start+n > len(c.data) {
		n = len(c.data) - start
	}
	return c.data[start : start+n]
}

// Snapshot copies the first n samples of storage
func (c *Circular) Snapshot(n int) []float32 {
	if n > len(c.data) {
		n = len(c.data)
	}
	if n < 0 {
		n = 0
	}
	out := make([]float32, n)
	copy(out, c.data[:n])
	return out
}

// Load replaces the contents with samples and returns to linear mode with the
// write cursor at the end of the loaded data.
func (c *Circular) Load(samples []float32) {
	n := len(samples)
	if n > c.maxCapacity {
		n = c.maxCapacity
	}
	size := n
	if size < c.fadeMargin {
		size = c.fadeMargin
	}
	c.data = make([]float32, size)
	copy(c.data, samples[:n])
	c.length = 0
	c.readPos = 0
	c.writePos = n
	c.recorded = n
}

// Reset drops all content and shrinks storage back to the fade margin
func (c *Circular) Reset() {
	if len(c.data) != c.fadeMargin {
		c.data = make([]float32, c.fadeMargin)
	} else {
		for i := range c.data {
			c.data[i] = 0
		}
	}
	c.length = 0
	c.writePos = 0
	c.readPos = 0
	c.recorded = 0
}
