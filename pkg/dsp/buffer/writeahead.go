package buffer

import (
	"errors"
	"sync/atomic"
)

// ErrOverrun is returned by Write when the FIFO cannot hold the whole block.
var ErrOverrun = errors.New("buffer overrun: not enough space available")

// WriteAheadBuffer is a single-producer single-consumer FIFO of interleaved
// samples. The producer renders fixed-size blocks; the consumer drains whatever
// the device asks for. The write cursor starts prefill samples ahead of the
// read cursor so the first reads return silence instead of underrunning.
type WriteAheadBuffer struct {
	data     []float32
	readPos  atomic.Uint64
	writePos atomic.Uint64
	size     uint32
	mask     uint32

	underruns atomic.Uint64
	overruns  atomic.Uint64
}

// BufferStats reports FIFO health.
type BufferStats struct {
	Underruns uint64
	Overruns  uint64
	Fill      float32
}

// NewWriteAheadBuffer creates a FIFO that can hold at least capacity samples.
// prefill is clamped to the allocated size.
func NewWriteAheadBuffer(capacity, prefill int) *WriteAheadBuffer {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPowerOf2(uint32(capacity))
	if prefill < 0 {
		prefill = 0
	}
	if uint32(prefill) > size {
		prefill = int(size)
	}
	buf := &WriteAheadBuffer{
		data: make([]float32, size),
		size: size,
		mask: size - 1,
	}
	buf.writePos.Store(uint64(prefill))
	return buf
}

// Available returns the number of samples ready to read.
func (buf *WriteAheadBuffer) Available() int {
	return int(buf.availableData(buf.readPos.Load(), buf.writePos.Load()))
}

// Space returns the number of samples that can be written without overrun.
func (buf *WriteAheadBuffer) Space() int {
	return int(buf.availableSpace(buf.readPos.Load(), buf.writePos.Load()))
}

// Write appends samples. A block that does not fit is rejected whole.
func (buf *WriteAheadBuffer) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}

	writePos := buf.writePos.Load()
	readPos := buf.readPos.Load()
	if buf.availableSpace(readPos, writePos) < uint32(len(samples)) {
		buf.overruns.Add(1)
		return ErrOverrun
	}

	remaining := len(samples)
	src := 0
	for remaining > 0 {
		dst := uint32(writePos) & buf.mask
		n := remaining
		if dst+uint32(n) > buf.size {
			n = int(buf.size - dst)
		}
		copy(buf.data[dst:dst+uint32(n)], samples[src:src+n])
		src += n
		remaining -= n
		writePos += uint64(n)
	}

	buf.writePos.Store(writePos)
	return nil
}

// Read fills output from the FIFO and zero-fills whatever is missing. It
// returns the number of real samples copied.
func (buf *WriteAheadBuffer) Read(output []float32) int {
	if len(output) == 0 {
		return 0
	}

	readPos := buf.readPos.Load()
	writePos := buf.writePos.Load()
	toRead := len(output)
	if available := buf.availableData(readPos, writePos); available < uint32(toRead) {
		toRead = int(available)
		buf.underruns.Add(1)
	}

	remaining := toRead
	dst := 0
	for remaining > 0 {
		src := uint32(readPos) & buf.mask
		n := remaining
		if src+uint32(n) > buf.size {
			n = int(buf.size - src)
		}
		copy(output[dst:dst+n], buf.data[src:src+uint32(n)])
		dst += n
		remaining -= n
		readPos += uint64(n)
	}
	buf.readPos.Store(readPos)

	for i := toRead; i < len(output); i++ {
		output[i] = 0
	}
	return toRead
}

// Stats returns the current counters and fill ratio.
func (buf *WriteAheadBuffer) Stats() BufferStats {
	available := buf.availableData(buf.readPos.Load(), buf.writePos.Load())
	return BufferStats{
		Underruns: buf.underruns.Load(),
		Overruns:  buf.overruns.Load(),
		Fill:      float32(available) / float32(buf.size),
	}
}

func (buf *WriteAheadBuffer) availableSpace(readPos, writePos uint64) uint32 {
	used := writePos - readPos
	if used >= uint64(buf.size) {
		return 0
	}
	return buf.size - uint32(used)
}

func (buf *WriteAheadBuffer) availableData(readPos, writePos uint64) uint32 {
	if writePos < readPos {
		return 0
	}
	available := writePos - readPos
	if available > uint64(buf.size) {
		return buf.size
	}
	return uint32(available)
}

// nextPowerOf2 rounds up to the next power of 2
func nextPowerOf2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}
