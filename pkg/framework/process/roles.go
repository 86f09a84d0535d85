// Package process defines the audio capability roles that loops, buffers and
// mixers compose instead of inheriting from a common base.
package process

// Sink consumes mono audio one sample at a time. indexOffset is relative to the
// sink's own write cursor, so a caller can stream a whole block without knowing
// where (or whether) the sink wraps. Both write methods return indexOffset+1.
type Sink interface {
	// OnWrite mixes sample into existing content.
	OnWrite(sample float32, indexOffset int) int
	// OnOverwrite replaces existing content with sample.
	OnOverwrite(sample float32, indexOffset int) int
	// EndWrite commits a block. When updateIndex is false the write cursor
	// stays put, which allows a second pass over the same block.
	EndWrite(numSamples int, updateIndex bool)
}

// Source pushes mono audio into a Sink.
type Source interface {
	OnPlay(dst Sink, numSamples int)
	EndPlay(numSamples int)
}

// MultiSink is a set of per-channel sinks committed together.
type MultiSink interface {
	NumInputChannels() int
	// Channel returns nil for an out-of-range channel.
	Channel(ch int) Sink
	Zero(numSamples int)
	EndMultiWrite(numSamples int, updateIndex bool)
}

// MultiSource is a set of per-channel sources read together.
type MultiSource interface {
	NumOutputChannels() int
	OnPlayChannel(ch int, dst Sink, numSamples int)
	EndMultiPlay(numSamples int)
}
