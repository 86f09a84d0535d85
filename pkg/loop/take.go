package loop

import (
	"github.com/justyntemme/loopstation/pkg/framework/process"
)

// TakeID identifies a take within its station.
type TakeID int

// Take is a group of loops recorded together, one per input channel.
type Take struct {
	id      TakeID
	name    string
	loops   []*Loop
	overdub bool
}

// NewTake creates an empty take.
func NewTake(id TakeID, name string) *Take {
	return &Take{id: id, name: name}
}

func (t *Take) ID() TakeID          { return t.id }
func (t *Take) Name() string        { return t.name }
func (t *Take) SetName(name string) { t.name = name }
func (t *Take) Loops() []*Loop      { return t.loops }

// IsOverdub reports whether the take was started as an overdub.
func (t *Take) IsOverdub() bool { return t.overdub }

// SetOverdub marks the take as an overdub take.
func (t *Take) SetOverdub(overdub bool) { t.overdub = overdub }

// AddLoop appends a loop.
func (t *Take) AddLoop(l *Loop) {
	t.loops = append(t.loops, l)
}

// Loop finds a loop by id.
func (t *Take) Loop(id ID) (*Loop, bool) {
	for _, l := range t.loops {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// State returns the state of the first loop, Inactive for an empty take.
func (t *Take) State() State {
	if len(t.loops) == 0 {
		return Inactive
	}
	return t.loops[0].State()
}

// Length returns the length of the first loop.
func (t *Take) Length() int {
	if len(t.loops) == 0 {
		return 0
	}
	return t.loops[0].Length()
}

// Written returns the samples recorded by the first loop.
func (t *Take) Written() int {
	if len(t.loops) == 0 {
		return 0
	}
	return t.loops[0].Written()
}

// FadeSamples returns the fade margin of the first loop.
func (t *Take) FadeSamples() int {
	if len(t.loops) == 0 {
		return 0
	}
	return t.loops[0].FadeSamples()
}

func (t *Take) Record() {
	for _, l := range t.loops {
		l.Record()
	}
}

func (t *Take) Play(index, length int) {
	for _, l := range t.loops {
		l.Play(index, length)
	}
}

func (t *Take) Overdub() {
	for _, l := range t.loops {
		l.Overdub()
	}
}

func (t *Take) PunchIn() {
	for _, l := range t.loops {
		l.PunchIn()
	}
}

func (t *Take) PunchOut() {
	for _, l := range t.loops {
		l.PunchOut()
	}
}

func (t *Take) Ditch() {
	for _, l := range t.loops {
		l.Ditch()
	}
}

// SetMasterLoopCount stores the master cycle count on every loop.
func (t *Take) SetMasterLoopCount(n int) {
	for _, l := range t.loops {
		l.SetMasterLoopCount(n)
	}
}

// OnWrite records the latest block of each loop's input channel.
func (t *Take) OnWrite(src process.MultiSource, numSamples int) {
	for _, l := range t.loops {
		if l.writable() {
			src.OnPlayChannel(l.InputChannel(), l, numSamples)
		}
	}
}

// EndMultiWrite commits the block on every loop.
func (t *Take) EndMultiWrite(numSamples int, advance bool) {
	for _, l := range t.loops {
		l.EndWrite(numSamples, advance)
	}
}

// OnPlay mixes every loop into dst.
func (t *Take) OnPlay(dst process.MultiSink, numSamples int) {
	for _, l := range t.loops {
		l.OnPlay(dst, numSamples)
	}
}

// EndMultiPlay advances every loop's play cursor.
func (t *Take) EndMultiPlay(numSamples int) {
	for _, l := range t.loops {
		l.EndMultiPlay(numSamples)
	}
}
