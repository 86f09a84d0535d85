// Package station coordinates the takes recorded by a set of triggers.
package station

import (
	"fmt"

	"github.com/justyntemme/loopstation/pkg/framework/process"
	"github.com/justyntemme/loopstation/pkg/loop"
	"github.com/justyntemme/loopstation/pkg/mixer"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

// MinTakeMs is the shortest recording kept; anything shorter is ditched.
const MinTakeMs = 50

// Config sizes the loops a station creates.
type Config struct {
	Name       string
	SampleRate float64
	// FadeSamples is the lead-in and crossfade length of recorded loops.
	FadeSamples int
	// MaxLoopSamples caps a single loop buffer.
	MaxLoopSamples int
	NumOutputs     int
}

// Station owns triggers and the takes they record. All methods run under the
// scene's audio lock.
type Station struct {
	cfg      Config
	clock    *loop.Clock
	triggers []*trigger.Trigger
	takes    []*loop.Take
	nextTake loop.TakeID
}

// New creates a station sharing the scene clock.
func New(cfg Config, clock *loop.Clock) *Station {
	if clock == nil {
		clock = loop.NewClock()
	}
	return &Station{cfg: cfg.withDefaults(), clock: clock}
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.FadeSamples < 0 {
		c.FadeSamples = 0
	}
	if c.MaxLoopSamples <= c.FadeSamples {
		c.MaxLoopSamples = c.FadeSamples + int(c.SampleRate)*60
	}
	if c.NumOutputs <= 0 {
		c.NumOutputs = 2
	}
	return c
}

// SetConfig changes how new takes are sized. Existing takes keep their loops.
func (s *Station) SetConfig(cfg Config) {
	s.cfg = cfg.withDefaults()
}

// Name returns the station name.
func (s *Station) Name() string { return s.cfg.Name }

// Config returns the station configuration.
func (s *Station) Config() Config { return s.cfg }

// Clock returns the shared clock.
func (s *Station) Clock() *loop.Clock { return s.clock }

// Triggers returns the station's triggers.
func (s *Station) Triggers() []*trigger.Trigger { return s.triggers }

// Takes returns the takes, oldest first.
func (s *Station) Takes() []*loop.Take { return s.takes }

// AddTrigger binds a trigger to this station.
func (s *Station) AddTrigger(t *trigger.Trigger) {
	t.SetReceiver(&receiver{station: s, trigger: t})
	s.triggers = append(s.triggers, t)
}

// Take finds a take by id.
func (s *Station) Take(id loop.TakeID) (*loop.Take, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.takes[i], true
	}
	return nil, false
}

func (s *Station) indexOf(id loop.TakeID) int {
	for i, t := range s.takes {
		if t.ID() == id {
			return i
		}
	}
	return -1
}

// receiver ties a trigger to its station so actions know which input
// channels to record.
type receiver struct {
	station *Station
	trigger *trigger.Trigger
}

func (r *receiver) OnTriggerAction(a trigger.Action) int {
	return r.station.handle(r.trigger, a)
}

func (s *Station) handle(t *trigger.Trigger, a trigger.Action) int {
	target := loop.TakeID(a.TargetID)
	switch a.Type {
	case trigger.ActionRecStart:
		take := s.newTake(t.InputChannels(), false)
		take.Record()
		return int(take.ID())

	case trigger.ActionRecEnd:
		if take, ok := s.Take(target); ok {
			s.endRecording(take, a.SampleCount)
		}

	case trigger.ActionDitch:
		i := s.indexOf(target)
		if i < 0 {
			i = len(s.takes) - 1
		}
		s.removeAt(i)

	case trigger.ActionOverdubStart:
		if !s.clock.IsFixed() {
			return trigger.NoTarget
		}
		take := s.newTake(t.InputChannels(), true)
		take.Play(s.clock.Phase(), s.clock.MasterLength())
		take.Overdub()
		return int(take.ID())

	case trigger.ActionPunchInStart:
		if take, ok := s.Take(target); ok {
			take.PunchIn()
		}

	case trigger.ActionPunchInEnd:
		if take, ok := s.Take(target); ok {
			take.PunchOut()
		}

	case trigger.ActionOverdubEnd:
		if take, ok := s.Take(target); ok {
			take.Play(0, 0)
		}

	case trigger.ActionOverdubDitch:
		if i := s.indexOf(target); i >= 0 {
			s.removeAt(i)
		}
	}
	return a.TargetID
}

// endRecording fixes or quantises the take's length and starts playback.
// sampleCount is how long the trigger held the recording state; when it falls
// short of what the loops captured, the take ends where the trigger closed and
// the extra samples only advance the playhead.
func (s *Station) endRecording(take *loop.Take, sampleCount int) {
	fade := take.FadeSamples()
	elapsed := take.Written() - fade
	recorded := elapsed
	if sampleCount > 0 && sampleCount-fade < recorded {
		recorded = sampleCount - fade
	}
	if recorded < s.minTakeSamples() {
		s.removeAt(s.indexOf(take.ID()))
		return
	}

	length := recorded
	if !s.clock.Fix(recorded) {
		length = s.clock.QuantiseLength(recorded)
	}
	take.Play(elapsed%length, length)
	take.SetMasterLoopCount(s.clock.MasterLoopCount(length))
}

func (s *Station) minTakeSamples() int {
	n := int(s.cfg.SampleRate * MinTakeMs / 1000)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Station) newTake(channels []int, overdub bool) *loop.Take {
	s.nextTake++
	take := loop.NewTake(s.nextTake, fmt.Sprintf("take %d", s.nextTake))
	take.SetOverdub(overdub)
	if len(channels) == 0 {
		channels = []int{0}
	}

	for i, ch := range channels {
		take.AddLoop(loop.New(loop.ID(i), s.LoopConfig(ch, overdub)))
	}
	s.clock.Bind()
	s.takes = append(s.takes, take)
	return take
}

// LoopConfig sizes a new loop recording inputChannel. Overdub loops start as
// silent rings and need no lead-in.
func (s *Station) LoopConfig(inputChannel int, overdub bool) loop.Config {
	fade := s.cfg.FadeSamples
	if overdub {
		fade = 0
	}
	return loop.Config{
		FadeSamples:  fade,
		MaxSamples:   s.cfg.MaxLoopSamples,
		InputChannel: inputChannel,
		SampleRate:   s.cfg.SampleRate,
		Behaviour:    mixer.PanFromPosition(0, s.cfg.NumOutputs),
	}
}

// AddTake adds a take restored from a saved performance and binds it to the
// clock.
func (s *Station) AddTake(take *loop.Take) {
	if take.ID() > s.nextTake {
		s.nextTake = take.ID()
	}
	s.clock.Bind()
	s.takes = append(s.takes, take)
}

// NextTakeID reserves an id for a take built outside the station.
func (s *Station) NextTakeID() loop.TakeID {
	s.nextTake++
	return s.nextTake
}

// RemoveTake ditches and removes a take.
func (s *Station) RemoveTake(id loop.TakeID) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.removeAt(i)
	return true
}

func (s *Station) removeAt(i int) {
	if i < 0 || i >= len(s.takes) {
		return
	}
	s.takes[i].Ditch()
	s.takes = append(s.takes[:i], s.takes[i+1:]...)
	s.clock.Release()
}

// Clear removes every take and resets the triggers.
func (s *Station) Clear() {
	for len(s.takes) > 0 {
		s.removeAt(len(s.takes) - 1)
	}
	for _, t := range s.triggers {
		t.Reset()
	}
}

// ProcessEvent hands a raw input event to every trigger. It reports whether
// any trigger listens to the event.
func (s *Station) ProcessEvent(ev trigger.Event) bool {
	eaten := false
	for _, t := range s.triggers {
		if t.Matches(ev) {
			eaten = true
			t.Process(ev)
		}
	}
	return eaten
}

// SetMuteGroup mutes or unmutes every loop in any of the groups in mask.
func (s *Station) SetMuteGroup(mask uint32, muted bool) {
	s.eachLoop(func(l *loop.Loop) {
		if l.MuteGroups()&mask != 0 {
			l.SetMuted(muted)
		}
	})
}

// SelectGroup selects the loops in any of the groups in mask and deselects
// the rest.
func (s *Station) SelectGroup(mask uint32) {
	s.eachLoop(func(l *loop.Loop) {
		l.SetSelected(l.SelectGroups()&mask != 0)
	})
}

func (s *Station) eachLoop(fn func(*loop.Loop)) {
	for _, take := range s.takes {
		for _, l := range take.Loops() {
			fn(l)
		}
	}
}

// OnWrite records the latest input block into every take.
func (s *Station) OnWrite(src process.MultiSource, numSamples int) {
	for _, take := range s.takes {
		take.OnWrite(src, numSamples)
	}
}

// EndMultiWrite commits the recorded block.
func (s *Station) EndMultiWrite(numSamples int, advance bool) {
	for _, take := range s.takes {
		take.EndMultiWrite(numSamples, advance)
	}
}

// OnPlay mixes every take into dst.
func (s *Station) OnPlay(dst process.MultiSink, numSamples int) {
	for _, take := range s.takes {
		take.OnPlay(dst, numSamples)
	}
}

// EndMultiPlay advances every take.
func (s *Station) EndMultiPlay(numSamples int) {
	for _, take := range s.takes {
		take.EndMultiPlay(numSamples)
	}
}

// OnTick runs the triggers' block tick.
func (s *Station) OnTick(numSamples int) {
	for _, t := range s.triggers {
		t.OnTick(numSamples)
	}
}
