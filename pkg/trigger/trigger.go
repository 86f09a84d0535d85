// Package trigger turns raw key and MIDI events into debounced loop-control
// actions.
//
// Each event passes through three stages before it can move the state
// machine: the bindings classify it as a down or release, repeated raw edges
// are dropped, and edges arriving inside the debounce window are held back
// until OnTick sees the window elapse.
package trigger

import (
	"time"
)

// State is the trigger's position in the record/overdub cycle.
type State int

const (
	StateDefault State = iota
	StateRecording
	StateDitchDown
	StateOverdubbing
	StatePunchedIn
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateRecording:
		return "recording"
	case StateDitchDown:
		return "ditch-down"
	case StateOverdubbing:
		return "overdubbing"
	case StatePunchedIn:
		return "punched-in"
	default:
		return "unknown"
	}
}

// channel indexes the per-input flags.
type channel int

const (
	activate channel = iota
	ditch
	numChannels
)

// Trigger multiplexes an activate input and a ditch input onto one state
// machine. It is not safe for concurrent use; callers serialise Process and
// OnTick.
type Trigger struct {
	name     string
	activate []DualBinding
	ditch    []DualBinding
	channels []int

	state    State
	debounce time.Duration
	now      func() time.Time

	rawDown       [numChannels]bool
	debouncedDown [numChannels]bool
	lastChange    [numChannels]time.Time

	targetID        int
	overdubTargetID int
	sampleCount     int

	receiver ActionReceiver
}

// New creates a trigger with no bindings and debounce disabled.
func New(name string) *Trigger {
	return &Trigger{
		name:            name,
		now:             time.Now,
		targetID:        NoTarget,
		overdubTargetID: NoTarget,
	}
}

// Name returns the trigger name.
func (t *Trigger) Name() string { return t.name }

// State returns the current state.
func (t *Trigger) State() State { return t.state }

// TargetID returns the take currently being recorded or last recorded.
func (t *Trigger) TargetID() int { return t.targetID }

// OverdubTargetID returns the overdub take, or NoTarget.
func (t *Trigger) OverdubTargetID() int { return t.overdubTargetID }

// SampleCount returns the samples ticked since the current state began.
func (t *Trigger) SampleCount() int { return t.sampleCount }

// Debounce returns the debounce window.
func (t *Trigger) Debounce() time.Duration { return t.debounce }

// InputChannels returns the input channels recorded by this trigger.
func (t *Trigger) InputChannels() []int { return t.channels }

// ActivateBindings returns the activate binding set.
func (t *Trigger) ActivateBindings() []DualBinding { return t.activate }

// DitchBindings returns the ditch binding set.
func (t *Trigger) DitchBindings() []DualBinding { return t.ditch }

// SetReceiver binds the receiver of actions. The trigger does not own it.
func (t *Trigger) SetReceiver(r ActionReceiver) { t.receiver = r }

// SetDebounce sets the debounce window; zero disables debouncing.
func (t *Trigger) SetDebounce(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.debounce = d
}

// SetClock replaces the time source used for debouncing.
func (t *Trigger) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	t.now = now
}

// SetTargetID points the trigger at an existing take, as after loading a jam.
func (t *Trigger) SetTargetID(id int) { t.targetID = id }

// Reset returns to the default state and re-arms every binding.
func (t *Trigger) Reset() {
	for i := range t.activate {
		t.activate[i].Reset()
	}
	for i := range t.ditch {
		t.ditch[i].Reset()
	}
	t.state = StateDefault
	t.rawDown = [numChannels]bool{}
	t.debouncedDown = [numChannels]bool{}
	t.lastChange = [numChannels]time.Time{}
	t.overdubTargetID = NoTarget
	t.sampleCount = 0
}

// Process feeds one raw event through the bindings. It reports whether the
// state machine changed state.
func (t *Trigger) Process(ev Event) bool {
	changed := false
	for i := range t.activate {
		changed = t.dispatch(t.activate[i].HasRelease, t.activate[i].OnTrigger(ev.Source, ev.Value, ev.State), activate) || changed
	}
	for i := range t.ditch {
		changed = t.dispatch(t.ditch[i].HasRelease, t.ditch[i].OnTrigger(ev.Source, ev.Value, ev.State), ditch) || changed
	}
	return changed
}

// Matches reports whether any binding of this trigger listens to the event.
func (t *Trigger) Matches(ev Event) bool {
	for _, set := range [][]DualBinding{t.activate, t.ditch} {
		for _, b := range set {
			if b.Down.Matches(ev.Source, ev.Value, ev.State) ||
				(b.HasRelease && b.Release.Matches(ev.Source, ev.Value, ev.State)) {
				return true
			}
		}
	}
	return false
}

func (t *Trigger) dispatch(hasRelease bool, m Match, ch channel) bool {
	switch m {
	case MatchDown:
		changed := t.edge(true, ch)
		if !hasRelease {
			// Bindings without a release get an immediate synthetic one.
			changed = t.edge(false, ch) || changed
		}
		return changed
	case MatchRelease:
		return t.edge(false, ch)
	}
	return false
}

// edge applies repeat suppression and debouncing to one raw edge.
func (t *Trigger) edge(isDown bool, ch channel) bool {
	if t.rawDown[ch] == isDown {
		return false
	}
	t.rawDown[ch] = isDown
	return t.settle(ch)
}

// settle moves the debounced flag to the raw flag if the window allows it.
func (t *Trigger) settle(ch channel) bool {
	if t.debouncedDown[ch] == t.rawDown[ch] {
		return false
	}
	now := t.now()
	if t.debounce > 0 && !t.lastChange[ch].IsZero() && now.Sub(t.lastChange[ch]) < t.debounce {
		return false
	}
	t.debouncedDown[ch] = t.rawDown[ch]
	t.lastChange[ch] = now
	return t.step(t.debouncedDown[ch], ch == activate)
}

// OnTick advances the sample counter and completes edges held back by the
// debounce window.
func (t *Trigger) OnTick(numSamples int) bool {
	if t.state != StateDefault && t.state != StateDitchDown && numSamples > 0 {
		t.sampleCount += numSamples
	}
	changed := false
	for ch := channel(0); ch < numChannels; ch++ {
		changed = t.settle(ch) || changed
	}
	return changed
}

// step is the state machine proper. Unlisted transitions are ignored.
func (t *Trigger) step(isDown, isActivate bool) bool {
	switch t.state {
	case StateDefault:
		switch {
		case isActivate && isDown:
			t.enter(StateRecording)
			t.targetID = t.send(ActionRecStart, t.targetID)
			return true
		case !isActivate && isDown:
			t.enter(StateDitchDown)
			return true
		}

	case StateRecording:
		if !isDown {
			return false
		}
		if isActivate {
			t.send(ActionRecEnd, t.targetID)
		} else {
			t.send(ActionDitch, t.targetID)
		}
		t.enter(StateDefault)
		return true

	case StateDitchDown:
		switch {
		case isActivate && isDown:
			t.enter(StateOverdubbing)
			t.overdubTargetID = t.send(ActionOverdubStart, t.targetID)
			return true
		case !isActivate && !isDown:
			t.send(ActionDitch, t.targetID)
			t.enter(StateDefault)
			return true
		}

	case StateOverdubbing:
		switch {
		case isActivate && isDown:
			t.send(ActionOverdubEnd, t.overdubTargetID)
			t.overdubTargetID = NoTarget
			t.enter(StateDefault)
			return true
		case !isActivate && isDown:
			t.state = StatePunchedIn
			t.send(ActionPunchInStart, t.overdubTargetID)
			return true
		}

	case StatePunchedIn:
		switch {
		case isActivate && isDown:
			t.send(ActionOverdubDitch, t.overdubTargetID)
			t.overdubTargetID = NoTarget
			t.enter(StateDefault)
			return true
		case !isActivate && !isDown:
			t.state = StateOverdubbing
			t.send(ActionPunchInEnd, t.overdubTargetID)
			return true
		}
	}
	return false
}

func (t *Trigger) enter(s State) {
	t.state = s
	t.sampleCount = 0
}

func (t *Trigger) send(typ ActionType, target int) int {
	if t.receiver == nil {
		return target
	}
	return t.receiver.OnTriggerAction(Action{
		Type:        typ,
		TargetID:    target,
		SampleCount: t.sampleCount,
	})
}
