package station

import (
	"testing"

	"github.com/justyntemme/loopstation/pkg/loop"
	"github.com/justyntemme/loopstation/pkg/mixer"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

const (
	frames      = 16
	fade        = 4
	keyActivate = 49
	keyDitch    = 50
)

type rig struct {
	station *Station
	trigger *trigger.Trigger
	cm      *mixer.ChannelMixer
	out     []float32
}

func newRig() *rig {
	st := New(Config{
		Name:           "test",
		SampleRate:     1000,
		FadeSamples:    fade,
		MaxLoopSamples: 4096,
		NumOutputs:     1,
	}, nil)
	trig := trigger.NewBuilder("loop").
		Activate(trigger.KeyBinding(keyActivate)).
		Ditch(trigger.KeyBinding(keyDitch)).
		InputChannels(0).
		Build()
	st.AddTrigger(trig)
	return &rig{
		station: st,
		trigger: trig,
		cm:      mixer.NewChannelMixer(1, 1, frames, 0),
		out:     make([]float32, frames),
	}
}

// block runs one audio block of constant input through the station.
func (r *rig) block(value float32) []float32 {
	in := make([]float32, frames)
	for i := range in {
		in[i] = value
	}
	r.cm.FromAdc(in, frames)
	r.station.OnWrite(r.cm.Inputs(), frames)
	r.station.EndMultiWrite(frames, true)

	outs := r.cm.Outputs()
	outs.Zero(frames)
	r.station.OnPlay(outs, frames)
	outs.EndMultiWrite(frames, true)
	r.station.EndMultiPlay(frames)
	r.cm.ToDac(r.out, frames)

	r.station.Clock().Advance(frames)
	r.station.OnTick(frames)
	return r.out
}

func (r *rig) press(code int) {
	r.station.ProcessEvent(trigger.Event{Source: trigger.SourceKey, Value: code, State: trigger.StateDown})
	r.station.ProcessEvent(trigger.Event{Source: trigger.SourceKey, Value: code, State: trigger.StateUp})
}

func (r *rig) down(code int) {
	r.station.ProcessEvent(trigger.Event{Source: trigger.SourceKey, Value: code, State: trigger.StateDown})
}

func (r *rig) up(code int) {
	r.station.ProcessEvent(trigger.Event{Source: trigger.SourceKey, Value: code, State: trigger.StateUp})
}

// recordTake records blocks of constant input and closes the take.
func (r *rig) recordTake(blocks int, value float32) *loop.Take {
	r.press(keyActivate)
	for i := 0; i < blocks; i++ {
		r.block(value)
	}
	r.press(keyActivate)
	takes := r.station.Takes()
	if len(takes) == 0 {
		return nil
	}
	return takes[len(takes)-1]
}

func TestFirstTakeFixesClock(t *testing.T) {
	r := newRig()
	take := r.recordTake(10, 0.5)
	if take == nil {
		t.Fatal("Expected a take")
	}

	want := 10*frames - fade
	if got := r.station.Clock().MasterLength(); got != want {
		t.Fatalf("Expected master length %d, got %d", want, got)
	}
	if take.State() != loop.Playing || take.Length() != want {
		t.Fatalf("Expected a playing take of %d samples, got %v/%d", want, take.State(), take.Length())
	}

	out := r.block(0)
	for i, s := range out {
		if s != 0.5 {
			t.Fatalf("Sample %d: expected the recorded 0.5, got %f", i, s)
		}
	}
}

func TestLaterTakeQuantises(t *testing.T) {
	r := newRig()
	r.recordTake(10, 0.5)
	master := r.station.Clock().MasterLength()

	take := r.recordTake(5, 0.25)
	if take.Length() != master/2 {
		t.Fatalf("Expected length %d, got %d", master/2, take.Length())
	}
	if take.State() != loop.PlayingRecording {
		t.Fatalf("A take shorter than its quantised length keeps recording, got %v", take.State())
	}
	r.block(0.25)
	if take.State() != loop.Playing {
		t.Errorf("Expected the take to close once its tail is in, got %v", take.State())
	}
	if take.Loops()[0].MasterLoopCount() != 1 {
		t.Errorf("Expected a master loop count of 1, got %d", take.Loops()[0].MasterLoopCount())
	}
	if r.station.Clock().Bound() != 2 {
		t.Errorf("Expected two takes bound to the clock, got %d", r.station.Clock().Bound())
	}
}

func TestShortTakeIsDitched(t *testing.T) {
	r := newRig()
	r.recordTake(2, 0.5)
	if n := len(r.station.Takes()); n != 0 {
		t.Fatalf("Expected the short take to be ditched, %d left", n)
	}
	if r.station.Clock().IsFixed() || r.station.Clock().Bound() != 0 {
		t.Error("A ditched first take must not fix the clock")
	}
}

func TestDitchReleasesClock(t *testing.T) {
	r := newRig()
	r.recordTake(10, 0.5)
	r.press(keyDitch)
	if n := len(r.station.Takes()); n != 0 {
		t.Fatalf("Expected no takes after ditch, got %d", n)
	}
	if r.station.Clock().IsFixed() {
		t.Error("Ditching the last take should clear the master length")
	}
	for i, s := range r.block(0) {
		if s != 0 {
			t.Fatalf("Sample %d: expected silence, got %f", i, s)
		}
	}
}

func TestDitchWhileRecording(t *testing.T) {
	r := newRig()
	r.press(keyActivate)
	r.block(0.5)
	r.down(keyDitch)
	if n := len(r.station.Takes()); n != 0 {
		t.Fatalf("Expected the recording take ditched, got %d takes", n)
	}
	if r.trigger.State() != trigger.StateDefault {
		t.Errorf("Expected default state, got %v", r.trigger.State())
	}
}

func TestOverdubTake(t *testing.T) {
	r := newRig()
	r.recordTake(10, 0.5)
	master := r.station.Clock().MasterLength()

	r.down(keyDitch)
	r.down(keyActivate)
	takes := r.station.Takes()
	if len(takes) != 2 {
		t.Fatalf("Expected an overdub take, got %d takes", len(takes))
	}
	od := takes[1]
	if !od.IsOverdub() || od.State() != loop.Overdubbing || od.Length() != master {
		t.Fatalf("Expected an overdubbing take of %d samples, got %v/%d", master, od.State(), od.Length())
	}
	r.up(keyActivate)
	r.up(keyDitch)

	r.down(keyDitch)
	if od.State() != loop.PunchedIn {
		t.Errorf("Expected punched-in, got %v", od.State())
	}
	r.up(keyDitch)
	if od.State() != loop.Overdubbing {
		t.Errorf("Expected overdubbing after punch-out, got %v", od.State())
	}

	r.block(0.25)
	r.down(keyActivate)
	if od.State() != loop.Playing {
		t.Errorf("Expected the overdub committed, got %v", od.State())
	}
}

func TestOverdubDitch(t *testing.T) {
	r := newRig()
	r.recordTake(10, 0.5)
	r.down(keyDitch)
	r.down(keyActivate)
	r.up(keyActivate)
	r.up(keyDitch)
	r.down(keyDitch)
	r.down(keyActivate)

	if r.trigger.State() != trigger.StateDefault {
		t.Errorf("Expected default state, got %v", r.trigger.State())
	}
	if n := len(r.station.Takes()); n != 1 {
		t.Errorf("Expected the overdub ditched, got %d takes", n)
	}
}

func TestOverdubNeedsMaster(t *testing.T) {
	r := newRig()
	r.down(keyDitch)
	r.down(keyActivate)
	if n := len(r.station.Takes()); n != 0 {
		t.Errorf("Overdub without a master should create nothing, got %d takes", n)
	}
}

func TestGroups(t *testing.T) {
	r := newRig()
	a := r.recordTake(10, 0.5)
	b := r.recordTake(10, 0.5)
	a.Loops()[0].SetGroups(0b01, 0b01)
	b.Loops()[0].SetGroups(0b10, 0b10)

	r.station.SetMuteGroup(0b10, true)
	if a.Loops()[0].Muted() || !b.Loops()[0].Muted() {
		t.Error("Only group 2 should be muted")
	}
	r.station.SelectGroup(0b01)
	if !a.Loops()[0].Selected() || b.Loops()[0].Selected() {
		t.Error("Only group 1 should be selected")
	}
}

func TestProcessEventIgnoresUnbound(t *testing.T) {
	r := newRig()
	ev := trigger.Event{Source: trigger.SourceMidiNote, Value: keyActivate, State: trigger.StateDown}
	if r.station.ProcessEvent(ev) {
		t.Error("An unbound event should not be eaten")
	}
	if len(r.station.Takes()) != 0 {
		t.Error("An unbound event should not start a take")
	}
}

func TestClearResets(t *testing.T) {
	r := newRig()
	r.recordTake(10, 0.5)
	r.down(keyActivate)
	r.station.Clear()
	if len(r.station.Takes()) != 0 || r.station.Clock().IsFixed() {
		t.Error("Clear should drop every take and release the clock")
	}
	if r.trigger.State() != trigger.StateDefault {
		t.Errorf("Clear should reset triggers, got %v", r.trigger.State())
	}
}

func TestRecEndUsesTriggerSampleCount(t *testing.T) {
	tests := []struct {
		name        string
		sampleCount int
		want        int
	}{
		{"unknown count uses captured", 0, 10*frames - fade},
		{"shorter count trims", 104, 100},
		{"longer count is capped", 1000, 10*frames - fade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig()
			r.press(keyActivate)
			for i := 0; i < 10; i++ {
				r.block(0.5)
			}
			take := r.station.Takes()[0]
			r.station.handle(r.trigger, trigger.Action{
				Type:        trigger.ActionRecEnd,
				TargetID:    int(take.ID()),
				SampleCount: tt.sampleCount,
			})

			if got := r.station.Clock().MasterLength(); got != tt.want {
				t.Errorf("Expected master length %d, got %d", tt.want, got)
			}
			if take.State() != loop.Playing || take.Length() != tt.want {
				t.Errorf("Expected a playing take of %d samples, got %v/%d", tt.want, take.State(), take.Length())
			}
		})
	}
}

func TestRecordingCountsTriggerSamples(t *testing.T) {
	r := newRig()
	r.press(keyActivate)
	for i := 0; i < 3; i++ {
		r.block(0.5)
	}
	take := r.station.Takes()[0]
	if got := r.trigger.SampleCount(); got != take.Written() {
		t.Errorf("Trigger counted %d samples, take captured %d", got, take.Written())
	}
}
