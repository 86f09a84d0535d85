package midi

import (
	"context"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		msg  midi.Message
		want Event
	}{
		{"note on", midi.NoteOn(1, 60, 100), NoteOnEvent{BaseEvent{1}, 60, 100}},
		{"note off", midi.NoteOff(2, 61), NoteOffEvent{BaseEvent{2}, 61}},
		{"zero velocity note on", midi.NoteOn(0, 62, 0), NoteOffEvent{BaseEvent{0}, 62}},
		{"controller", midi.ControlChange(3, 64, 127), ControlChangeEvent{BaseEvent{3}, 64, 127}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.msg)
			if !ok {
				t.Fatalf("Decode(%v) failed", tt.msg)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, ok := Decode(midi.ProgramChange(0, 5)); ok {
		t.Error("Program change should not decode")
	}
}

func TestToTrigger(t *testing.T) {
	tests := []struct {
		name string
		in   Event
		want trigger.Event
	}{
		{"note on", NoteOnEvent{BaseEvent{0}, 60, 90}, trigger.Event{Source: trigger.SourceMidiNote, Value: 60, State: trigger.StateDown}},
		{"note off", NoteOffEvent{BaseEvent{0}, 60}, trigger.Event{Source: trigger.SourceMidiNote, Value: 60, State: trigger.StateUp}},
		{"pedal down", ControlChangeEvent{BaseEvent{0}, 64, 64}, trigger.Event{Source: trigger.SourceMidiCC, Value: 64, State: trigger.StateDown}},
		{"pedal up", ControlChangeEvent{BaseEvent{0}, 64, 63}, trigger.Event{Source: trigger.SourceMidiCC, Value: 64, State: trigger.StateUp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToTrigger(tt.in)
			if !ok || got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEventString(t *testing.T) {
	ev := NoteOnEvent{BaseEvent{0}, 60, 64}
	if got, want := ev.String(), "NoteOn{ch:0, note:60, vel:64}"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through:0", "FCB1010 Pedal:1"}
	if got := matchPort(names, "pedal"); got != 1 {
		t.Errorf("Expected port 1, got %d", got)
	}
	if got := matchPort(names, ""); got != 0 {
		t.Errorf("Expected the first port, got %d", got)
	}
	if got := matchPort(names, "launchpad"); got != -1 {
		t.Errorf("Expected no match, got %d", got)
	}
}

func TestEventQueueDropsWhenFull(t *testing.T) {
	q := NewEventQueue(2)
	ev := trigger.Event{Source: trigger.SourceMidiNote, Value: 1}
	for i := 0; i < 3; i++ {
		q.Add(ev)
	}
	if q.Size() != 2 || q.Dropped() != 1 {
		t.Errorf("Expected 2 queued and 1 dropped, got %d and %d", q.Size(), q.Dropped())
	}
}

func TestDrain(t *testing.T) {
	q := NewEventQueue(4)
	q.Add(trigger.Event{Source: trigger.SourceMidiCC, Value: 7, State: trigger.StateDown})

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan trigger.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- Drain(ctx, q, func(ev trigger.Event) { got <- ev })
	}()

	select {
	case ev := <-got:
		if ev.Value != 7 {
			t.Errorf("Expected controller 7, got %d", ev.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected a clean stop, got %v", err)
	}
}
