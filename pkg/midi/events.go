// Package midi turns messages from a MIDI input port into trigger events.
package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

type EventType uint8

const (
	EventTypeNoteOff EventType = iota
	EventTypeNoteOn
	EventTypeControlChange
)

// Event is a decoded channel message the looper reacts to.
type Event interface {
	Type() EventType
	Channel() uint8
	String() string
}

type BaseEvent struct {
	EventChannel uint8
}

func (e BaseEvent) Channel() uint8 {
	return e.EventChannel
}

type NoteOnEvent struct {
	BaseEvent
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOnEvent) Type() EventType {
	return EventTypeNoteOn
}

func (e NoteOnEvent) String() string {
	return fmt.Sprintf("NoteOn{ch:%d, note:%d, vel:%d}", e.EventChannel, e.NoteNumber, e.Velocity)
}

type NoteOffEvent struct {
	BaseEvent
	NoteNumber uint8
}

func (e NoteOffEvent) Type() EventType {
	return EventTypeNoteOff
}

func (e NoteOffEvent) String() string {
	return fmt.Sprintf("NoteOff{ch:%d, note:%d}", e.EventChannel, e.NoteNumber)
}

type ControlChangeEvent struct {
	BaseEvent
	Controller uint8
	Value      uint8
}

func (e ControlChangeEvent) Type() EventType {
	return EventTypeControlChange
}

func (e ControlChangeEvent) String() string {
	return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d}", e.EventChannel, e.Controller, e.Value)
}

// CCDownThreshold is the lowest controller value read as a pressed pedal,
// as for the sustain pedal.
const CCDownThreshold uint8 = 64

// Decode extracts a note or controller event from a raw message. A note on
// with zero velocity decodes as a note off.
func Decode(msg midi.Message) (Event, bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return NoteOnEvent{BaseEvent{ch}, key, vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return NoteOffEvent{BaseEvent{ch}, key}, true
	case msg.GetControlChange(&ch, &cc, &val):
		return ControlChangeEvent{BaseEvent{ch}, cc, val}, true
	}
	return nil, false
}

// ToTrigger maps a decoded event onto the trigger event space. Notes become
// SourceMidiNote and controllers SourceMidiCC; the MIDI channel is not part
// of the signature.
func ToTrigger(e Event) (trigger.Event, bool) {
	switch v := e.(type) {
	case NoteOnEvent:
		return trigger.Event{Source: trigger.SourceMidiNote, Value: int(v.NoteNumber), State: trigger.StateDown}, true
	case NoteOffEvent:
		return trigger.Event{Source: trigger.SourceMidiNote, Value: int(v.NoteNumber), State: trigger.StateUp}, true
	case ControlChangeEvent:
		state := trigger.StateUp
		if v.Value >= CCDownThreshold {
			state = trigger.StateDown
		}
		return trigger.Event{Source: trigger.SourceMidiCC, Value: int(v.Controller), State: state}, true
	}
	return trigger.Event{}, false
}
