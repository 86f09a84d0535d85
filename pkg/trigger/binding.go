package trigger

import "fmt"

// Source identifies the kind of physical control an event came from.
type Source int

const (
	// SourceKey is a computer keyboard key, Value is the key code.
	SourceKey Source = iota
	// SourceMidiNote is a MIDI note, Value is the note number.
	SourceMidiNote
	// SourceMidiCC is a MIDI controller, Value is the controller number.
	SourceMidiCC
)

// String returns the rig file name of the source.
func (s Source) String() string {
	switch s {
	case SourceKey:
		return "key"
	case SourceMidiNote:
		return "midinote"
	case SourceMidiCC:
		return "midicc"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(name string) (Source, bool) {
	switch name {
	case "key":
		return SourceKey, true
	case "midinote":
		return SourceMidiNote, true
	case "midicc":
		return SourceMidiCC, true
	}
	return 0, false
}

// KeyState is the raw up/down state carried by an event.
type KeyState int

const (
	StateUp KeyState = iota
	StateDown
)

// String returns "down" or "up".
func (s KeyState) String() string {
	if s == StateDown {
		return "down"
	}
	return "up"
}

// Event is a raw input event from a keyboard or MIDI port.
type Event struct {
	Source Source
	Value  int
	State  KeyState
}

// Signature matches one kind of raw event.
type Signature struct {
	Source Source
	Value  int
	State  KeyState
}

// Matches reports whether the event carries this signature.
func (s Signature) Matches(source Source, value int, state KeyState) bool {
	return s.Source == source && s.Value == value && s.State == state
}

// Match classifies a raw event against a binding.
type Match int

const (
	MatchNone Match = iota
	MatchDown
	MatchRelease
)

// DualBinding pairs a down signature with an optional release signature.
// While a binding with a release is held, further down matches are
// suppressed until the release is seen.
type DualBinding struct {
	Down       Signature
	Release    Signature
	HasRelease bool

	isDown bool
}

// KeyBinding binds a key's press and release.
func KeyBinding(code int) DualBinding {
	return PressRelease(SourceKey, code)
}

// PressRelease binds the down and up events of one control.
func PressRelease(source Source, value int) DualBinding {
	return DualBinding{
		Down:       Signature{Source: source, Value: value, State: StateDown},
		Release:    Signature{Source: source, Value: value, State: StateUp},
		HasRelease: true,
	}
}

// Momentary binds only the down event; the release is implied.
func Momentary(source Source, value int) DualBinding {
	return DualBinding{
		Down: Signature{Source: source, Value: value, State: StateDown},
	}
}

// OnTrigger classifies the event and tracks whether the binding is held.
func (b *DualBinding) OnTrigger(source Source, value int, state KeyState) Match {
	if b.Down.Matches(source, value, state) {
		if b.HasRelease && b.isDown {
			return MatchNone
		}
		b.isDown = b.HasRelease
		return MatchDown
	}
	if b.HasRelease && b.Release.Matches(source, value, state) {
		b.isDown = false
		return MatchRelease
	}
	return MatchNone
}

// IsDown reports whether the binding is currently held.
func (b *DualBinding) IsDown() bool {
	return b.isDown
}

// Reset re-arms the binding.
func (b *DualBinding) Reset() {
	b.isDown = false
}
