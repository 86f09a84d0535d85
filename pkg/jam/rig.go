package jam

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

// Default key and MIDI note bindings of DefaultRig.
const (
	DefaultActivateKey  = '1'
	DefaultDitchKey     = '2'
	DefaultActivateNote = 60
	DefaultDitchNote    = 61
)

// Rig holds a performer's audio settings and trigger bindings.
type Rig struct {
	Name     string    `json:"name"`
	Audio    Audio     `json:"audio"`
	FadeMs   float64   `json:"fadeMs,omitempty"`
	MaxLoopS float64   `json:"maxLoopSeconds,omitempty"`
	Triggers []Trigger `json:"triggers"`
}

// Audio describes the device to open.
type Audio struct {
	DeviceName     string  `json:"deviceName"`
	SampleRate     float64 `json:"sampleRate"`
	BufferSize     int     `json:"bufferSize"`
	Latency        int     `json:"latency"`
	NumChannelsIn  int     `json:"numChannelsIn"`
	NumChannelsOut int     `json:"numChannelsOut"`
}

// Trigger describes one trigger and the input channels its takes record.
type Trigger struct {
	Name          string    `json:"name"`
	Activate      []Binding `json:"activate"`
	Ditch         []Binding `json:"ditch"`
	DebounceMs    int       `json:"debounceMs"`
	InputChannels []int     `json:"inputChannels"`
}

// Binding is a down signature with an optional release. Without a release
// the binding is momentary.
type Binding struct {
	Down    Signature  `json:"down"`
	Release *Signature `json:"release,omitempty"`
}

// Signature names a physical control: a key code, MIDI note or MIDI CC.
type Signature struct {
	Source string `json:"source"`
	Value  int    `json:"value"`
}

// DefaultRig is used when no rig file is given: one trigger on keys 1 and 2
// and MIDI notes 60 and 61, recording input 0 into a stereo output.
func DefaultRig() *Rig {
	return &Rig{
		Name: "default",
		Audio: Audio{
			SampleRate:     48000,
			BufferSize:     256,
			NumChannelsIn:  1,
			NumChannelsOut: 2,
		},
		FadeMs:   5,
		MaxLoopS: 120,
		Triggers: []Trigger{{
			Name: "loop",
			Activate: []Binding{
				pressRelease(trigger.SourceKey, DefaultActivateKey),
				pressRelease(trigger.SourceMidiNote, DefaultActivateNote),
			},
			Ditch: []Binding{
				pressRelease(trigger.SourceKey, DefaultDitchKey),
				pressRelease(trigger.SourceMidiNote, DefaultDitchNote),
			},
			DebounceMs:    20,
			InputChannels: []int{0},
		}},
	}
}

func pressRelease(source trigger.Source, value int) Binding {
	sig := Signature{Source: source.String(), Value: value}
	release := sig
	return Binding{Down: sig, Release: &release}
}

// LoadRig reads and parses a rig file.
func LoadRig(path string, log *debug.Logger) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rig %s", path)
	}
	r, err := ParseRig(data, log)
	if err != nil {
		return nil, errors.Wrapf(err, "parse rig %s", path)
	}
	return r, nil
}

type rawRig struct {
	Name     string            `json:"name"`
	Audio    Audio             `json:"audio"`
	FadeMs   float64           `json:"fadeMs"`
	MaxLoopS float64           `json:"maxLoopSeconds"`
	Triggers []json.RawMessage `json:"triggers"`
}

// ParseRig decodes a rig. Missing audio settings take the DefaultRig values;
// triggers that cannot be built are logged and skipped.
func ParseRig(data []byte, log *debug.Logger) (*Rig, error) {
	if log == nil {
		log = debug.Default()
	}
	def := DefaultRig()
	raw := rawRig{Audio: def.Audio, FadeMs: def.FadeMs, MaxLoopS: def.MaxLoopS}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode rig")
	}

	r := &Rig{Name: raw.Name, Audio: raw.Audio, FadeMs: raw.FadeMs, MaxLoopS: raw.MaxLoopS}
	if r.Audio.SampleRate <= 0 {
		r.Audio.SampleRate = def.Audio.SampleRate
	}
	if r.Audio.BufferSize <= 0 {
		r.Audio.BufferSize = def.Audio.BufferSize
	}
	if r.Audio.Latency < 0 {
		r.Audio.Latency = 0
	}
	if r.Audio.NumChannelsIn < 0 {
		r.Audio.NumChannelsIn = 0
	}
	if r.Audio.NumChannelsOut <= 0 {
		r.Audio.NumChannelsOut = def.Audio.NumChannelsOut
	}

	for i, msg := range raw.Triggers {
		var t Trigger
		if err := json.Unmarshal(msg, &t); err != nil {
			log.Warn("rig %q: skipping trigger %d: %v", r.Name, i, err)
			continue
		}
		if _, err := t.Build(); err != nil {
			log.Warn("rig %q: skipping trigger %d: %v", r.Name, i, err)
			continue
		}
		r.Triggers = append(r.Triggers, t)
	}
	return r, nil
}

// Save writes the rig as indented JSON.
func (r *Rig) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode rig")
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Trigger returns the rig trigger with the given name.
func (r *Rig) Trigger(name string) (Trigger, bool) {
	for _, t := range r.Triggers {
		if t.Name == name {
			return t, true
		}
	}
	return Trigger{}, false
}

// Build creates the runtime trigger.
func (t Trigger) Build() (*trigger.Trigger, error) {
	if t.Name == "" {
		return nil, errors.New("trigger has no name")
	}
	if len(t.Activate) == 0 {
		return nil, errors.Errorf("trigger %q has no activate binding", t.Name)
	}
	if t.DebounceMs < 0 {
		return nil, errors.Errorf("trigger %q has negative debounce", t.Name)
	}
	for _, ch := range t.InputChannels {
		if ch < 0 {
			return nil, errors.Errorf("trigger %q has input channel %d", t.Name, ch)
		}
	}

	activate, err := buildBindings(t.Activate)
	if err != nil {
		return nil, errors.Wrapf(err, "trigger %q activate", t.Name)
	}
	ditch, err := buildBindings(t.Ditch)
	if err != nil {
		return nil, errors.Wrapf(err, "trigger %q ditch", t.Name)
	}

	channels := t.InputChannels
	if len(channels) == 0 {
		channels = []int{0}
	}
	return trigger.NewBuilder(t.Name).
		Activate(activate...).
		Ditch(ditch...).
		DebounceMs(t.DebounceMs).
		InputChannels(channels...).
		Build(), nil
}

func buildBindings(bindings []Binding) ([]trigger.DualBinding, error) {
	out := make([]trigger.DualBinding, 0, len(bindings))
	for _, b := range bindings {
		down, err := b.Down.signature(trigger.StateDown)
		if err != nil {
			return nil, err
		}
		if b.Release == nil {
			out = append(out, trigger.DualBinding{Down: down})
			continue
		}
		release, err := b.Release.signature(trigger.StateUp)
		if err != nil {
			return nil, err
		}
		out = append(out, trigger.DualBinding{Down: down, Release: release, HasRelease: true})
	}
	return out, nil
}

func (s Signature) signature(state trigger.KeyState) (trigger.Signature, error) {
	source, ok := trigger.ParseSource(s.Source)
	if !ok {
		return trigger.Signature{}, errors.Errorf("unknown source %q", s.Source)
	}
	return trigger.Signature{Source: source, Value: s.Value, State: state}, nil
}
