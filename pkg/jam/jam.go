// Package jam reads and writes the two JSON documents a performance is
// described by: the jam, which lists stations, takes and loops, and the rig,
// which holds audio settings and trigger bindings.
//
// Parsing is forgiving below the document level. A station, take, loop or
// trigger that cannot be built is logged and skipped; only a document that is
// not JSON at all, or is from a newer version, fails as a whole.
package jam

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/mixer"
)

// Version is the jam format written by Save.
const Version = 1

// ErrNoMix is returned by Mix.Behaviour when neither routing is set.
var ErrNoMix = errors.New("mix has neither wire nor pan")

// Jam is a saved performance.
type Jam struct {
	Version      int       `json:"version"`
	Name         string    `json:"name"`
	MasterLength int       `json:"masterLength"`
	MasterPhase  int       `json:"masterPhase,omitempty"`
	Stations     []Station `json:"stations"`
}

// Station lists the takes of one station and the rig triggers driving it.
type Station struct {
	Name      string   `json:"name"`
	Triggers  []string `json:"triggers,omitempty"`
	LoopTakes []Take   `json:"loopTakes"`
}

// Take groups loops recorded together.
type Take struct {
	Name    string `json:"name"`
	Overdub bool   `json:"overdub,omitempty"`
	Loops   []Loop `json:"loops"`
}

// Loop describes one loop. File is relative to the jam file.
type Loop struct {
	Name            string  `json:"name"`
	File            string  `json:"file"`
	Length          int     `json:"length"`
	Index           int     `json:"index"`
	MasterLoopCount int     `json:"masterLoopCount"`
	Level           float32 `json:"level"`
	Speed           float32 `json:"speed"`
	MuteGroups      uint32  `json:"muteGroups"`
	SelectGroups    uint32  `json:"selectGroups"`
	Muted           bool    `json:"muted"`
	InputChannel    int     `json:"inputChannel"`
	Mix             Mix     `json:"mix"`
}

// Mix is the JSON form of mixer.Behaviour: exactly one of Wire or Pan.
type Mix struct {
	Wire []int     `json:"wire,omitempty"`
	Pan  []float32 `json:"pan,omitempty"`
}

type mixJSON struct {
	Wire *[]int     `json:"wire,omitempty"`
	Pan  *[]float32 `json:"pan,omitempty"`
}

// MarshalJSON keeps an empty but present routing list in the output.
func (m Mix) MarshalJSON() ([]byte, error) {
	var out mixJSON
	if m.Wire != nil {
		out.Wire = &m.Wire
	}
	if m.Pan != nil {
		out.Pan = &m.Pan
	}
	return json.Marshal(out)
}

// MixFrom converts a mixer behaviour to its JSON form.
func MixFrom(b mixer.Behaviour) Mix {
	switch v := b.(type) {
	case mixer.Wire:
		return Mix{Wire: append([]int{}, v.Channels...)}
	case mixer.Pan:
		return Mix{Pan: append([]float32{}, v.Levels...)}
	}
	return Mix{}
}

// Behaviour converts the mix back to a mixer behaviour.
func (m Mix) Behaviour() (mixer.Behaviour, error) {
	switch {
	case m.Wire != nil && m.Pan != nil:
		return nil, errors.New("mix has both wire and pan")
	case m.Wire != nil:
		for _, ch := range m.Wire {
			if ch < 0 {
				return nil, errors.Errorf("wire channel %d is negative", ch)
			}
		}
		return mixer.Wire{Channels: append([]int(nil), m.Wire...)}, nil
	case m.Pan != nil:
		return mixer.Pan{Levels: append([]float32(nil), m.Pan...)}, nil
	}
	return nil, ErrNoMix
}

// LoopFile names the audio file of a loop within a saved jam.
func LoopFile(station, take, loop int) string {
	return fmt.Sprintf("%d-%d-%d.wav", station, take, loop)
}

// Load reads and parses a jam file.
func Load(path string, log *debug.Logger) (*Jam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read jam %s", path)
	}
	j, err := Parse(data, log)
	if err != nil {
		return nil, errors.Wrapf(err, "parse jam %s", path)
	}
	return j, nil
}

type rawJam struct {
	Version      int               `json:"version"`
	Name         string            `json:"name"`
	MasterLength int               `json:"masterLength"`
	MasterPhase  int               `json:"masterPhase"`
	Stations     []json.RawMessage `json:"stations"`
}

type rawStation struct {
	Name      string            `json:"name"`
	Triggers  []string          `json:"triggers"`
	LoopTakes []json.RawMessage `json:"loopTakes"`
}

type rawTake struct {
	Name    string            `json:"name"`
	Overdub bool              `json:"overdub"`
	Loops   []json.RawMessage `json:"loops"`
}

// Parse decodes a jam document, skipping entities that cannot be built.
func Parse(data []byte, log *debug.Logger) (*Jam, error) {
	if log == nil {
		log = debug.Default()
	}
	var raw rawJam
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode jam")
	}
	if raw.Version > Version {
		return nil, errors.Errorf("jam version %d is newer than supported version %d", raw.Version, Version)
	}

	j := &Jam{Version: Version, Name: raw.Name, MasterLength: raw.MasterLength, MasterPhase: raw.MasterPhase}
	if j.MasterLength < 0 {
		log.Warn("jam %q: ignoring negative master length %d", j.Name, j.MasterLength)
		j.MasterLength = 0
	}
	if j.MasterPhase < 0 || j.MasterPhase >= j.MasterLength {
		j.MasterPhase = 0
	}
	for i, msg := range raw.Stations {
		st, err := parseStation(msg, log)
		if err != nil {
			log.Warn("jam %q: skipping station %d: %v", j.Name, i, err)
			continue
		}
		j.Stations = append(j.Stations, st)
	}
	return j, nil
}

func parseStation(msg json.RawMessage, log *debug.Logger) (Station, error) {
	var raw rawStation
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Station{}, errors.Wrap(err, "decode station")
	}
	st := Station{Name: raw.Name, Triggers: raw.Triggers}
	for i, tm := range raw.LoopTakes {
		take, err := parseTake(tm, log)
		if err != nil {
			log.Warn("station %q: skipping take %d: %v", st.Name, i, err)
			continue
		}
		st.LoopTakes = append(st.LoopTakes, take)
	}
	return st, nil
}

func parseTake(msg json.RawMessage, log *debug.Logger) (Take, error) {
	var raw rawTake
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Take{}, errors.Wrap(err, "decode take")
	}
	take := Take{Name: raw.Name, Overdub: raw.Overdub}
	for i, lm := range raw.Loops {
		l, err := parseLoop(lm)
		if err != nil {
			log.Warn("take %q: skipping loop %d: %v", take.Name, i, err)
			continue
		}
		take.Loops = append(take.Loops, l)
	}
	if len(take.Loops) == 0 {
		return Take{}, errors.Errorf("take %q has no usable loops", take.Name)
	}
	return take, nil
}

func parseLoop(msg json.RawMessage) (Loop, error) {
	l := Loop{Level: 1, Speed: 1}
	if err := json.Unmarshal(msg, &l); err != nil {
		return Loop{}, errors.Wrap(err, "decode loop")
	}
	switch {
	case l.File == "":
		return Loop{}, errors.Errorf("loop %q has no audio file", l.Name)
	case l.Length <= 0:
		return Loop{}, errors.Errorf("loop %q has length %d", l.Name, l.Length)
	case l.Level < 0:
		return Loop{}, errors.Errorf("loop %q has negative level", l.Name)
	case l.InputChannel < 0:
		return Loop{}, errors.Errorf("loop %q has input channel %d", l.Name, l.InputChannel)
	}
	if _, err := l.Mix.Behaviour(); err != nil {
		return Loop{}, errors.Wrapf(err, "loop %q", l.Name)
	}
	if l.Speed <= 0 {
		l.Speed = 1
	}
	if l.MasterLoopCount < 1 {
		l.MasterLoopCount = 1
	}
	return l, nil
}

// Save writes the jam as indented JSON. The file is replaced atomically.
func (j *Jam) Save(path string) error {
	j.Version = Version
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode jam")
	}
	return writeFileAtomic(path, append(data, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
