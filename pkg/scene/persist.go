package scene

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/jam"
	"github.com/justyntemme/loopstation/pkg/loop"
	"github.com/justyntemme/loopstation/pkg/station"
	"github.com/justyntemme/loopstation/pkg/wav"
)

type loopAudio struct {
	file    string
	samples []float32
}

// Save writes the performance to a jam file with one wav per loop beside it.
// Only playing loops are saved. Loop audio is copied under the audio lock and
// written after it is released.
func (s *Scene) Save(path string) error {
	s.mu.Lock()
	doc, audio := s.snapshotLocked()
	rate := int(s.cfg.Audio.SampleRate)
	s.mu.Unlock()

	dir := filepath.Dir(path)
	for _, a := range audio {
		if err := wav.Write(filepath.Join(dir, a.file), a.samples, rate); err != nil {
			return errors.Wrap(err, "save loop audio")
		}
	}
	if err := doc.Save(path); err != nil {
		return errors.Wrapf(err, "save jam %s", path)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.log.Info("saved %s (%d loops)", path, len(audio))
	return nil
}

func (s *Scene) snapshotLocked() (*jam.Jam, []loopAudio) {
	doc := &jam.Jam{
		Name:         s.cfg.Name,
		MasterLength: s.clock.MasterLength(),
		MasterPhase:  s.clock.Phase(),
	}
	var audio []loopAudio
	for si, st := range s.stations {
		js := jam.Station{Name: st.Name()}
		for _, t := range st.Triggers() {
			js.Triggers = append(js.Triggers, t.Name())
		}
		for ti, take := range st.Takes() {
			jt := jam.Take{Name: take.Name(), Overdub: take.IsOverdub()}
			for li, l := range take.Loops() {
				// Open overdubs and unfinished tails would load as playing.
				if l.State() != loop.Playing {
					continue
				}
				samples := l.Samples()
				if samples == nil {
					continue
				}
				file := jam.LoopFile(si, ti, li)
				jt.Loops = append(jt.Loops, jam.Loop{
					Name:            l.Name(),
					File:            file,
					Length:          l.Length(),
					Index:           l.PlayIndex(),
					MasterLoopCount: l.MasterLoopCount(),
					Level:           l.Mixer().Level(),
					Speed:           l.Speed(),
					MuteGroups:      l.MuteGroups(),
					SelectGroups:    l.SelectGroups(),
					Muted:           l.Muted(),
					InputChannel:    l.InputChannel(),
					Mix:             jam.MixFrom(l.Mixer().Behaviour()),
				})
				audio = append(audio, loopAudio{file: file, samples: samples})
			}
			if len(jt.Loops) > 0 {
				js.LoopTakes = append(js.LoopTakes, jt)
			}
		}
		doc.Stations = append(doc.Stations, js)
	}
	return doc, audio
}

// Load replaces every take with those of a saved jam. Stations are matched
// by name, then by position; jam stations with no match are added without
// triggers.
func (s *Scene) Load(path string) error {
	doc, err := jam.Load(path, s.log)
	if err != nil {
		return err
	}
	return s.LoadJam(doc, filepath.Dir(path))
}

type loadedTake struct {
	take  jam.Take
	audio [][]float32
}

// LoadJam applies a parsed jam whose loop files live in dir. Loops whose audio
// cannot be read are skipped with a warning. Audio recorded at another sample
// rate is loaded unchanged and also warned about.
func (s *Scene) LoadJam(doc *jam.Jam, dir string) error {
	s.mu.Lock()
	maxSamples := int(s.cfg.MaxLoopSeconds*s.cfg.Audio.SampleRate) + int(s.cfg.FadeMs*s.cfg.Audio.SampleRate/1000)
	rate := int(s.cfg.Audio.SampleRate)
	s.mu.Unlock()

	loaded := make([][]loadedTake, len(doc.Stations))
	for si, js := range doc.Stations {
		for _, jt := range js.LoopTakes {
			lt := loadedTake{take: jam.Take{Name: jt.Name, Overdub: jt.Overdub}}
			for _, jl := range jt.Loops {
				sound, err := wav.Read(filepath.Join(dir, jl.File), maxSamples)
				if err != nil {
					s.log.Warn("station %q take %q: skipping loop %q: %v", js.Name, jt.Name, jl.Name, err)
					continue
				}
				if sound.SampleRate != rate {
					s.log.Warn("station %q take %q: loop %q was recorded at %d Hz and plays at %d Hz",
						js.Name, jt.Name, jl.Name, sound.SampleRate, rate)
				}
				lt.take.Loops = append(lt.take.Loops, jl)
				lt.audio = append(lt.audio, sound.Samples)
			}
			if len(lt.audio) > 0 {
				loaded[si] = append(loaded[si], lt)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stations {
		st.Clear()
	}

	count := 0
	for si, js := range doc.Stations {
		st := s.matchStationLocked(js.Name, si)
		var last loop.TakeID
		for _, lt := range loaded[si] {
			take := buildTake(st, lt)
			if take == nil {
				continue
			}
			st.AddTake(take)
			last = take.ID()
			count += len(take.Loops())
		}
		if last != 0 {
			for _, t := range st.Triggers() {
				t.SetTargetID(int(last))
			}
		}
	}

	switch {
	case doc.MasterLength > 0 && count > 0:
		s.clock.Restore(doc.MasterLength, doc.MasterPhase)
	case count > 0:
		s.clock.Fix(s.firstLengthLocked())
	}
	s.states = make(map[LoopHandle]loop.State)
	s.dirty = false
	s.log.Info("loaded %d loops", count)
	return nil
}

func (s *Scene) matchStationLocked(name string, index int) *station.Station {
	for _, st := range s.stations {
		if st.Name() == name {
			return st
		}
	}
	if index < len(s.stations) {
		return s.stations[index]
	}
	s.log.Warn("station %q has no triggers in this rig", name)
	st := station.New(s.stationConfig(name), s.clock)
	s.stations = append(s.stations, st)
	return st
}

func (s *Scene) firstLengthLocked() int {
	for _, st := range s.stations {
		for _, take := range st.Takes() {
			if n := take.Length(); n > 0 {
				return n
			}
		}
	}
	return 0
}

func buildTake(st *station.Station, lt loadedTake) *loop.Take {
	take := loop.NewTake(st.NextTakeID(), lt.take.Name)
	take.SetOverdub(lt.take.Overdub)
	for i, jl := range lt.take.Loops {
		behaviour, err := jl.Mix.Behaviour()
		if err != nil {
			continue
		}
		cfg := st.LoopConfig(jl.InputChannel, lt.take.Overdub)
		cfg.Behaviour = behaviour
		l := loop.New(loop.ID(i), cfg)
		if !l.Load(lt.audio[i], jl.Length, jl.Index) {
			continue
		}
		l.SetName(jl.Name)
		l.SetLevel(jl.Level)
		l.SetSpeed(jl.Speed)
		l.SetMasterLoopCount(jl.MasterLoopCount)
		l.SetGroups(jl.MuteGroups, jl.SelectGroups)
		l.SetMuted(jl.Muted)
		l.Mixer().Snap()
		l.ClearChanges()
		take.AddLoop(l)
	}
	if len(take.Loops()) == 0 {
		return nil
	}
	return take
}
