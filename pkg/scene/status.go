package scene

import (
	"github.com/justyntemme/loopstation/pkg/device"
	"github.com/justyntemme/loopstation/pkg/dsp/gain"
	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/loop"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

// Status is a snapshot of the scene for display.
type Status struct {
	HasDevice    bool
	Device       device.Info
	MasterLength int
	Phase        int
	Unsaved      bool
	PendingJobs  int
	Callback     debug.Measurement
	Stations     []StationStatus
}

// StationStatus describes one station.
type StationStatus struct {
	Name     string
	Triggers []TriggerStatus
	Takes    []TakeStatus
}

// TriggerStatus describes one trigger.
type TriggerStatus struct {
	Name  string
	State trigger.State
}

// TakeStatus describes one take.
type TakeStatus struct {
	ID      loop.TakeID
	Name    string
	State   loop.State
	Length  int
	Loops   int
	Overdub bool
	Muted   bool
	LevelDb float32
}

// Status returns a snapshot of the scene.
func (s *Scene) Status() Status {
	s.mu.Lock()
	st := Status{
		HasDevice:    s.dev != nil,
		MasterLength: s.clock.MasterLength(),
		Phase:        s.clock.Phase(),
		Unsaved:      s.dirty,
		Callback:     s.profiler.Measurement(),
	}
	if s.dev != nil {
		st.Device = s.dev.Info()
	}
	for _, station := range s.stations {
		ss := StationStatus{Name: station.Name()}
		for _, t := range station.Triggers() {
			ss.Triggers = append(ss.Triggers, TriggerStatus{Name: t.Name(), State: t.State()})
		}
		for _, take := range station.Takes() {
			ts := TakeStatus{
				ID:      take.ID(),
				Name:    take.Name(),
				State:   take.State(),
				Length:  take.Length(),
				Loops:   len(take.Loops()),
				Overdub: take.IsOverdub(),
			}
			if loops := take.Loops(); len(loops) > 0 {
				ts.Muted = loops[0].Muted()
				ts.LevelDb = gain.LinearToDb32(loops[0].Mixer().Level())
			}
			ss.Takes = append(ss.Takes, ts)
		}
		st.Stations = append(st.Stations, ss)
	}
	s.mu.Unlock()

	st.PendingJobs = s.jobs.Len()
	return st
}
