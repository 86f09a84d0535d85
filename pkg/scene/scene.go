// Package scene runs the audio callback. It owns the device binding, the
// channel mixer and the stations, and serialises everything that touches loop
// buffers behind one audio lock.
//
// Lock order: the audio lock and the job queue lock are never held together.
// Device start and close happen outside the audio lock because both may wait
// for a callback that is itself waiting for the lock.
package scene

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/device"
	"github.com/justyntemme/loopstation/pkg/dsp/gain"
	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/loop"
	"github.com/justyntemme/loopstation/pkg/mixer"
	"github.com/justyntemme/loopstation/pkg/station"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

// ErrShortBuffer is returned by OnAudio when the device buffers hold fewer
// frames than it was asked to render. The frames that fit are rendered.
var ErrShortBuffer = errors.New("audio buffer shorter than block")

// StationID indexes the scene's stations.
type StationID int

// NoStation marks an action no station reacted to.
const NoStation StationID = -1

// maxLevelDb caps AdjustTakeLevel.
const maxLevelDb = 12

// LoopHandle addresses a loop without holding a pointer to it. A handle whose
// station, take or loop is gone no longer resolves.
type LoopHandle struct {
	Station StationID
	Take    loop.TakeID
	Loop    loop.ID
}

// InputEvent is a raw key or MIDI event.
type InputEvent trigger.Event

// ActionResult reports whether any trigger consumed an event and which
// station it belonged to.
type ActionResult struct {
	IsEaten       bool
	ActiveElement StationID
}

// Config sizes a scene.
type Config struct {
	Name  string
	Audio device.Config
	// Latency delays the output rings by this many frames on top of the
	// block.
	Latency         int
	FadeMs          float64
	MaxLoopSeconds  float64
	WaveformBuckets int
}

// Scene is the performance: stations sharing one clock, rendered by one
// device callback.
type Scene struct {
	mu       sync.Mutex
	cfg      Config
	clock    *loop.Clock
	stations []*station.Station
	channels *mixer.ChannelMixer
	dev      device.Device
	states   map[LoopHandle]loop.State
	dirty    bool

	jobs     *JobQueue
	profiler *debug.Profiler
	log      *debug.Logger
}

// New creates a scene with no device. Audio settings in cfg size the channel
// mixer until InitAudio binds a device.
func New(cfg Config, log *debug.Logger) *Scene {
	if log == nil {
		log = debug.Default().Named("scene")
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.BlockSize <= 0 {
		cfg.Audio.BlockSize = 256
	}
	if cfg.Audio.NumOutputs <= 0 {
		cfg.Audio.NumOutputs = 2
	}
	if cfg.Audio.NumInputs < 0 {
		cfg.Audio.NumInputs = 0
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	if cfg.MaxLoopSeconds <= 0 {
		cfg.MaxLoopSeconds = 120
	}
	if cfg.WaveformBuckets <= 0 {
		cfg.WaveformBuckets = 256
	}
	return &Scene{
		cfg:      cfg,
		clock:    loop.NewClock(),
		channels: mixer.NewChannelMixer(cfg.Audio.NumInputs, cfg.Audio.NumOutputs, cfg.Audio.BlockSize, cfg.Latency),
		states:   make(map[LoopHandle]loop.State),
		jobs:     NewJobQueue(),
		profiler: debug.NewProfiler(cfg.Audio.SampleRate, cfg.Audio.BlockSize),
		log:      log,
	}
}

// Jobs returns the background job queue.
func (s *Scene) Jobs() *JobQueue { return s.jobs }

// Clock returns the shared clock. Use it under the audio lock only, as
// through Do.
func (s *Scene) Clock() *loop.Clock { return s.clock }

// Do runs fn under the audio lock.
func (s *Scene) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Scene) stationConfig(name string) station.Config {
	sr := s.cfg.Audio.SampleRate
	fade := int(s.cfg.FadeMs * sr / 1000)
	return station.Config{
		Name:           name,
		SampleRate:     sr,
		FadeSamples:    fade,
		MaxLoopSamples: fade + int(s.cfg.MaxLoopSeconds*sr),
		NumOutputs:     s.cfg.Audio.NumOutputs,
	}
}

// AddStation creates a station driven by triggers.
func (s *Scene) AddStation(name string, triggers ...*trigger.Trigger) StationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := station.New(s.stationConfig(name), s.clock)
	for _, t := range triggers {
		st.AddTrigger(t)
	}
	s.stations = append(s.stations, st)
	return StationID(len(s.stations) - 1)
}

// Station returns a station by id. Use it under the audio lock only.
func (s *Scene) Station(id StationID) (*station.Station, bool) {
	if id < 0 || int(id) >= len(s.stations) {
		return nil, false
	}
	return s.stations[id], true
}

// NumStations returns the number of stations.
func (s *Scene) NumStations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stations)
}

func (s *Scene) resolve(h LoopHandle) (*loop.Loop, bool) {
	st, ok := s.Station(h.Station)
	if !ok {
		return nil, false
	}
	take, ok := st.Take(h.Take)
	if !ok {
		return nil, false
	}
	return take.Loop(h.Loop)
}

// InitAudio opens and starts a device, replacing any bound one. With a nil
// opener the scene runs without audio. It reports whether a device is
// running.
func (s *Scene) InitAudio(open device.Opener) bool {
	s.CloseAudio()
	if open == nil {
		s.log.Info("running without an audio device")
		return false
	}

	dev, err := open(s.cfg.Audio, s.OnAudio, s.onDeviceError)
	if err != nil {
		s.log.Error("open audio device: %v", err)
		return false
	}
	info := dev.Info()

	s.mu.Lock()
	s.dev = dev
	s.bindLocked(info)
	s.mu.Unlock()

	if err := dev.Start(); err != nil {
		s.log.Error("start audio device %s: %v", info.Name, err)
		s.CloseAudio()
		return false
	}
	s.log.Info("audio on %s: %.0f Hz, %d frames, %d in, %d out",
		info.Name, info.SampleRate, info.BlockSize, info.NumInputs, info.NumOutputs)
	return true
}

// bindLocked resizes the scene to what the device opened.
func (s *Scene) bindLocked(info device.Info) {
	if info.SampleRate != s.cfg.Audio.SampleRate {
		s.log.Warn("device runs at %.0f Hz, asked for %.0f Hz", info.SampleRate, s.cfg.Audio.SampleRate)
	}
	s.cfg.Audio.SampleRate = info.SampleRate
	s.cfg.Audio.BlockSize = info.BlockSize
	s.cfg.Audio.NumInputs = info.NumInputs
	s.cfg.Audio.NumOutputs = info.NumOutputs
	s.channels = mixer.NewChannelMixer(info.NumInputs, info.NumOutputs, info.BlockSize, s.cfg.Latency)
	s.profiler.SetBlock(info.SampleRate, info.BlockSize)
	s.profiler.Reset()
	for _, st := range s.stations {
		st.SetConfig(s.stationConfig(st.Name()))
	}
}

// CloseAudio stops and releases the device, if any.
func (s *Scene) CloseAudio() {
	s.mu.Lock()
	dev := s.dev
	s.dev = nil
	s.mu.Unlock()

	if dev == nil {
		return
	}
	if err := dev.Close(); err != nil {
		s.log.Warn("close audio device: %v", err)
	}
}

// HasAudio reports whether a device is bound.
func (s *Scene) HasAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

func (s *Scene) onDeviceError(err error) {
	// Runs on the audio thread; the logger does its own locking.
	s.log.Warn("audio callback: %v", err)
}

// OnAudio is the device callback. Blocks larger than the channel mixer are
// rendered in pieces.
func (s *Scene) OnAudio(out, in []float32, frames int) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	cm := s.channels
	nIn, nOut := cm.NumInputs(), cm.NumOutputs()
	var err error
	if nOut > 0 && frames*nOut > len(out) {
		frames = len(out) / nOut
		err = ErrShortBuffer
	}

	for done := 0; done < frames; {
		n := frames - done
		if n > cm.MaxFrames() {
			n = cm.MaxFrames()
		}
		var blockIn []float32
		if off := done * nIn; off < len(in) {
			blockIn = in[off:]
		}
		s.renderLocked(out[done*nOut:], blockIn, n)
		done += n
	}

	s.profiler.Record(time.Since(start))
	return err
}

func (s *Scene) renderLocked(out, in []float32, frames int) {
	cm := s.channels
	cm.FromAdc(in, frames)

	inputs := cm.Inputs()
	for _, st := range s.stations {
		st.OnWrite(inputs, frames)
		st.EndMultiWrite(frames, true)
	}

	outputs := cm.Outputs()
	outputs.Zero(frames)
	for _, st := range s.stations {
		st.OnPlay(outputs, frames)
	}
	outputs.EndMultiWrite(frames, true)
	for _, st := range s.stations {
		st.EndMultiPlay(frames)
	}
	cm.ToDac(out, frames)

	s.clock.Advance(frames)
	for _, st := range s.stations {
		st.OnTick(frames)
	}
}

// OnAction hands a key or MIDI event to every station's triggers.
func (s *Scene) OnAction(ev InputEvent) ActionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := ActionResult{ActiveElement: NoStation}
	for i, st := range s.stations {
		if st.ProcessEvent(trigger.Event(ev)) {
			res.IsEaten = true
			if res.ActiveElement == NoStation {
				res.ActiveElement = StationID(i)
			}
		}
	}
	return res
}

// CommitChanges turns loop changes since the last call into jobs. Jobs are
// collected under the audio lock and queued after it is released.
func (s *Scene) CommitChanges() int {
	s.mu.Lock()
	jobs := s.collectJobsLocked()
	s.mu.Unlock()

	s.jobs.Push(jobs...)
	return len(jobs)
}

func (s *Scene) collectJobsLocked() []Job {
	var jobs []Job
	seen := make(map[LoopHandle]loop.State, len(s.states))
	for si, st := range s.stations {
		for _, take := range st.Takes() {
			for _, l := range take.Loops() {
				h := LoopHandle{Station: StationID(si), Take: take.ID(), Loop: l.ID()}
				state := l.State()
				seen[h] = state
				if prev, ok := s.states[h]; !ok || prev != state {
					jobs = append(jobs, Job{Kind: JobStateChange, Handle: h, State: state})
				}
				if l.TakeModelUpdate() {
					jobs = append(jobs, Job{Kind: JobWaveform, Handle: h})
				}
				if l.ChangesMade() {
					s.dirty = true
					l.ClearChanges()
				}
			}
		}
	}
	if len(seen) < len(s.states) {
		// Something was ditched.
		s.dirty = true
	}
	s.states = seen
	return jobs
}

// Clear ditches every take of every station.
func (s *Scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stations {
		st.Clear()
	}
}

// SetMuteGroup mutes or unmutes the loops of every station in any group of
// mask.
func (s *Scene) SetMuteGroup(mask uint32, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stations {
		st.SetMuteGroup(mask, muted)
	}
}

// SelectGroup selects the loops in any group of mask across every station.
func (s *Scene) SelectGroup(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stations {
		st.SelectGroup(mask)
	}
}

// AdjustTakeLevel changes the level of every loop in a take by db decibels
// and returns the new level in dB. It reports false when the take is gone.
func (s *Scene) AdjustTakeLevel(id StationID, take loop.TakeID, db float32) (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.Station(id)
	if !ok {
		return 0, false
	}
	t, ok := st.Take(take)
	if !ok || len(t.Loops()) == 0 {
		return 0, false
	}
	level := gain.LinearToDb32(t.Loops()[0].Mixer().Level()) + db
	if level > maxLevelDb {
		level = maxLevelDb
	}
	for _, l := range t.Loops() {
		l.SetLevel(gain.DbToLinear32(level))
	}
	return level, true
}
