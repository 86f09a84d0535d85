// Package device binds the scene's audio callback to a sound card.
//
// Every backend presents the same push model: the callback receives one block
// of interleaved input and fills one block of interleaved output. Pull-model
// outputs are adapted with a write-ahead FIFO.
package device

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoDevice is returned when no usable device matches the configuration.
var ErrNoDevice = errors.New("no audio device")

// Config is what the caller asks for. Backends may adjust it; Info reports
// what was actually opened.
type Config struct {
	DeviceName string
	SampleRate float64
	BlockSize  int
	NumInputs  int
	NumOutputs int
}

// Info describes an open device.
type Info struct {
	Name       string
	SampleRate float64
	BlockSize  int
	NumInputs  int
	NumOutputs int
}

// Callback processes one block. in holds frames*NumInputs samples and out
// frames*NumOutputs, both interleaved. in is silent on output-only devices.
type Callback func(out, in []float32, frames int) error

// ErrorFunc receives errors returned by the callback. It runs on the audio
// thread.
type ErrorFunc func(error)

// Device is an opened, possibly running, audio device.
type Device interface {
	Info() Info
	Start() error
	Close() error
}

// Opener opens a device without starting it.
type Opener func(cfg Config, cb Callback, onError ErrorFunc) (Device, error)

// Backends lists the names accepted by ForBackend.
var Backends = []string{"portaudio", "oto", "loopback", "none"}

// ForBackend returns the opener for a backend name. "loopback" runs the
// callback on a timer with silent input; "none" runs nothing.
func ForBackend(name string) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "portaudio":
		return OpenPortAudio, nil
	case "oto":
		return OpenOto, nil
	case "loopback":
		return NewLoopback(true), nil
	case "none":
		return nil, nil
	}
	return nil, errors.Errorf("unknown audio backend %q (want one of %s)", name, strings.Join(Backends, ", "))
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 256
	}
	if c.NumInputs < 0 {
		c.NumInputs = 0
	}
	if c.NumOutputs <= 0 {
		c.NumOutputs = 2
	}
	return c
}

func (c Config) info(name string) Info {
	return Info{
		Name:       name,
		SampleRate: c.SampleRate,
		BlockSize:  c.BlockSize,
		NumInputs:  c.NumInputs,
		NumOutputs: c.NumOutputs,
	}
}
