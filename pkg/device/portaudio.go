package device

import (
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

type paDevice struct {
	info    Info
	stream  *portaudio.Stream
	cb      Callback
	onError ErrorFunc
	silence []float32

	mu      sync.Mutex
	started bool
	closed  bool
}

// OpenPortAudio opens a duplex PortAudio stream. With no device name the
// host's default input and output are used; otherwise the first device whose
// name contains DeviceName serves both directions.
func OpenPortAudio(cfg Config, cb Callback, onError ErrorFunc) (Device, error) {
	cfg = cfg.withDefaults()
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}

	in, out, err := findDevices(cfg)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if in == nil {
		cfg.NumInputs = 0
	} else if cfg.NumInputs > in.MaxInputChannels {
		cfg.NumInputs = in.MaxInputChannels
	}
	if cfg.NumOutputs > out.MaxOutputChannels {
		cfg.NumOutputs = out.MaxOutputChannels
	}

	params := portaudio.LowLatencyParameters(in, out)
	params.Input.Channels = cfg.NumInputs
	params.Output.Channels = cfg.NumOutputs
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.BlockSize

	d := &paDevice{
		info:    cfg.info(out.Name),
		cb:      cb,
		onError: onError,
		silence: make([]float32, cfg.BlockSize*cfg.NumInputs),
	}
	var stream *portaudio.Stream
	if cfg.NumInputs > 0 {
		stream, err = portaudio.OpenStream(params, d.duplex)
	} else {
		stream, err = portaudio.OpenStream(params, d.outputOnly)
	}
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrapf(err, "open portaudio stream on %s", out.Name)
	}
	d.stream = stream
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		d.info.SampleRate = info.SampleRate
	}
	return d, nil
}

func findDevices(cfg Config) (in, out *portaudio.DeviceInfo, err error) {
	if cfg.DeviceName == "" {
		out, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, nil, errors.Wrap(ErrNoDevice, err.Error())
		}
		if cfg.NumInputs > 0 {
			if in, err = portaudio.DefaultInputDevice(); err != nil {
				in = nil
			}
		}
		return in, out, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, errors.Wrap(err, "list portaudio devices")
	}
	for _, dev := range devices {
		if !strings.Contains(dev.Name, cfg.DeviceName) || dev.MaxOutputChannels == 0 {
			continue
		}
		if cfg.NumInputs > 0 && dev.MaxInputChannels > 0 {
			in = dev
		}
		return in, dev, nil
	}
	return nil, nil, errors.Wrapf(ErrNoDevice, "no output device named %q", cfg.DeviceName)
}

func (d *paDevice) duplex(in, out []float32) {
	d.process(out, in)
}

func (d *paDevice) outputOnly(out []float32) {
	d.process(out, d.silence)
}

func (d *paDevice) process(out, in []float32) {
	frames := len(out) / d.info.NumOutputs
	if err := d.cb(out, in, frames); err != nil && d.onError != nil {
		d.onError(err)
	}
}

func (d *paDevice) Info() Info { return d.info }

func (d *paDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrNoDevice
	}
	if d.started {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return errors.Wrap(err, "start portaudio stream")
	}
	d.started = true
	return nil
}

func (d *paDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var first error
	if d.started {
		if err := d.stream.Stop(); err != nil {
			first = errors.Wrap(err, "stop portaudio stream")
		}
	}
	if err := d.stream.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "close portaudio stream")
	}
	if err := portaudio.Terminate(); err != nil && first == nil {
		first = errors.Wrap(err, "terminate portaudio")
	}
	return first
}
