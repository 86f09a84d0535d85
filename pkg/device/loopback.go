package device

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Loopback is an in-process device. Blocks are run either by calling Process
// or, when started in realtime mode, by a timer feeding silent input.
type Loopback struct {
	info     Info
	cb       Callback
	onError  ErrorFunc
	realtime bool
	in, out  []float32

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoopback returns an opener for loopback devices. A realtime loopback runs
// the callback once per block period after Start.
func NewLoopback(realtime bool) Opener {
	return func(cfg Config, cb Callback, onError ErrorFunc) (Device, error) {
		cfg = cfg.withDefaults()
		return &Loopback{
			info:     cfg.info("loopback"),
			cb:       cb,
			onError:  onError,
			realtime: realtime,
			in:       make([]float32, cfg.BlockSize*cfg.NumInputs),
			out:      make([]float32, cfg.BlockSize*cfg.NumOutputs),
		}, nil
	}
}

func (l *Loopback) Info() Info { return l.info }

// Process runs one block with the given interleaved input and returns the
// output. Short input is padded with silence. The returned slice is reused
// by the next call.
func (l *Loopback) Process(in []float32) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrNoDevice
	}
	n := copy(l.in, in)
	for i := n; i < len(l.in); i++ {
		l.in[i] = 0
	}
	if err := l.cb(l.out, l.in, l.info.BlockSize); err != nil {
		if l.onError != nil {
			l.onError(err)
		}
		return l.out, errors.Wrap(err, "loopback callback")
	}
	return l.out, nil
}

func (l *Loopback) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrNoDevice
	}
	if l.started || !l.realtime {
		l.started = true
		return nil
	}
	l.started = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run()
	return nil
}

func (l *Loopback) run() {
	defer close(l.done)
	period := time.Duration(float64(l.info.BlockSize) / l.info.SampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Process(nil)
		}
	}
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	running := l.stop != nil
	if running {
		close(l.stop)
	}
	l.mu.Unlock()

	if running {
		<-l.done
	}
	return nil
}
