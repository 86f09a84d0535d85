package device

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"github.com/justyntemme/loopstation/pkg/dsp/buffer"
)

const (
	// fifoBlocks is how many callback blocks the write-ahead FIFO holds.
	fifoBlocks = 8
	// aheadBlocks is how far the producer renders ahead of the player.
	aheadBlocks = 4

	underrunReportInterval = time.Second
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate float64
	otoOuts int
	otoErr  error
)

func otoContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(cfg.SampleRate),
			ChannelCount: cfg.NumOutputs,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(float64(cfg.BlockSize)/cfg.SampleRate*float64(time.Second)) * 2,
		})
		if err != nil {
			otoErr = errors.Wrap(err, "create oto context")
			return
		}
		<-ready
		otoCtx, otoRate, otoOuts = ctx, cfg.SampleRate, cfg.NumOutputs
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != cfg.SampleRate || otoOuts != cfg.NumOutputs {
		return nil, errors.Errorf("oto context already open at %.0f Hz with %d channels", otoRate, otoOuts)
	}
	return otoCtx, nil
}

type otoDevice struct {
	info    Info
	cb      Callback
	onError ErrorFunc
	fifo    *buffer.WriteAheadBuffer
	reader  *fifoReader
	player  *oto.Player

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// OpenOto opens an output-only device through oto. The callback runs on a
// producer goroutine that keeps a write-ahead FIFO filled, and oto drains the
// FIFO from its own thread. Input is always silent.
func OpenOto(cfg Config, cb Callback, onError ErrorFunc) (Device, error) {
	cfg = cfg.withDefaults()
	cfg.NumInputs = 0
	ctx, err := otoContext(cfg)
	if err != nil {
		return nil, err
	}

	block := cfg.BlockSize * cfg.NumOutputs
	fifo := buffer.NewWriteAheadBuffer(block*fifoBlocks, block)
	d := &otoDevice{
		info:    cfg.info("oto"),
		cb:      cb,
		onError: onError,
		fifo:    fifo,
		reader:  &fifoReader{fifo: fifo},
	}
	d.player = ctx.NewPlayer(d.reader)
	return d, nil
}

func (d *otoDevice) Info() Info { return d.info }

func (d *otoDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrNoDevice
	}
	if d.started {
		return nil
	}
	d.started = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.produce()
	d.player.Play()
	return nil
}

// produce renders blocks whenever the FIFO has room for one.
func (d *otoDevice) produce() {
	defer close(d.done)
	frames := d.info.BlockSize
	out := make([]float32, frames*d.info.NumOutputs)
	in := make([]float32, 0)
	period := time.Duration(float64(frames) / d.info.SampleRate * float64(time.Second))
	ticker := time.NewTicker(period / 2)
	defer ticker.Stop()
	ahead := len(out) * aheadBlocks
	var underruns underrunReporter

	for {
		for d.fifo.Available() < ahead && d.fifo.Space() >= len(out) {
			if err := d.cb(out, in, frames); err != nil && d.onError != nil {
				d.onError(err)
			}
			if err := d.fifo.Write(out); err != nil {
				break
			}
		}
		if err := underruns.check(d.fifo.Stats(), time.Now()); err != nil && d.onError != nil {
			d.onError(err)
		}
		select {
		case <-d.stop:
			return
		case <-ticker.C:
		}
	}
}

// underrunReporter turns growth in the FIFO underrun count into an error,
// at most once per underrunReportInterval.
type underrunReporter struct {
	last uint64
	at   time.Time
}

func (r *underrunReporter) check(stats buffer.BufferStats, now time.Time) error {
	if stats.Underruns <= r.last || now.Sub(r.at) < underrunReportInterval {
		return nil
	}
	n := stats.Underruns - r.last
	r.last, r.at = stats.Underruns, now
	return errors.Errorf("oto output underran %d times, fifo %.0f%% full", n, stats.Fill*100)
}

func (d *otoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.started {
		close(d.stop)
		<-d.done
	}
	if err := d.player.Close(); err != nil {
		return errors.Wrap(err, "close oto player")
	}
	return nil
}

// fifoReader serves a WriteAheadBuffer to oto as little-endian float32 bytes.
// Missing samples read as silence so the player never stalls.
type fifoReader struct {
	fifo    *buffer.WriteAheadBuffer
	samples []float32
}

func (r *fifoReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if cap(r.samples) < n {
		r.samples = make([]float32, n)
	}
	samples := r.samples[:n]
	r.fifo.Read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}
