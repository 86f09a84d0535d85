package midi

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

// ErrNoPort is returned by Open when no input port matches.
var ErrNoPort = errors.New("no matching MIDI input port")

const queueSize = 256

// Listener reads one MIDI input port.
type Listener struct {
	drv   *rtmididrv.Driver
	in    drivers.In
	stop  func()
	queue *EventQueue
	log   *debug.Logger

	closeOnce sync.Once
}

// Ports lists the names of the available input ports.
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "open MIDI driver")
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "list MIDI inputs")
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// matchPort picks the first port whose name contains name, ignoring case. An
// empty name picks the first port.
func matchPort(names []string, name string) int {
	want := strings.ToLower(name)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

// Open starts listening on the input port matching name.
func Open(name string, log *debug.Logger) (*Listener, error) {
	if log == nil {
		log = debug.Default().Named("midi")
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "open MIDI driver")
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, errors.Wrap(err, "list MIDI inputs")
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	idx := matchPort(names, name)
	if idx < 0 {
		drv.Close()
		return nil, errors.Wrapf(ErrNoPort, "port %q among %v", name, names)
	}

	in := ins[idx]
	if err := in.Open(); err != nil {
		drv.Close()
		return nil, errors.Wrapf(err, "open MIDI port %s", in)
	}
	l := &Listener{drv: drv, in: in, queue: NewEventQueue(queueSize), log: log}
	stop, err := midi.ListenTo(in, l.onMessage, midi.HandleError(func(err error) {
		log.Warn("MIDI input %s: %v", in, err)
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return nil, errors.Wrapf(err, "listen to %s", in)
	}
	l.stop = stop
	log.Info("MIDI input %s", in)
	return l, nil
}

// onMessage runs on the driver's thread.
func (l *Listener) onMessage(msg midi.Message, _ int32) {
	ev, ok := Decode(msg)
	if !ok {
		return
	}
	tev, ok := ToTrigger(ev)
	if !ok {
		return
	}
	if !l.queue.Add(tev) {
		l.log.Warn("MIDI queue full, dropped %v", ev)
	}
}

// Run hands every received event to fn until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, fn func(trigger.Event)) error {
	return Drain(ctx, l.queue, fn)
}

// Drain delivers events from q to fn until ctx is cancelled.
func Drain(ctx context.Context, q *EventQueue, fn func(trigger.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-q.Events():
			fn(ev)
		}
	}
}

// Close stops listening and releases the port.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.stop()
		if cerr := l.in.Close(); cerr != nil {
			err = errors.Wrap(cerr, "close MIDI port")
		}
		if cerr := l.drv.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close MIDI driver")
		}
	})
	return err
}
