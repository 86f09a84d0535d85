// Package input reads trigger events from the terminal keyboard.
//
// A terminal in raw mode reports key presses but never releases. Each press
// therefore becomes a down followed by an up, except on latched keys, where
// presses alternate between down and up so that a key can be held across
// other presses.
package input

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

// ErrNotTerminal is returned by Open when the file is not a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// Mapper turns key bytes into trigger events.
type Mapper struct {
	latched map[byte]bool
	down    map[byte]bool
}

// NewMapper creates a mapper with the given latched keys.
func NewMapper(latched ...byte) *Mapper {
	m := &Mapper{latched: make(map[byte]bool), down: make(map[byte]bool)}
	for _, b := range latched {
		m.latched[b] = true
	}
	return m
}

// Map returns the events for one key press.
func (m *Mapper) Map(b byte) []trigger.Event {
	ev := trigger.Event{Source: trigger.SourceKey, Value: int(b)}
	if !m.latched[b] {
		down, up := ev, ev
		down.State = trigger.StateDown
		up.State = trigger.StateUp
		return []trigger.Event{down, up}
	}
	if m.down[b] {
		ev.State = trigger.StateUp
	} else {
		ev.State = trigger.StateDown
	}
	m.down[b] = !m.down[b]
	return []trigger.Event{ev}
}

// Release returns up events for every latched key currently down.
func (m *Mapper) Release() []trigger.Event {
	var evs []trigger.Event
	for b, down := range m.down {
		if down {
			evs = append(evs, trigger.Event{Source: trigger.SourceKey, Value: int(b), State: trigger.StateUp})
			m.down[b] = false
		}
	}
	return evs
}

// Keyboard holds a terminal in raw mode.
type Keyboard struct {
	f     *os.File
	fd    int
	state *term.State
}

// Open puts f into raw mode. Close restores it.
func Open(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "set raw mode")
	}
	return &Keyboard{f: f, fd: fd, state: state}, nil
}

// Run delivers key bytes to fn until ctx is cancelled or input ends.
func (k *Keyboard) Run(ctx context.Context, fn func(byte)) error {
	return ReadKeys(ctx, k.f, fn)
}

// Close restores the terminal mode.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}
	err := term.Restore(k.fd, k.state)
	k.state = nil
	return errors.Wrap(err, "restore terminal")
}

// ReadKeys delivers bytes from r to fn on the caller's goroutine. Reading
// happens on a separate goroutine, which stays blocked in Read after ctx is
// cancelled until r yields or is closed.
func ReadKeys(ctx context.Context, r io.Reader, fn func(byte)) error {
	keys := make(chan byte, 16)
	errc := make(chan error, 1)
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				errc <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-keys:
			fn(b)
		case err := <-errc:
			// Keys read before the error are delivered first.
			for len(keys) > 0 {
				fn(<-keys)
			}
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "read keys")
		}
	}
}
