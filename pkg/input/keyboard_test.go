package input

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

func TestMapperTap(t *testing.T) {
	m := NewMapper()
	evs := m.Map('1')
	if len(evs) != 2 {
		t.Fatalf("Expected down and up, got %v", evs)
	}
	want := []trigger.Event{
		{Source: trigger.SourceKey, Value: '1', State: trigger.StateDown},
		{Source: trigger.SourceKey, Value: '1', State: trigger.StateUp},
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Errorf("Event %d: expected %+v, got %+v", i, want[i], evs[i])
		}
	}
}

func TestMapperLatch(t *testing.T) {
	m := NewMapper('2')
	states := []trigger.KeyState{trigger.StateDown, trigger.StateUp, trigger.StateDown}
	for i, want := range states {
		evs := m.Map('2')
		if len(evs) != 1 || evs[0].State != want {
			t.Fatalf("Press %d: expected %v, got %v", i, want, evs)
		}
	}

	released := m.Release()
	if len(released) != 1 || released[0].State != trigger.StateUp || released[0].Value != '2' {
		t.Errorf("Expected the held key released, got %v", released)
	}
	if evs := m.Map('2'); evs[0].State != trigger.StateDown {
		t.Error("A released latch should press down again")
	}
}

func TestReadKeys(t *testing.T) {
	var got []byte
	err := ReadKeys(context.Background(), strings.NewReader("12q"), func(b byte) {
		got = append(got, b)
	})
	if err != nil {
		t.Fatalf("ReadKeys failed: %v", err)
	}
	if string(got) != "12q" {
		t.Errorf("Expected 12q, got %q", got)
	}
}

func TestReadKeysCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A reader that never returns would block forever without cancellation.
	r, w := io.Pipe()
	defer w.Close()
	if err := ReadKeys(ctx, r, func(byte) {}); err != nil {
		t.Errorf("Expected nil on cancel, got %v", err)
	}
}
