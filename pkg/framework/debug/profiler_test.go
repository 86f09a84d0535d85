package debug

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestProfiler(t *testing.T) {
	t.Run("Record", func(t *testing.T) {
		p := NewProfiler(48000, 480)
		for _, d := range []time.Duration{2 * time.Millisecond, time.Millisecond, 3 * time.Millisecond} {
			p.Record(d)
		}

		m := p.Measurement()
		if m.Count != 3 {
			t.Errorf("Expected count 3, got %d", m.Count)
		}
		if m.Min != time.Millisecond || m.Max != 3*time.Millisecond || m.Last != 3*time.Millisecond {
			t.Errorf("Unexpected min/max/last %v/%v/%v", m.Min, m.Max, m.Last)
		}
		if m.Average() != 2*time.Millisecond {
			t.Errorf("Expected 2ms average, got %v", m.Average())
		}
		if m.Budget != 10*time.Millisecond {
			t.Errorf("Expected a 10ms block period, got %v", m.Budget)
		}
		if m.Load() != 20 || m.PeakLoad() != 30 {
			t.Errorf("Expected 20%% load and 30%% peak, got %.1f/%.1f", m.Load(), m.PeakLoad())
		}
		if !strings.Contains(m.String(), "3 blocks") {
			t.Errorf("Unexpected report %q", m.String())
		}
	})

	t.Run("Start", func(t *testing.T) {
		p := NewProfiler(48000, 256)
		stop := p.Start()
		time.Sleep(time.Millisecond)
		stop()
		if m := p.Measurement(); m.Count != 1 || m.Last < time.Millisecond {
			t.Errorf("Expected one timing of at least 1ms, got %+v", m)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		p := NewProfiler(48000, 256)
		p.Record(time.Millisecond)
		p.Reset()
		m := p.Measurement()
		if m.Count != 0 || m.Max != 0 || m.Average() != 0 {
			t.Errorf("Expected empty figures, got %+v", m)
		}
		if m.Budget == 0 {
			t.Error("Reset should keep the block period")
		}
	})

	t.Run("NoBudget", func(t *testing.T) {
		p := NewProfiler(0, 0)
		p.Record(time.Millisecond)
		if p.Measurement().Load() != 0 {
			t.Error("Load without a block period should be 0")
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		p := NewProfiler(48000, 256)
		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			wg.Add(1)
			go func(d time.Duration) {
				defer wg.Done()
				p.Record(d)
			}(time.Duration(i) * time.Microsecond)
		}
		wg.Wait()
		m := p.Measurement()
		if m.Count != 8 || m.Max != 8*time.Microsecond {
			t.Errorf("Expected 8 records with max 8us, got %+v", m)
		}
	})
}
