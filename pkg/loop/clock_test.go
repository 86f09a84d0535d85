package loop

import "testing"

func TestQuantiseLength(t *testing.T) {
	c := NewClock()
	c.Fix(1000)

	tests := []struct {
		name     string
		length   int
		expected int
	}{
		{"exact master", 1000, 1000},
		{"slightly long", 1040, 1000},
		{"slightly short", 960, 1000},
		{"double", 2100, 2000},
		{"triple", 2800, 3000},
		{"half", 520, 500},
		{"quarter", 260, 250},
		{"eighth", 100, 125},
		{"tiny", 1, 125},
		{"between half and master", 740, 500},
		{"tie goes long", 1500, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.QuantiseLength(tt.length)
			if got != tt.expected {
				t.Errorf("QuantiseLength(%d) = %d, want %d", tt.length, got, tt.expected)
			}
			if again := c.QuantiseLength(got); again != got {
				t.Errorf("QuantiseLength is not idempotent: %d -> %d", got, again)
			}
		})
	}
}

func TestQuantiseIsDeterministic(t *testing.T) {
	c := NewClock()
	c.Fix(44100)
	for length := 1; length < 200000; length += 997 {
		q := c.QuantiseLength(length)
		if q != c.QuantiseLength(length) {
			t.Fatalf("QuantiseLength(%d) changed between calls", length)
		}
		if q%44100 != 0 && q != 44100>>1 && q != 44100>>2 && q != 44100>>3 {
			t.Fatalf("QuantiseLength(%d) = %d is not a master multiple or division", length, q)
		}
	}
}

func TestQuantiseWithoutMaster(t *testing.T) {
	c := NewClock()
	if got := c.QuantiseLength(1234); got != 1234 {
		t.Errorf("Without a master the length is kept, got %d", got)
	}
}

func TestClockFixAndRelease(t *testing.T) {
	c := NewClock()
	if !c.Fix(480) {
		t.Fatal("First Fix should succeed")
	}
	if c.Fix(960) {
		t.Error("Second Fix must not change the master")
	}
	c.Bind()
	c.Bind()

	c.Advance(500)
	if c.Phase() != 20 {
		t.Errorf("Expected phase 20, got %d", c.Phase())
	}

	c.Release()
	if !c.IsFixed() {
		t.Error("Master survives while a take is bound")
	}
	c.Release()
	if c.IsFixed() || c.Phase() != 0 {
		t.Errorf("Master should clear with the last take, got %d/%d", c.MasterLength(), c.Phase())
	}
	c.Release()
	if c.Bound() != 0 {
		t.Errorf("Release below zero should clamp, got %d", c.Bound())
	}
}

func TestMasterLoopCount(t *testing.T) {
	c := NewClock()
	c.Fix(100)
	tests := []struct{ length, expected int }{
		{50, 1}, {100, 1}, {200, 2}, {300, 3},
	}
	for _, tt := range tests {
		if got := c.MasterLoopCount(tt.length); got != tt.expected {
			t.Errorf("MasterLoopCount(%d) = %d, want %d", tt.length, got, tt.expected)
		}
	}
}

func TestRestore(t *testing.T) {
	c := NewClock()
	c.Restore(100, 250)
	if c.MasterLength() != 100 || c.Phase() != 50 {
		t.Errorf("Unexpected restore %d/%d", c.MasterLength(), c.Phase())
	}
}
