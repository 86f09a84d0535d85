package pan

import (
	"math"
	"testing"
)

func TestMonoToStereo(t *testing.T) {
	tests := []struct {
		name string
		pan  float32
		law  Law
	}{
		{"Center Linear", 0.0, Linear},
		{"Left Linear", -1.0, Linear},
		{"Right Linear", 1.0, Linear},
		{"Center ConstantPower", 0.0, ConstantPower},
		{"Left ConstantPower", -1.0, ConstantPower},
		{"Right ConstantPower", 1.0, ConstantPower},
		{"Center Balanced", 0.0, Balanced},
		{"Beyond Right", 3.0, ConstantPower},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, right := MonoToStereo(tt.pan, tt.law)

			if left < 0 || left > 1 || right < 0 || right > 1 {
				t.Errorf("Gains out of range: left=%f, right=%f", left, right)
			}

			switch {
			case tt.pan <= -1:
				if left < 0.9 || right > 0.1 {
					t.Errorf("Hard left incorrect: left=%f, right=%f", left, right)
				}
			case tt.pan == 0:
				if math.Abs(float64(left-right)) > 0.001 {
					t.Errorf("Center not balanced: left=%f, right=%f", left, right)
				}
				if tt.law == ConstantPower {
					power := left*left + right*right
					if math.Abs(float64(power-1.0)) > 0.01 {
						t.Errorf("Constant power violation at center: %f", power)
					}
				}
				if tt.law == Balanced && math.Abs(float64(left-0.595)) > 0.01 {
					t.Errorf("Balanced center should be about -4.5dB, got %f", left)
				}
			case tt.pan >= 1:
				if right < 0.9 || left > 0.1 {
					t.Errorf("Hard right incorrect: left=%f, right=%f", left, right)
				}
			}
		})
	}
}

func TestSpread(t *testing.T) {
	tests := []struct {
		name     string
		position float32
		channels int
		loudest  int
	}{
		{"mono", 0.5, 1, 0},
		{"stereo left", -1, 2, 0},
		{"stereo right", 1, 2, 1},
		{"quad first", -1, 4, 0},
		{"quad last", 1, 4, 3},
		{"quad inner", -1.0 / 3, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels := make([]float32, tt.channels)
			Spread(tt.position, ConstantPower, levels)

			for i, l := range levels {
				if i == tt.loudest {
					if l < 0.99 {
						t.Errorf("Channel %d should be at unity, got %f", i, l)
					}
				} else if l > 0.01 {
					t.Errorf("Channel %d should be silent, got %f", i, l)
				}
			}
		})
	}
}

func TestSpreadBetweenOutputs(t *testing.T) {
	levels := []float32{9, 9, 9}
	Spread(-0.5, ConstantPower, levels)

	if levels[2] != 0 {
		t.Errorf("Output outside the panned pair should be 0, got %f", levels[2])
	}
	if math.Abs(float64(levels[0]-levels[1])) > 0.001 {
		t.Errorf("Halfway position should be balanced: %v", levels)
	}
}
