package wav

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
	}{
		{"silence", make([]float32, 64)},
		{"ramp", []float32{-1, -0.5, -0.25, 0, 0.25, 0.5, 0.999}},
		{"clipped", []float32{2, -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "loop.wav")
			if err := Write(path, tt.samples, 44100); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			sound, err := Read(path, 0)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if sound.SampleRate != 44100 {
				t.Errorf("Expected 44100 Hz, got %d", sound.SampleRate)
			}
			if len(sound.Samples) != len(tt.samples) {
				t.Fatalf("Expected %d samples, got %d", len(tt.samples), len(sound.Samples))
			}
			for i, want := range tt.samples {
				if want > 1 {
					want = 1
				} else if want < -1 {
					want = -1
				}
				if diff := math.Abs(float64(sound.Samples[i] - want)); diff > 1.0/16384 {
					t.Errorf("Sample %d: expected %f, got %f", i, want, sound.Samples[i])
				}
			}
		})
	}
}

func TestReadLimitsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.wav")
	if err := Write(path, make([]float32, 100), 48000); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	sound, err := Read(path, 40)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(sound.Samples) != 40 {
		t.Errorf("Expected 40 samples, got %d", len(sound.Samples))
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not a riff file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path, 0); errors.Cause(err) != ErrUnsupported {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.wav"), 0); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
