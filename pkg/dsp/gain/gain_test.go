package gain

import (
	"math"
	"testing"
)

func TestDbConversion(t *testing.T) {
	tests := []struct {
		name    string
		linear  float32
		db      float32
		epsilon float64
	}{
		{"Unity gain", 1.0, 0.0, 0.001},
		{"Half amplitude", 0.5, -6.02, 0.01},
		{"Double amplitude", 2.0, 6.02, 0.01},
		{"Zero amplitude", 0.0, MinDB, 0.001},
		{"Negative amplitude", -1.0, MinDB, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDb := LinearToDb32(tt.linear)
			if math.Abs(float64(gotDb-tt.db)) > tt.epsilon {
				t.Errorf("LinearToDb32(%f) = %f, want %f", tt.linear, gotDb, tt.db)
			}

			if tt.db != MinDB {
				gotLinear := DbToLinear32(tt.db)
				if math.Abs(float64(gotLinear-tt.linear)) > tt.epsilon {
					t.Errorf("DbToLinear32(%f) = %f, want %f", tt.db, gotLinear, tt.linear)
				}
			}
		})
	}

	if DbToLinear32(MinDB) != 0 {
		t.Error("DbToLinear32(MinDB) should be silent")
	}
}

func BenchmarkDbToLinear32(b *testing.B) {
	db := float32(-6.0)
	for i := 0; i < b.N; i++ {
		_ = DbToLinear32(db)
	}
}
