package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu", 1.0, 0, procs},
		{"two per cpu", 2.0, 0, procs * 2},
		{"limit caps result", 4.0, 1, 1},
		{"zero multiplier floors at one", 0, 0, 1},
		{"negative multiplier floors at one", -1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestDefaultIsHalfTheCPUs(t *testing.T) {
	prev := runtime.GOMAXPROCS(8)
	defer runtime.GOMAXPROCS(prev)

	if got := Default(); got != 4 {
		t.Errorf("Default() with 8 procs = %d, want 4", got)
	}

	runtime.GOMAXPROCS(1)
	if got := Default(); got != 1 {
		t.Errorf("Default() with 1 proc = %d, want 1", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1},
		{0, 1},
		{1, 1},
		{6, 6},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
