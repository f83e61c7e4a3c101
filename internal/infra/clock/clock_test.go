package clock

import (
	"testing"
	"time"
)

func TestElapsed(t *testing.T) {
	c := New()
	start := time.Unix(100, 0)

	tests := []struct {
		name string
		end  time.Time
		want float64
	}{
		{"one second", start.Add(time.Second), 1.0},
		{"microsecond precision", start.Add(1500 * time.Microsecond), 0.0015},
		{"sub-microsecond truncates", start.Add(900 * time.Nanosecond), 0.0},
		{"negative clamps to zero", start.Add(-time.Second), 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Elapsed(start, tt.end); got != tt.want {
				t.Errorf("Elapsed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVirtual(t *testing.T) {
	c, step := Virtual(time.Unix(0, 0))

	t0 := c.Now()
	step(250 * time.Millisecond)
	t1 := c.Now()

	if got := c.Elapsed(t0, t1); got != 0.25 {
		t.Errorf("Elapsed = %v, want 0.25", got)
	}
	if !c.Now().Equal(t1) {
		t.Error("virtual clock advanced without step")
	}
}
