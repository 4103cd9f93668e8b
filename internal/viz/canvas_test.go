package viz

import (
	"strings"
	"testing"
)

func TestCanvasSetUnset(t *testing.T) {
	c := NewCanvas(4, 2)
	if w, h := c.Size(); w != 8 || h != 8 {
		t.Fatalf("size = %dx%d, want 8x8", w, h)
	}

	c.Set(3, 5)
	if !c.IsSet(3, 5) {
		t.Error("dot not set")
	}
	if c.IsSet(2, 5) {
		t.Error("neighbour set")
	}
	c.Unset(3, 5)
	if c.IsSet(3, 5) {
		t.Error("dot still set after Unset")
	}

	// off-canvas writes are dropped
	c.Set(-1, 0)
	c.Set(100, 100)
	for _, row := range c.Grid {
		for _, r := range row {
			if r != brailleBlank {
				t.Fatalf("unexpected cell %q", r)
			}
		}
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(5, 2)
	c.DrawLine(0, 0, 7, 7)
	for i := 0; i <= 7; i++ {
		if !c.IsSet(i, i) {
			t.Errorf("diagonal dot (%d,%d) missing", i, i)
		}
	}
	c.Clear()
	c.DrawLine(9, 3, 0, 3)
	for x := 0; x <= 9; x++ {
		if !c.IsSet(x, 3) {
			t.Errorf("horizontal dot (%d,3) missing", x)
		}
	}
}

func TestCanvasString(t *testing.T) {
	c := NewCanvas(3, 2)
	c.Set(0, 0)
	lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if []rune(lines[0])[0] != brailleBlank|0x1 {
		t.Errorf("first cell = %q", []rune(lines[0])[0])
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("empty sparkline = %q", got)
	}
	got := []rune(Sparkline([]float64{0, 1}, 10))
	if len(got) != 2 || got[0] != '▁' || got[1] != '█' {
		t.Errorf("sparkline = %q", string(got))
	}
}
