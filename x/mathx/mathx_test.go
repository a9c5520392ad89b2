package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(300, 0, 255); got != 255 {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(-4, 255, 0); got != 0 {
		t.Fatalf("Clamp swapped bounds = %d", got)
	}
	if Min(3, 7) != 3 || Max(3, 7) != 7 {
		t.Fatal("Min/Max")
	}
}

func TestScaleU8(t *testing.T) {
	cases := []struct{ v, level, want uint8 }{
		{255, 10, 10},
		{255, 255, 255},
		{0, 255, 0},
		{128, 0, 0},
		{100, 127, 50},
	}
	for _, c := range cases {
		if got := ScaleU8(c.v, c.level); got != c.want {
			t.Errorf("ScaleU8(%d,%d) = %d, want %d", c.v, c.level, got, c.want)
		}
	}
}
