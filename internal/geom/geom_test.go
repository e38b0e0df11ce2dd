package geom

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestIntersectSegmentCircle(t *testing.T) {
	cases := []struct {
		name   string
		a, b   Vec2
		center Vec2
		radius float64
		want   bool
	}{
		{"on_segment", Vec2{0, 0}, Vec2{10, 0}, Vec2{5, 0}, 2, true},
		{"within_radius", Vec2{0, 0}, Vec2{10, 0}, Vec2{5, 1.5}, 2, true},
		{"touching", Vec2{0, 0}, Vec2{10, 0}, Vec2{5, 2}, 2, true},
		{"outside", Vec2{0, 0}, Vec2{10, 0}, Vec2{5, 3}, 2, false},
		{"past_endpoint", Vec2{0, 0}, Vec2{10, 0}, Vec2{13, 0}, 2, false},
		{"near_endpoint", Vec2{0, 0}, Vec2{10, 0}, Vec2{11, 1}, 2, true},
		{"degenerate_segment", Vec2{3, 3}, Vec2{3, 3}, Vec2{4, 3}, 2, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IntersectSegmentCircle(c.a, c.b, c.center, c.radius); got != c.want {
				t.Fatalf("IntersectSegmentCircle(%v, %v, %v, %v) = %v, want %v", c.a, c.b, c.center, c.radius, got, c.want)
			}
		})
	}
}

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := FromTransform(12, -4, 2, 0.5, 30)
	p := Vec2{3, 7}
	back := m.Invert().Apply(m.Apply(p))
	if !approxEqual(back.X, p.X, 1e-9) || !approxEqual(back.Y, p.Y, 1e-9) {
		t.Fatalf("round trip = %v, want %v", back, p)
	}
}

func TestMultiplyAppliesRightFirst(t *testing.T) {
	m := Translate(10, 0).Multiply(Scale(2, 2))
	got := m.Apply(Vec2{1, 1})
	if got != (Vec2{12, 2}) {
		t.Fatalf("got %v, want {12 2}", got)
	}
}

func TestCameraProjectUnproject(t *testing.T) {
	cam := &Camera{View: Translate(100, 50).Multiply(Scale(2, 2))}
	screen := cam.Project(Vec2{5, 5})
	if screen != (Vec2{110, 60}) {
		t.Fatalf("Project = %v, want {110 60}", screen)
	}
	world := cam.Unproject(screen)
	if !approxEqual(world.X, 5, 1e-9) || !approxEqual(world.Y, 5, 1e-9) {
		t.Fatalf("Unproject = %v, want {5 5}", world)
	}
}

func TestRectUnion(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}.Union(Rect{X: 5, Y: -5, Width: 10, Height: 10})
	want := Rect{X: 0, Y: -5, Width: 15, Height: 15}
	if r != want {
		t.Fatalf("Union = %+v, want %+v", r, want)
	}
	if !r.Contains(14, 9) || r.Contains(16, 0) {
		t.Fatalf("Contains mismatch for %+v", r)
	}
}
