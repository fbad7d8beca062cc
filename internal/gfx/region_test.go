package gfx

import "testing"

func TestCoalesceRegionsNilDamageIsFullFrame(t *testing.T) {
	regions := CoalesceRegions(nil, 640, 480)
	if len(regions) != 1 || regions[0] != (Rect{X: 0, Y: 0, W: 640, H: 480}) {
		t.Fatalf("expected a single full-frame region, got %+v", regions)
	}
}

func TestCoalesceRegionsMergesAdjacentRects(t *testing.T) {
	damage := []Rect{
		{X: 0, Y: 0, W: 10, H: 10},
		{X: 10, Y: 0, W: 10, H: 10}, // touches the first rect's right edge
	}
	regions := CoalesceRegions(damage, 100, 100)
	if len(regions) != 1 {
		t.Fatalf("expected adjacent rects to merge into one, got %d: %+v", len(regions), regions)
	}
	want := Rect{X: 0, Y: 0, W: 20, H: 10}
	if regions[0] != want {
		t.Fatalf("expected merged bounding box %+v, got %+v", want, regions[0])
	}
}

func TestCoalesceRegionsKeepsDistantRectsSeparate(t *testing.T) {
	damage := []Rect{
		{X: 0, Y: 0, W: 5, H: 5},
		{X: 90, Y: 90, W: 5, H: 5},
	}
	regions := CoalesceRegions(damage, 200, 200)
	if len(regions) != 2 {
		t.Fatalf("expected two disjoint regions, got %d: %+v", len(regions), regions)
	}
}

func TestCoalesceRegionsOverflowFallsBackToFullFrame(t *testing.T) {
	var damage []Rect
	for i := 0; i < maxRegions+4; i++ {
		x := i * 20
		damage = append(damage, Rect{X: x, Y: x, W: 2, H: 2})
	}
	regions := CoalesceRegions(damage, 2000, 2000)
	if len(regions) != 1 || regions[0] != (Rect{X: 0, Y: 0, W: 2000, H: 2000}) {
		t.Fatalf("expected overflow fallback to a single full-frame region, got %+v", regions)
	}
}

func TestCoalesceRegionsClampsToFrameBounds(t *testing.T) {
	damage := []Rect{{X: -5, Y: -5, W: 20, H: 20}}
	regions := CoalesceRegions(damage, 10, 10)
	if len(regions) != 1 {
		t.Fatalf("expected one clamped region, got %d", len(regions))
	}
	r := regions[0]
	if r.X < 0 || r.Y < 0 || r.X+r.W > 10 || r.Y+r.H > 10 {
		t.Fatalf("expected region clamped within 10x10 frame, got %+v", r)
	}
}
