package telemetry

import (
	"math"
	"testing"

	"github.com/e1z0/dashcam-core/internal/media"
)

func f64(v float64) *float64 { return &v }

func TestLocationAtInterpolatesBetweenSamples(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, Latitude: 10, Longitude: 20, HeadingDeg: f64(0)},
		{WallclockUnix: 10, Latitude: 11, Longitude: 21, HeadingDeg: f64(90)},
	}
	s := NewStore(0, points)
	p := s.LocationAt(5) // wallclock 5, exactly midway
	if p == nil {
		t.Fatalf("expected a location")
	}
	if math.Abs(p.Latitude-10.5) > 1e-9 || math.Abs(p.Longitude-20.5) > 1e-9 {
		t.Fatalf("want midpoint lat/lon, got %v,%v", p.Latitude, p.Longitude)
	}
	if p.HeadingDeg == nil || math.Abs(*p.HeadingDeg-45) > 1e-9 {
		t.Fatalf("want heading 45, got %v", p.HeadingDeg)
	}
}

func TestLocationAtHeadingWrapsShortArc(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, Latitude: 0, Longitude: 0, HeadingDeg: f64(350)},
		{WallclockUnix: 10, Latitude: 0, Longitude: 0, HeadingDeg: f64(10)},
	}
	s := NewStore(0, points)
	p := s.LocationAt(5)
	if p.HeadingDeg == nil {
		t.Fatalf("expected heading")
	}
	// Shortest arc from 350 to 10 passes through 0/360, midpoint is 0 (=360).
	h := *p.HeadingDeg
	if math.Abs(h) > 1e-6 && math.Abs(h-360) > 1e-6 {
		t.Fatalf("want heading ~0 (shortest arc), got %v", h)
	}
}

func TestLocationAtReturnsNearestExtremeOutsideRange(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 10, Latitude: 1, Longitude: 1},
		{WallclockUnix: 20, Latitude: 2, Longitude: 2},
	}
	s := NewStore(0, points)
	if p := s.LocationAt(0); p == nil || p.Latitude != 1 {
		t.Fatalf("before range should clamp to first point, got %v", p)
	}
	if p := s.LocationAt(100); p == nil || p.Latitude != 2 {
		t.Fatalf("after range should clamp to last point, got %v", p)
	}
}

func TestLocationAtEmptyStoreReturnsNil(t *testing.T) {
	s := NewStore(0, nil)
	if p := s.LocationAt(5); p != nil {
		t.Fatalf("want nil for empty store, got %v", p)
	}
}

func TestDistanceTravelledHaversine(t *testing.T) {
	// Roughly 1 degree of latitude ~= 111.19 km.
	points := []media.GpsPoint{
		{WallclockUnix: 0, Latitude: 0, Longitude: 0},
		{WallclockUnix: 10, Latitude: 1, Longitude: 0},
	}
	s := NewStore(0, points)
	d := s.DistanceTravelled(100)
	if d < 110000 || d > 112000 {
		t.Fatalf("want ~111km in meters, got %v", d)
	}
}

func TestAverageSpeedIgnoresMissing(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, SpeedKmh: f64(10)},
		{WallclockUnix: 10, SpeedKmh: nil},
		{WallclockUnix: 20, SpeedKmh: f64(30)},
	}
	s := NewStore(0, points)
	avg, ok := s.AverageSpeed(100)
	if !ok || math.Abs(avg-20) > 1e-9 {
		t.Fatalf("want average 20, got %v ok=%v", avg, ok)
	}
}

func TestAverageSpeedNoneWhenAllMissing(t *testing.T) {
	points := []media.GpsPoint{{WallclockUnix: 0}}
	s := NewStore(0, points)
	if _, ok := s.AverageSpeed(100); ok {
		t.Fatalf("want ok=false when no point carries speed")
	}
}

func TestSplitAtPartitionsPoints(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0}, {WallclockUnix: 5}, {WallclockUnix: 10},
	}
	s := NewStore(0, points)
	past, future := s.SplitAt(5)
	if len(past) != 2 || len(future) != 1 {
		t.Fatalf("want 2 past, 1 future, got %d/%d", len(past), len(future))
	}
}
