package events

import (
	"testing"

	"github.com/e1z0/dashcam-core/internal/media"
)

func f64(v float64) *float64 { return &v }

func identityPlayback(wallclock float64) float64 { return wallclock }

func TestDetectHardBraking(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, SpeedKmh: f64(60)},
		{WallclockUnix: 0.4, SpeedKmh: f64(30)},
	}
	out := Detect(points, identityPlayback)
	if len(out) != 1 || out[0].Kind != media.EventHardBraking {
		t.Fatalf("want 1 HardBraking event, got %+v", out)
	}
	if out[0].Magnitude <= 0 || out[0].Magnitude > 1 {
		t.Fatalf("magnitude out of range: %v", out[0].Magnitude)
	}
}

func TestDetectRapidAcceleration(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, SpeedKmh: f64(10)},
		{WallclockUnix: 0.4, SpeedKmh: f64(35)},
	}
	out := Detect(points, identityPlayback)
	if len(out) != 1 || out[0].Kind != media.EventRapidAcceleration {
		t.Fatalf("want 1 RapidAcceleration event, got %+v", out)
	}
}

func TestDetectSharpTurn(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, SpeedKmh: f64(40), HeadingDeg: f64(10)},
		{WallclockUnix: 0.4, SpeedKmh: f64(42), HeadingDeg: f64(100)},
	}
	out := Detect(points, identityPlayback)
	if len(out) != 1 || out[0].Kind != media.EventSharpTurn {
		t.Fatalf("want 1 SharpTurn event, got %+v", out)
	}
}

func TestDetectSkipsDataGap(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0, SpeedKmh: f64(60)},
		{WallclockUnix: 2, SpeedKmh: f64(20)}, // dt=2s > 0.5s gap threshold
	}
	out := Detect(points, identityPlayback)
	if len(out) != 0 {
		t.Fatalf("data gap should suppress detection, got %+v", out)
	}
}

func TestDetectNoEventWithoutSpeed(t *testing.T) {
	points := []media.GpsPoint{
		{WallclockUnix: 0},
		{WallclockUnix: 0.2},
	}
	out := Detect(points, identityPlayback)
	if len(out) != 0 {
		t.Fatalf("want no events without speed data, got %+v", out)
	}
}

func TestDedupeKeepsHigherMagnitudeWithinWindow(t *testing.T) {
	events := []media.EventMarker{
		{PlaybackTime: 0, Kind: media.EventHardBraking, Magnitude: 0.5},
		{PlaybackTime: 1, Kind: media.EventHardBraking, Magnitude: 0.8},
	}
	out := Dedupe(events, DefaultMinInterval)
	if len(out) != 1 || out[0].Magnitude != 0.8 {
		t.Fatalf("want 1 event with magnitude 0.8, got %+v", out)
	}
}

func TestDedupeKeepsEventsOutsideWindow(t *testing.T) {
	events := []media.EventMarker{
		{PlaybackTime: 0, Kind: media.EventHardBraking, Magnitude: 0.5},
		{PlaybackTime: 5, Kind: media.EventHardBraking, Magnitude: 0.3},
	}
	out := Dedupe(events, DefaultMinInterval)
	if len(out) != 2 {
		t.Fatalf("want 2 events outside the window, got %+v", out)
	}
}

func TestDedupeTracksKindsIndependently(t *testing.T) {
	events := []media.EventMarker{
		{PlaybackTime: 0, Kind: media.EventHardBraking, Magnitude: 0.5},
		{PlaybackTime: 0.1, Kind: media.EventSharpTurn, Magnitude: 0.5},
	}
	out := Dedupe(events, DefaultMinInterval)
	if len(out) != 2 {
		t.Fatalf("different kinds should not dedupe against each other, got %+v", out)
	}
}
