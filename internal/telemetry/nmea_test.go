package telemetry

import "testing"

func TestParseLogRMCAndGGAMerge(t *testing.T) {
	lines := []string{
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
	}
	points, err := ParseLog(lines)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 merged point, got %d", len(points))
	}
	p := points[0]
	if p.Altitude == nil || *p.Altitude != 545.4 {
		t.Fatalf("want altitude merged from GGA, got %v", p.Altitude)
	}
	if p.SatelliteCount == nil || *p.SatelliteCount != 8 {
		t.Fatalf("want satellite count 8, got %v", p.SatelliteCount)
	}
	if p.HorizontalAccuracyM == nil || *p.HorizontalAccuracyM != 9.0 {
		t.Fatalf("want horizontal accuracy 9.0 (hdop*10), got %v", p.HorizontalAccuracyM)
	}
	if p.SpeedKmh == nil {
		t.Fatalf("want speed from RMC")
	}
	wantKmh := 22.4 * 1.852
	if diff := p.SpeedKmh; diff == nil || absDiff(*diff, wantKmh) > 1e-6 {
		t.Fatalf("speed conversion mismatch: got %v want %v", p.SpeedKmh, wantKmh)
	}
}

func TestParseLogVoidRMCSkipped(t *testing.T) {
	lines := []string{
		"$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
	}
	points, err := ParseLog(lines)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("void RMC fix should be skipped, got %d points", len(points))
	}
}

func TestParseLogGGANoFixSkipped(t *testing.T) {
	lines := []string{
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$GPGGA,123520,4807.038,N,01131.000,E,0,00,,,M,,M,,*47",
	}
	points, err := ParseLog(lines)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if len(points) != 1 || points[0].Altitude != nil {
		t.Fatalf("GGA with fix quality 0 should not merge, got %+v", points)
	}
}

func TestParseLogUnrecognizedSentenceIgnored(t *testing.T) {
	lines := []string{
		"$GPGSA,A,3,04,05,,,,,,,,,,,2.5,1.3,2.1*39",
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
	}
	points, err := ParseLog(lines)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("want 1 point, got %d", len(points))
	}
}

func TestSouthWestHemispheresNegateCoordinates(t *testing.T) {
	lines := []string{
		"$GPRMC,123519,A,4807.038,S,01131.000,W,022.4,084.4,230394,003.1,W*6A",
	}
	points, err := ParseLog(lines)
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if points[0].Latitude >= 0 || points[0].Longitude >= 0 {
		t.Fatalf("S/W hemispheres should negate, got lat=%v lon=%v", points[0].Latitude, points[0].Longitude)
	}
}

func absDiff(a, b float64) float64 {
	if a < b {
		return b - a
	}
	return a - b
}
