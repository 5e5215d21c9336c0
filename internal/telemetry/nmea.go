/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * dashcam-core
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of dashcam-core.
 *
 * dashcam-core is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * dashcam-core is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with dashcam-core.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package telemetry parses NMEA-0183 GPS logs into GpsPoints and
// answers time-indexed location queries (component E). No example in
// the reference corpus ships an NMEA parser or a library for one;
// this file hand-rolls the two recognized sentence kinds directly
// against the standard library, the same way QAnotherRTSP's
// helpers.go hand-rolls its own small parseFFmpegParams tokenizer
// rather than reaching for a parsing library for a narrow, fixed
// format.
package telemetry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/e1z0/dashcam-core/internal/media"
)

// ParseLog parses a sequence of NMEA-0183 lines (one sentence per
// line) into a time-sorted slice of GpsPoints. Unrecognized
// sentences, void RMC fixes, and GGA sentences with no prior RMC
// point to merge into are silently skipped, matching spec.md §6.
func ParseLog(lines []string) ([]media.GpsPoint, error) {
	var points []media.GpsPoint
	var lastRMC *media.GpsPoint // last point appended to points, for GGA merge

	for lineNo, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if idx := strings.IndexByte(line, '*'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Split(line, ",")
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "$GPRMC", "$GNRMC":
			p, ok, err := parseRMC(fields)
			if err != nil {
				return nil, fmt.Errorf("telemetry: line %d: %w", lineNo+1, err)
			}
			if !ok {
				continue // void fix
			}
			points = append(points, p)
			lastRMC = &points[len(points)-1]
		case "$GPGGA", "$GNGGA":
			fix, ok, err := parseGGA(fields)
			if err != nil {
				return nil, fmt.Errorf("telemetry: line %d: %w", lineNo+1, err)
			}
			if !ok || lastRMC == nil {
				continue // no fix, or nothing to merge into
			}
			lastRMC.Altitude = fix.altitude
			lastRMC.SatelliteCount = fix.satellites
			lastRMC.HorizontalAccuracyM = fix.horizontalAccuracyM
		default:
			// Unrecognized sentence kind; not an error.
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].WallclockUnix < points[j].WallclockUnix })
	return points, nil
}

type ggaFix struct {
	altitude            *float64
	satellites          *int
	horizontalAccuracyM *float64
}

// parseRMC parses a $GPRMC/$GNRMC sentence. Returns ok=false for a
// void (status 'V') fix.
func parseRMC(f []string) (media.GpsPoint, bool, error) {
	if len(f) < 10 {
		return media.GpsPoint{}, false, fmt.Errorf("RMC: too few fields (%d)", len(f))
	}
	if f[2] != "A" {
		return media.GpsPoint{}, false, nil // void
	}

	wallclock, err := combineTimeAndDate(f[1], f[9])
	if err != nil {
		return media.GpsPoint{}, false, fmt.Errorf("RMC: %w", err)
	}

	lat, err := parseLatLon(f[3], f[4], 2)
	if err != nil {
		return media.GpsPoint{}, false, fmt.Errorf("RMC: latitude: %w", err)
	}
	lon, err := parseLatLon(f[5], f[6], 3)
	if err != nil {
		return media.GpsPoint{}, false, fmt.Errorf("RMC: longitude: %w", err)
	}

	p := media.GpsPoint{WallclockUnix: wallclock, Latitude: lat, Longitude: lon}
	if knots, err := strconv.ParseFloat(strings.TrimSpace(f[7]), 64); err == nil {
		kmh := knots * 1.852
		p.SpeedKmh = &kmh
	}
	if hdg, err := strconv.ParseFloat(strings.TrimSpace(f[8]), 64); err == nil {
		p.HeadingDeg = &hdg
	}
	return p, true, nil
}

// parseGGA parses a $GPGGA/$GNGGA sentence. Returns ok=false when the
// fix quality indicator is 0 (no fix).
func parseGGA(f []string) (ggaFix, bool, error) {
	if len(f) < 10 {
		return ggaFix{}, false, fmt.Errorf("GGA: too few fields (%d)", len(f))
	}
	quality, err := strconv.Atoi(strings.TrimSpace(f[6]))
	if err != nil {
		return ggaFix{}, false, fmt.Errorf("GGA: fix quality: %w", err)
	}
	if quality == 0 {
		return ggaFix{}, false, nil
	}

	var out ggaFix
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		out.satellites = &sats
	}
	if hdop, err := strconv.ParseFloat(strings.TrimSpace(f[8]), 64); err == nil {
		acc := hdop * 10.0 // coarse heuristic, not a measured accuracy
		out.horizontalAccuracyM = &acc
	}
	if alt, err := strconv.ParseFloat(strings.TrimSpace(f[9]), 64); err == nil {
		out.altitude = &alt
	}
	return out, true, nil
}

// parseLatLon converts an NMEA DDMM.MMMM (or DDDMM.MMMM) coordinate
// plus hemisphere letter into signed decimal degrees. degDigits is 2
// for latitude, 3 for longitude.
func parseLatLon(raw, hemisphere string, degDigits int) (float64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) <= degDigits {
		return 0, fmt.Errorf("coordinate %q too short", raw)
	}
	degrees, err := strconv.ParseFloat(raw[:degDigits], 64)
	if err != nil {
		return 0, fmt.Errorf("degrees: %w", err)
	}
	minutes, err := strconv.ParseFloat(raw[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("minutes: %w", err)
	}
	val := degrees + minutes/60.0
	switch strings.TrimSpace(hemisphere) {
	case "S", "W":
		val = -val
	}
	return val, nil
}

// combineTimeAndDate parses NMEA HHMMSS[.ss] and DDMMYY into a
// fractional Unix timestamp (UTC).
func combineTimeAndDate(hhmmss, ddmmyy string) (float64, error) {
	hhmmss = strings.TrimSpace(hhmmss)
	ddmmyy = strings.TrimSpace(ddmmyy)
	if len(hhmmss) < 6 || len(ddmmyy) != 6 {
		return 0, fmt.Errorf("malformed time/date %q %q", hhmmss, ddmmyy)
	}

	hh, err := strconv.Atoi(hhmmss[0:2])
	if err != nil {
		return 0, fmt.Errorf("hour: %w", err)
	}
	mm, err := strconv.Atoi(hhmmss[2:4])
	if err != nil {
		return 0, fmt.Errorf("minute: %w", err)
	}
	secF, err := strconv.ParseFloat(hhmmss[4:], 64)
	if err != nil {
		return 0, fmt.Errorf("second: %w", err)
	}

	day, err := strconv.Atoi(ddmmyy[0:2])
	if err != nil {
		return 0, fmt.Errorf("day: %w", err)
	}
	month, err := strconv.Atoi(ddmmyy[2:4])
	if err != nil {
		return 0, fmt.Errorf("month: %w", err)
	}
	yy, err := strconv.Atoi(ddmmyy[4:6])
	if err != nil {
		return 0, fmt.Errorf("year: %w", err)
	}
	year := 2000 + yy

	sec := int(secF)
	nsec := int((secF - float64(sec)) * 1e9)
	t := time.Date(year, time.Month(month), day, hh, mm, sec, nsec, time.UTC)
	return float64(t.UnixNano()) / 1e9, nil
}
