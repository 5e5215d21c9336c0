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

// Package events derives driving-behavior markers (hard braking,
// rapid acceleration, sharp turns) from a telemetry stream (component
// F). The pairwise-delta shape has no direct analogue in the teacher
// repo; it is new code written against spec.md §4.F, kept in the
// teacher's terse, sentinel-free style.
package events

import (
	"math"
	"sort"

	"github.com/e1z0/dashcam-core/internal/media"
)

// DefaultMinInterval is the de-duplication window used by Dedupe.
const DefaultMinInterval = 2.0 // seconds

// Detect walks consecutive GpsPoint pairs and emits EventMarkers per
// spec.md §4.F. playbackOf converts a point's WallclockUnix into
// playback time (invariant I6: EventMarker timestamps are playback
// time, not wallclock).
func Detect(points []media.GpsPoint, playbackOf func(wallclockUnix float64) float64) []media.EventMarker {
	var out []media.EventMarker

	for i := 1; i < len(points); i++ {
		p1, p2 := points[i-1], points[i]
		dt := p2.WallclockUnix - p1.WallclockUnix
		if dt <= 0 || dt > 0.5 {
			continue // data gap
		}
		ts := playbackOf(p2.WallclockUnix)

		if e, ok := detectBraking(p1, p2, ts); ok {
			out = append(out, e)
		}
		if e, ok := detectAcceleration(p1, p2, ts); ok {
			out = append(out, e)
		}
		if e, ok := detectSharpTurn(p1, p2, ts); ok {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PlaybackTime < out[j].PlaybackTime })
	return out
}

func detectBraking(p1, p2 media.GpsPoint, ts float64) (media.EventMarker, bool) {
	if p1.SpeedKmh == nil || p2.SpeedKmh == nil {
		return media.EventMarker{}, false
	}
	v1, v2 := *p1.SpeedKmh, *p2.SpeedKmh
	delta := v2 - v1
	if delta <= -20 && v2 > 10 {
		mag := math.Min(1, math.Abs(delta)/50)
		return media.EventMarker{PlaybackTime: ts, Kind: media.EventHardBraking, Magnitude: mag}, true
	}
	return media.EventMarker{}, false
}

func detectAcceleration(p1, p2 media.GpsPoint, ts float64) (media.EventMarker, bool) {
	if p1.SpeedKmh == nil || p2.SpeedKmh == nil {
		return media.EventMarker{}, false
	}
	v1, v2 := *p1.SpeedKmh, *p2.SpeedKmh
	delta := v2 - v1
	if delta >= 20 && v1 < 100 {
		mag := math.Min(1, delta/60)
		return media.EventMarker{PlaybackTime: ts, Kind: media.EventRapidAcceleration, Magnitude: mag}, true
	}
	return media.EventMarker{}, false
}

func detectSharpTurn(p1, p2 media.GpsPoint, ts float64) (media.EventMarker, bool) {
	if p1.HeadingDeg == nil || p2.HeadingDeg == nil || p1.SpeedKmh == nil || p2.SpeedKmh == nil {
		return media.EventMarker{}, false
	}
	v1, v2 := *p1.SpeedKmh, *p2.SpeedKmh
	if !(v1 > 20 && v2 > 20) {
		return media.EventMarker{}, false
	}
	if math.Abs(v2-v1) >= 10 {
		return media.EventMarker{}, false
	}
	dHeading := headingDelta(*p1.HeadingDeg, *p2.HeadingDeg)
	if dHeading < 45 {
		return media.EventMarker{}, false
	}
	mag := math.Min(1, dHeading/90)
	return media.EventMarker{PlaybackTime: ts, Kind: media.EventSharpTurn, Magnitude: mag}, true
}

// headingDelta returns the minimum arc, in degrees, between two
// compass headings modulo 360.
func headingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(b-a), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Dedupe removes same-kind events that fall within minInterval
// seconds of a prior kept event of that kind, keeping the
// higher-magnitude one. events must already be sorted by PlaybackTime.
func Dedupe(events []media.EventMarker, minInterval float64) []media.EventMarker {
	lastKept := make(map[media.EventKind]int) // index into out; absent if none yet
	var out []media.EventMarker

	for _, e := range events {
		idx, seen := lastKept[e.Kind]
		if !seen {
			out = append(out, e)
			lastKept[e.Kind] = len(out) - 1
			continue
		}
		if e.PlaybackTime-out[idx].PlaybackTime > minInterval {
			out = append(out, e)
			lastKept[e.Kind] = len(out) - 1
			continue
		}
		if e.Magnitude > out[idx].Magnitude {
			out[idx] = e
		}
	}
	return out
}
