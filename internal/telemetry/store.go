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

package telemetry

import (
	"math"
	"sort"

	"github.com/e1z0/dashcam-core/internal/media"
)

// earthRadiusKm is the Earth radius used for haversine distance,
// matching spec.md §4.E.
const earthRadiusKm = 6371.0

// Store holds a time-sorted sequence of GpsPoints plus the wallclock
// instant that corresponds to playback time zero.
type Store struct {
	startWallclock float64
	points         []media.GpsPoint
}

// NewStore builds a Store from an unsorted point slice, sorting by
// WallclockUnix (invariant I5).
func NewStore(startWallclock float64, points []media.GpsPoint) *Store {
	sorted := append([]media.GpsPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].WallclockUnix < sorted[j].WallclockUnix })
	return &Store{startWallclock: startWallclock, points: sorted}
}

// Len returns the number of points held.
func (s *Store) Len() int { return len(s.points) }

// LocationAt maps playback time t to a GpsPoint, linearly
// interpolating between the bracketing samples (spec.md §4.E). Nil
// when the store is empty.
func (s *Store) LocationAt(t float64) *media.GpsPoint {
	if len(s.points) == 0 {
		return nil
	}
	wallclock := s.startWallclock + t

	idx := sort.Search(len(s.points), func(i int) bool { return s.points[i].WallclockUnix >= wallclock })

	switch {
	case idx == 0:
		p := s.points[0]
		return &p
	case idx == len(s.points):
		p := s.points[len(s.points)-1]
		return &p
	case s.points[idx].WallclockUnix == wallclock:
		p := s.points[idx]
		return &p
	default:
		before, after := s.points[idx-1], s.points[idx]
		p := interpolate(before, after, wallclock)
		return &p
	}
}

// interpolate linearly blends before/after at the given wallclock
// instant, weighting by fractional distance between their timestamps.
// Heading interpolation takes the shorter arc across the 0/360 seam.
func interpolate(before, after media.GpsPoint, wallclock float64) media.GpsPoint {
	span := after.WallclockUnix - before.WallclockUnix
	frac := 0.5
	if span > 0 {
		frac = (wallclock - before.WallclockUnix) / span
	}

	out := media.GpsPoint{
		WallclockUnix: wallclock,
		Latitude:      lerp(before.Latitude, after.Latitude, frac),
		Longitude:     lerp(before.Longitude, after.Longitude, frac),
	}
	if before.Altitude != nil && after.Altitude != nil {
		v := lerp(*before.Altitude, *after.Altitude, frac)
		out.Altitude = &v
	}
	if before.SpeedKmh != nil && after.SpeedKmh != nil {
		v := lerp(*before.SpeedKmh, *after.SpeedKmh, frac)
		out.SpeedKmh = &v
	}
	if before.HeadingDeg != nil && after.HeadingDeg != nil {
		v := lerpHeading(*before.HeadingDeg, *after.HeadingDeg, frac)
		out.HeadingDeg = &v
	}
	return out
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }

// lerpHeading interpolates a compass heading across the shorter arc,
// handling the wraparound at 0/360 degrees.
func lerpHeading(a, b, frac float64) float64 {
	delta := math.Mod(b-a+540, 360) - 180 // shortest signed delta in [-180, 180)
	h := math.Mod(a+delta*frac+360, 360)
	return h
}

// PointsIn returns the points whose playback-time offset falls in
// [startT, endT].
func (s *Store) PointsIn(startT, endT float64) []media.GpsPoint {
	lo := s.startWallclock + startT
	hi := s.startWallclock + endT
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].WallclockUnix >= lo })
	j := sort.Search(len(s.points), func(i int) bool { return s.points[i].WallclockUnix > hi })
	if i >= j {
		return nil
	}
	out := make([]media.GpsPoint, j-i)
	copy(out, s.points[i:j])
	return out
}

// SplitAt divides the points into those with offset <= t and those
// with offset > t.
func (s *Store) SplitAt(t float64) (past, future []media.GpsPoint) {
	cut := s.startWallclock + t
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].WallclockUnix > cut })
	past = append([]media.GpsPoint(nil), s.points[:i]...)
	future = append([]media.GpsPoint(nil), s.points[i:]...)
	return past, future
}

// DistanceTravelled sums haversine distances, in meters, over
// consecutive points whose offset is <= t.
func (s *Store) DistanceTravelled(t float64) float64 {
	cut := s.startWallclock + t
	total := 0.0
	for i := 1; i < len(s.points); i++ {
		if s.points[i].WallclockUnix > cut {
			break
		}
		total += haversineMeters(s.points[i-1], s.points[i])
	}
	return total
}

// AverageSpeed returns the arithmetic mean of non-missing SpeedKmh
// across points with offset <= t, and false when no point carries
// speed.
func (s *Store) AverageSpeed(t float64) (float64, bool) {
	cut := s.startWallclock + t
	sum, n := 0.0, 0
	for _, p := range s.points {
		if p.WallclockUnix > cut {
			break
		}
		if p.SpeedKmh != nil {
			sum += *p.SpeedKmh
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// haversineMeters returns the great-circle distance between two
// GpsPoints in meters, using Earth radius 6371.0 km (spec.md §4.E).
func haversineMeters(a, b media.GpsPoint) float64 {
	lat1, lat2 := deg2rad(a.Latitude), deg2rad(b.Latitude)
	dLat := deg2rad(b.Latitude - a.Latitude)
	dLon := deg2rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c * 1000.0
}

func deg2rad(d float64) float64 { return d * math.Pi / 180.0 }
