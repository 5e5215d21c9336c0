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

// Package media holds the data model shared by every stage of the
// decode/synchronization pipeline: frames, channel descriptors, the
// composite VideoFile, and the small state enums channels and sessions
// move through.
package media

import "fmt"

// PixelFormat is the pixel layout a VideoFrame's bytes are packed in.
type PixelFormat int

const (
	PixelFormatBGRA8 PixelFormat = iota
	PixelFormatRGBA8
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatBGRA8:
		return "BGRA8"
	case PixelFormatRGBA8:
		return "RGBA8"
	default:
		return "unknown"
	}
}

// VideoFrame is a single decoded image, immutable after construction.
// It is owned by the FrameBuffer it resides in and shared by reference
// with consumers; callers must not mutate PixelData.
type VideoFrame struct {
	Timestamp    float64 // seconds since stream start, monotonically increasing per channel
	Width        int
	Height       int
	PixelFormat  PixelFormat
	PixelData    []byte // contiguous buffer, honor RowStride (may exceed Width*4 due to alignment)
	RowStride    int
	FrameNumber  int64 // decode-order sequence
	IsKeyframe   bool
}

// SampleFormat is the PCM layout of an AudioFrame.
type SampleFormat int

const (
	SampleFormatF32Planar SampleFormat = iota
	SampleFormatF32Interleaved
	SampleFormatS16Planar
	SampleFormatS16Interleaved
	SampleFormatS32Planar
	SampleFormatS32Interleaved
)

// AudioFrame holds PCM samples tied to a timestamp. Only the
// audio-bearing master channel (see SyncController) publishes these.
type AudioFrame struct {
	Timestamp     float64
	SampleRate    int
	ChannelCount  int
	SampleFormat  SampleFormat
	SampleCount   int // per channel
	PCMBytes      []byte
}

// CameraPosition identifies the physical mounting of a channel.
type CameraPosition int

const (
	PositionFront CameraPosition = iota
	PositionRear
	PositionLeft
	PositionRight
	PositionInterior
	PositionOther
)

func (p CameraPosition) String() string {
	switch p {
	case PositionFront:
		return "Front"
	case PositionRear:
		return "Rear"
	case PositionLeft:
		return "Left"
	case PositionRight:
		return "Right"
	case PositionInterior:
		return "Interior"
	default:
		return "Other"
	}
}

// ChannelDescriptor is the static metadata of one channel.
type ChannelDescriptor struct {
	ID             string // stable channel identifier
	Position       CameraPosition
	SourceLocator  string // opaque file reference (path, URL, etc.)
	Width          int
	Height         int
	FrameRate      float64
	CodecName      string
	Enabled        bool
}

// VideoFile is the composite recording unit: a set of channels sharing
// a timeline, plus optional attached telemetry.
type VideoFile struct {
	ID              string
	Channels        []ChannelDescriptor
	StartWallclock  int64 // unix seconds
	Duration        float64
	TelemetryLocator string // opaque reference to an NMEA log, empty if none
}

// EnabledChannels returns the subset of Channels with Enabled set.
func (v VideoFile) EnabledChannels() []ChannelDescriptor {
	out := make([]ChannelDescriptor, 0, len(v.Channels))
	for _, c := range v.Channels {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// PlaybackState is the SyncController/MediaSession's top-level state.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackPaused
	PlaybackPlaying
	PlaybackBuffering
	PlaybackCompleted
	PlaybackError
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "Stopped"
	case PlaybackPaused:
		return "Paused"
	case PlaybackPlaying:
		return "Playing"
	case PlaybackBuffering:
		return "Buffering"
	case PlaybackCompleted:
		return "Completed"
	case PlaybackError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ChannelState is one VideoChannel's lifecycle state.
type ChannelState int

const (
	ChannelIdle ChannelState = iota
	ChannelReady
	ChannelDecoding
	ChannelCompleted
	ChannelErrored
)

func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "Idle"
	case ChannelReady:
		return "Ready"
	case ChannelDecoding:
		return "Decoding"
	case ChannelCompleted:
		return "Completed"
	case ChannelErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// GpsPoint is one telemetry sample. Points are strictly sorted by
// WallclockUnix within a TelemetryStore (invariant I5).
type GpsPoint struct {
	WallclockUnix       float64 // seconds since epoch, fractional
	Latitude            float64
	Longitude           float64
	Altitude            *float64
	SpeedKmh            *float64
	HeadingDeg          *float64
	// HorizontalAccuracyM is a coarse estimate (HDOP * 10m) taken
	// from a GGA sentence's HDOP field, not a measured accuracy.
	HorizontalAccuracyM *float64
	SatelliteCount      *int
}

// EventKind is the category of a detected driving event.
type EventKind int

const (
	EventHardBraking EventKind = iota
	EventRapidAcceleration
	EventSharpTurn
	EventImpact
)

func (k EventKind) String() string {
	switch k {
	case EventHardBraking:
		return "HardBraking"
	case EventRapidAcceleration:
		return "RapidAcceleration"
	case EventSharpTurn:
		return "SharpTurn"
	case EventImpact:
		return "Impact"
	default:
		return "Unknown"
	}
}

// EventMarker is a single detected event, timestamped in playback
// time (invariant I6), not wallclock.
type EventMarker struct {
	PlaybackTime float64
	Kind         EventKind
	Magnitude    float64 // clamped to [0,1]
	Attributes   map[string]string
}

// FrameStrategy selects how FrameBuffer.FrameAt resolves a query time.
type FrameStrategy int

const (
	StrategyNearest FrameStrategy = iota
	StrategyBefore
	StrategyAfter
	StrategyExact
)

// FillInfo summarizes one channel's buffer-health for backpressure
// observation (spec.md §4.C buffer_status).
type FillInfo struct {
	Fill      int
	Capacity  int
	FillRatio float64
}

func (f FillInfo) String() string {
	return fmt.Sprintf("%d/%d (%.0f%%)", f.Fill, f.Capacity, f.FillRatio*100)
}
