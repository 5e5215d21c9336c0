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

// Package session implements MediaSession (component G): a thin
// facade wiring the SyncController, the TelemetryStore, and the
// EventDetector's result behind one pull API. Cross-component
// observability is a pull API plus an optional EventSink for state
// transitions rather than publish/subscribe (spec.md §9 Design
// Notes), so callers that want push semantics wrap EventSink
// themselves instead of the core depending on a reactive runtime.
package session

import (
	"sync"

	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/events"
	"github.com/e1z0/dashcam-core/internal/media"
	"github.com/e1z0/dashcam-core/internal/playback"
	"github.com/e1z0/dashcam-core/internal/telemetry"
)

// EventSink observes session state transitions. Implementations must
// not block; MediaSession calls it synchronously from Load and from
// the tick goroutine.
type EventSink interface {
	OnStateChange(from, to media.PlaybackState)
}

// MediaSession is the top-level facade over SyncController,
// TelemetryStore, and the detected EventMarkers for one loaded
// VideoFile.
type MediaSession struct {
	controller   *playback.Controller
	store        *telemetry.Store
	eventMarkers []media.EventMarker

	mu       sync.Mutex
	sink     EventSink
	lastSeen media.PlaybackState
}

// New returns an empty MediaSession. Call Load before any playback
// operation.
func New() *MediaSession {
	s := &MediaSession{controller: playback.New(), lastSeen: media.PlaybackStopped}
	s.controller.OnTick = func(playback.TickResult) { s.observeStateChange() }
	return s
}

// SetEventSink installs the optional state-transition observer.
func (s *MediaSession) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// SetDriftPolicy forwards to the underlying SyncController.
func (s *MediaSession) SetDriftPolicy(p playback.DriftPolicy) {
	s.controller.SetDriftPolicy(p)
}

// Load wires up a VideoFile: constructs the SyncController's
// channels, builds the TelemetryStore from gpsPoints (nil if the file
// carries no telemetry), and runs EventDetector + Dedupe over it.
func (s *MediaSession) Load(file media.VideoFile, capacity int, openFunc codec.OpenFunc, gpsPoints []media.GpsPoint) error {
	if err := s.controller.Load(file, capacity, openFunc); err != nil {
		return err
	}

	s.store = telemetry.NewStore(float64(file.StartWallclock), gpsPoints)

	playbackOf := func(wallclockUnix float64) float64 { return wallclockUnix - float64(file.StartWallclock) }
	raw := events.Detect(gpsPoints, playbackOf)
	s.eventMarkers = events.Dedupe(raw, events.DefaultMinInterval)

	s.observeStateChange()
	return nil
}

// SetAudioSink wires fn as the destination for the audio-bearing
// master channel's decoded audio frames (spec.md §4.D master channel
// policy). Must be called after Load.
func (s *MediaSession) SetAudioSink(fn func(media.AudioFrame)) {
	for _, ch := range s.controller.Channels() {
		if ch.IsMaster {
			ch.SetAudioSink(fn)
		}
	}
}

// Play starts playback (spec.md §4.D play()).
func (s *MediaSession) Play() error { return s.controller.Play() }

// Pause stops the tick driver without tearing channels down.
func (s *MediaSession) Pause() { s.controller.Pause() }

// Toggle flips between Playing and Paused.
func (s *MediaSession) Toggle() error { return s.controller.Toggle() }

// Stop performs a full teardown.
func (s *MediaSession) Stop() { s.controller.Stop() }

// Seek clamps t to [0, duration] and repositions every channel.
func (s *MediaSession) Seek(t float64) error { return s.controller.Seek(t) }

// SeekRelative seeks to CurrentTime()+delta.
func (s *MediaSession) SeekRelative(delta float64) error { return s.controller.SeekRelative(delta) }

// StepForward advances to the master channel's next frame.
func (s *MediaSession) StepForward() error { return s.controller.StepForward() }

// StepBackward moves to the master channel's previous frame.
func (s *MediaSession) StepBackward() error { return s.controller.StepBackward() }

// SetSpeed changes the playback speed multiplier.
func (s *MediaSession) SetSpeed(mult float64) { s.controller.SetSpeed(mult) }

// State returns the current PlaybackState.
func (s *MediaSession) State() media.PlaybackState { return s.controller.State() }

// CurrentTime returns the most recently computed presentation time.
func (s *MediaSession) CurrentTime() float64 { return s.controller.CurrentTime() }

// Duration returns the loaded VideoFile's duration.
func (s *MediaSession) Duration() float64 { return s.controller.Duration() }

// PositionRatio returns CurrentTime()/Duration(), or 0 when duration
// is zero (nothing loaded).
func (s *MediaSession) PositionRatio() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return s.CurrentTime() / d
}

// IsBuffering reports whether the session is in the Buffering
// substate.
func (s *MediaSession) IsBuffering() bool {
	return s.State() == media.PlaybackBuffering
}

// SynchronizedFrames returns the per-position frame map from the most
// recent tick.
func (s *MediaSession) SynchronizedFrames() map[media.CameraPosition]media.VideoFrame {
	return s.controller.LastTick().Frames
}

// BufferStatus returns each channel's fill/capacity snapshot, keyed
// by camera position.
func (s *MediaSession) BufferStatus() map[media.CameraPosition]media.FillInfo {
	out := make(map[media.CameraPosition]media.FillInfo)
	for _, ch := range s.controller.Channels() {
		out[ch.Descriptor().Position] = ch.BufferStatus()
	}
	return out
}

// LocationAt maps playback time t to a GpsPoint, or nil when no
// telemetry was loaded or the store is empty.
func (s *MediaSession) LocationAt(t float64) *media.GpsPoint {
	if s.store == nil {
		return nil
	}
	return s.store.LocationAt(t)
}

// Events returns the de-duplicated EventMarkers detected at Load
// time.
func (s *MediaSession) Events() []media.EventMarker {
	return s.eventMarkers
}

// observeStateChange notifies the EventSink, if any, when the
// controller's state has changed since the last observation.
func (s *MediaSession) observeStateChange() {
	cur := s.controller.State()

	s.mu.Lock()
	if cur == s.lastSeen {
		s.mu.Unlock()
		return
	}
	prev := s.lastSeen
	s.lastSeen = cur
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.OnStateChange(prev, cur)
	}
}
