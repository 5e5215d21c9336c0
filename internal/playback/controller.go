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

// Package playback implements the multi-channel SyncController
// (component D): a wall-clock-anchored master clock, a periodic tick
// driver that samples every channel's FrameBuffer at a common
// current_time, drift detection, and buffer-health backpressure. It
// is named playback rather than sync to avoid colliding with the
// standard library's sync package that its own mutex usage depends
// on. The tick driver's shape (ticker goroutine, stop channel,
// single-writer state under a mutex) follows the same idiom as
// QAnotherRTSP's camera.go metricsTimer, generalized from a
// fixed-interval metrics poll into the master presentation clock.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/e1z0/dashcam-core/internal/channel"
	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/media"
)

// DriftPolicy selects how the tick driver reacts to catastrophic
// drift (spec.md §4.D step 4, resolving its stated Open Question).
type DriftPolicy int

const (
	// DriftPolicyPassive only records drift observations; it never
	// re-seeks a channel. This is the default.
	DriftPolicyPassive DriftPolicy = iota
	// DriftPolicyAggressive re-seeks a channel to current_time when its
	// drift exceeds the catastrophic threshold.
	DriftPolicyAggressive
)

const (
	// DefaultTargetFPS is the tick driver's default firing rate.
	DefaultTargetFPS = 30.0
	// DriftThreshold is the advisory drift threshold (spec.md §4.D).
	DriftThreshold = 50 * time.Millisecond
	// CatastrophicDrift triggers a re-seek under DriftPolicyAggressive.
	CatastrophicDrift = 500 * time.Millisecond
	// BufferHealthLow is the fill-ratio floor that enters Buffering.
	BufferHealthLow = 0.2
)

// DriftObservation is emitted per tick for channels whose drift
// exceeded DriftThreshold.
type DriftObservation struct {
	ChannelID string
	Drift     time.Duration
	Corrected bool
}

// TickResult is the per-position frame map produced by one tick, plus
// any drift observations recorded during it (spec.md §4.D "Frame
// output").
type TickResult struct {
	Frames map[media.CameraPosition]media.VideoFrame
	Drift  []DriftObservation
}

// Controller is the SyncController (component D).
type Controller struct {
	mu sync.Mutex

	channels  []*channel.VideoChannel
	masterIdx int

	state           media.PlaybackState
	currentTime     float64
	duration        float64
	speedMultiplier float64
	targetFPS       float64
	driftPolicy     DriftPolicy

	wallclockStart time.Time
	playbackStart  float64

	tickerStop chan struct{}
	tickerDone chan struct{}

	lastResult TickResult

	// OnTick, when set, is invoked from the tick goroutine with each
	// TickResult. Optional; the facade (session.MediaSession) is the
	// typical consumer.
	OnTick func(TickResult)
}

// New returns a Controller in the Stopped state with no channels
// loaded.
func New() *Controller {
	return &Controller{
		state:           media.PlaybackStopped,
		speedMultiplier: 1.0,
		targetFPS:       DefaultTargetFPS,
		driftPolicy:     DriftPolicyPassive,
	}
}

// SetDriftPolicy selects the reaction to catastrophic drift. Safe to
// call at any time.
func (c *Controller) SetDriftPolicy(p DriftPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driftPolicy = p
}

// SetTargetFPS overrides the tick driver's firing rate. Must be
// called before Play.
func (c *Controller) SetTargetFPS(fps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.targetFPS = fps
	}
}

// State returns the current PlaybackState.
func (c *Controller) State() media.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTime returns the most recently computed presentation time.
func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// Duration returns the loaded VideoFile's duration.
func (c *Controller) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Load stops any current session and constructs/initializes one
// VideoChannel per enabled descriptor. Fails if the file has zero
// enabled channels or any channel fails to initialize (spec.md §4.D
// Loading).
func (c *Controller) Load(file media.VideoFile, capacity int, openFunc codec.OpenFunc) error {
	c.Stop()

	enabled := file.EnabledChannels()
	if len(enabled) == 0 {
		return fmt.Errorf("playback: video file has no enabled channels")
	}

	chans := make([]*channel.VideoChannel, 0, len(enabled))
	masterIdx := -1
	for i, d := range enabled {
		ch := channel.New(d, capacity, openFunc)
		if err := ch.Initialize(); err != nil {
			for _, prior := range chans {
				prior.Stop()
			}
			return fmt.Errorf("playback: initializing channel %s: %w", d.ID, err)
		}
		chans = append(chans, ch)
		if masterIdx == -1 && d.Position == media.PositionFront {
			masterIdx = i
		}
	}
	if masterIdx == -1 {
		masterIdx = 0
	}
	chans[masterIdx].IsMaster = true

	c.mu.Lock()
	c.channels = chans
	c.masterIdx = masterIdx
	c.duration = file.Duration
	c.currentTime = 0
	c.state = media.PlaybackPaused
	c.mu.Unlock()
	return nil
}

// Channels returns the loaded channel set. Callers must not mutate
// the slice.
func (c *Controller) Channels() []*channel.VideoChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels
}

// masterChannel returns the audio-bearing master channel, or nil if
// nothing is loaded.
func (c *Controller) masterChannel() *channel.VideoChannel {
	if c.masterIdx < 0 || c.masterIdx >= len(c.channels) {
		return nil
	}
	return c.channels[c.masterIdx]
}

// Play starts every channel decoding, anchors the master clock, and
// starts the tick driver.
func (c *Controller) Play() error {
	c.mu.Lock()
	if len(c.channels) == 0 {
		c.mu.Unlock()
		return fmt.Errorf("playback: Play called with nothing loaded")
	}
	for _, ch := range c.channels {
		if ch.State() == media.ChannelReady {
			if err := ch.StartDecoding(); err != nil {
				c.mu.Unlock()
				return fmt.Errorf("playback: starting channel %s: %w", ch.ID(), err)
			}
		}
	}
	c.anchorLocked()
	c.state = media.PlaybackPlaying
	stop, done := make(chan struct{}), make(chan struct{})
	c.tickerStop, c.tickerDone = stop, done
	fps := c.targetFPS
	c.mu.Unlock()

	go c.tickLoop(stop, done, fps)
	return nil
}

// anchorLocked re-anchors wallclock_start/playback_start to "now".
// Caller must hold mu.
func (c *Controller) anchorLocked() {
	c.wallclockStart = time.Now()
	c.playbackStart = c.currentTime
}

// Pause stops the tick driver; channels keep decoding to refill their
// buffers but nothing advances current_time.
func (c *Controller) Pause() {
	c.stopTicker()
	c.mu.Lock()
	if c.state == media.PlaybackPlaying || c.state == media.PlaybackBuffering {
		c.state = media.PlaybackPaused
	}
	c.mu.Unlock()
}

// Toggle flips between Playing and Paused.
func (c *Controller) Toggle() error {
	if c.State() == media.PlaybackPlaying || c.State() == media.PlaybackBuffering {
		c.Pause()
		return nil
	}
	return c.Play()
}

// Stop performs a full teardown: stops the tick driver and every
// channel, and resets to the Stopped state.
func (c *Controller) Stop() {
	c.stopTicker()
	c.mu.Lock()
	chans := c.channels
	c.channels = nil
	c.masterIdx = -1
	c.currentTime = 0
	c.duration = 0
	c.state = media.PlaybackStopped
	c.mu.Unlock()

	for _, ch := range chans {
		ch.Stop()
	}
}

func (c *Controller) stopTicker() {
	c.mu.Lock()
	stop, done := c.tickerStop, c.tickerDone
	c.tickerStop, c.tickerDone = nil, nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	if done != nil {
		<-done
	}
}

// Seek pauses the tick, clamps t to [0, duration], seeks every
// channel, sets current_time, and resumes ticking if playback was
// active (spec.md §4.D).
func (c *Controller) Seek(t float64) error {
	c.mu.Lock()
	wasPlaying := c.state == media.PlaybackPlaying || c.state == media.PlaybackBuffering
	dur := c.duration
	chans := c.channels
	c.mu.Unlock()

	c.stopTicker()

	if t < 0 {
		t = 0
	}
	if t > dur {
		t = dur
	}
	for _, ch := range chans {
		if err := ch.Seek(t); err != nil {
			return fmt.Errorf("playback: seek: %w", err)
		}
	}

	c.mu.Lock()
	c.currentTime = t
	if wasPlaying {
		c.anchorLocked()
	}
	c.mu.Unlock()

	if wasPlaying {
		c.mu.Lock()
		stop, done := make(chan struct{}), make(chan struct{})
		c.tickerStop, c.tickerDone = stop, done
		fps := c.targetFPS
		c.mu.Unlock()
		go c.tickLoop(stop, done, fps)
	}
	return nil
}

// SeekRelative seeks to current_time + delta seconds.
func (c *Controller) SeekRelative(delta float64) error {
	return c.Seek(c.CurrentTime() + delta)
}

// SetSpeed changes the speed_multiplier, re-anchoring so the change
// takes effect from this instant.
func (c *Controller) SetSpeed(mult float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mult <= 0 {
		return
	}
	c.anchorLocked()
	c.speedMultiplier = mult
}

// StepForward advances to the master channel's next frame after
// current_time and re-anchors there.
func (c *Controller) StepForward() error {
	return c.step(media.StrategyAfter)
}

// StepBackward moves to the master channel's previous frame before
// current_time and re-anchors there.
func (c *Controller) StepBackward() error {
	return c.step(media.StrategyBefore)
}

func (c *Controller) step(strategy media.FrameStrategy) error {
	c.mu.Lock()
	master := c.masterChannel()
	t := c.currentTime
	c.mu.Unlock()
	if master == nil {
		return fmt.Errorf("playback: step called with nothing loaded")
	}
	f := master.FrameAt(t, strategy, 0)
	if f == nil {
		return nil // no frame in that direction; no-op
	}
	c.mu.Lock()
	c.currentTime = f.Timestamp
	c.anchorLocked()
	c.mu.Unlock()
	return nil
}

// LastTick returns the most recently computed TickResult, usable even
// while paused.
func (c *Controller) LastTick() TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

func (c *Controller) tickLoop(stop <-chan struct{}, done chan<- struct{}, fps float64) {
	defer close(done)
	interval := time.Duration(float64(time.Second) / fps)
	if interval <= 0 {
		interval = time.Second / time.Duration(DefaultTargetFPS)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done2 := c.tick(); done2 {
				return
			}
		}
	}
}

// tick performs one iteration of spec.md §4.D's five tick steps.
// Returns true if the tick driver should stop itself (completion).
func (c *Controller) tick() bool {
	c.mu.Lock()
	now := time.Now()
	c.currentTime = c.playbackStart + now.Sub(c.wallclockStart).Seconds()*c.speedMultiplier
	if c.currentTime >= c.duration {
		c.currentTime = c.duration
		c.state = media.PlaybackCompleted
		chans := c.channels
		policy := c.driftPolicy
		t := c.currentTime
		result := c.sampleLocked(t, policy)
		c.lastResult = result
		onTick := c.OnTick
		c.mu.Unlock()
		for _, ch := range chans {
			ch.Stop()
		}
		if onTick != nil {
			onTick(result)
		}
		return true
	}

	t := c.currentTime
	policy := c.driftPolicy
	result := c.sampleLocked(t, policy)
	c.lastResult = result

	anyLow := false
	for _, ch := range c.channels {
		if ch.BufferStatus().FillRatio < BufferHealthLow {
			anyLow = true
			break
		}
	}
	if anyLow && c.state == media.PlaybackPlaying {
		c.state = media.PlaybackBuffering
	} else if !anyLow && c.state == media.PlaybackBuffering {
		c.state = media.PlaybackPlaying
	}
	onTick := c.OnTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(result)
	}
	return false
}

// sampleLocked samples every channel at t (Nearest), computes drift
// observations, and applies the configured DriftPolicy. Caller must
// hold mu.
func (c *Controller) sampleLocked(t float64, policy DriftPolicy) TickResult {
	frames := make(map[media.CameraPosition]media.VideoFrame, len(c.channels))
	var drifts []DriftObservation

	for _, ch := range c.channels {
		f := ch.FrameAt(t, media.StrategyNearest, 0)
		if f == nil {
			continue
		}
		frames[ch.Descriptor().Position] = *f

		drift := time.Duration(absf(f.Timestamp-t) * float64(time.Second))
		if drift > DriftThreshold {
			obs := DriftObservation{ChannelID: ch.ID(), Drift: drift}
			if policy == DriftPolicyAggressive && drift > CatastrophicDrift {
				// TryAsyncSeek gates this to one in-flight seek per
				// channel; a correction already running on this channel
				// means the next tick re-samples its outcome instead of
				// stacking another seek on top of it.
				obs.Corrected = ch.TryAsyncSeek(t)
			}
			drifts = append(drifts, obs)
		}
	}
	return TickResult{Frames: frames, Drift: drifts}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
