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

// Package channel owns one CodecAdapter, one FrameBuffer, and the
// dedicated decode worker that connects them (component C). The
// stop/done channel pair and the cooperative cancellation discipline
// are the same shape as QAnotherRTSP's CamWindow/decodeLoop
// (camera.go, video.go); the lifecycle states and the buffer-full
// backpressure sleep are new, since the teacher's camera windows never
// paused decoding and never owned a seekable buffer.
package channel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e1z0/dashcam-core/internal/buffer"
	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/media"
)

// bufferFullSleep is how long the decode worker backs off when the
// buffer is at capacity (spec.md §4.C step 2).
const bufferFullSleep = 10 * time.Millisecond

// openAttempts is how many times in total Initialize tries to open the
// adapter through codec.OpenWithRetry before giving up, pacing retries
// against the storage-backend collaborator of spec.md §6.
const openAttempts = 3

// Metrics is a snapshot of one channel's throughput, lifted from
// camera.go's metricsTimer block (fps/bitrate/drop-percent/health
// score), generalized from a live-RTSP window onto a file-backed
// channel.
type Metrics struct {
	FPS         float64
	BitrateKbps float64
	// DropsPct is derived from the framesDropped counter, which the
	// decode worker never increments, so it is always 0.
	DropsPct float64
	Health   int // 0..5
}

// VideoChannel owns one CodecAdapter, one FrameBuffer and a background
// decode worker, and exposes FrameAt for the SyncController to sample.
type VideoChannel struct {
	id       string
	desc     media.ChannelDescriptor
	openFunc codec.OpenFunc

	mu     sync.Mutex
	state  media.ChannelState
	errMsg string
	adp    codec.Adapter
	buf    *buffer.FrameBuffer

	running atomic.Bool
	seeking atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	// IsMaster forwards decoded audio to onAudio; only one channel per
	// session should be the master (spec.md §4.D Master channel policy).
	IsMaster bool
	onAudio  func(media.AudioFrame)

	framesDecoded int64
	bytesVideo    int64
	framesDropped int64
	lastMetricAt  time.Time
	lastMFrames   int64
	lastMBytes    int64
	lastMDrops    int64
}

// New creates a VideoChannel in the Idle state for the given
// descriptor. openFunc constructs the CodecAdapter on Initialize;
// production callers pass codec.OpenFFmpeg.
func New(desc media.ChannelDescriptor, capacity int, openFunc codec.OpenFunc) *VideoChannel {
	return &VideoChannel{
		id:       desc.ID,
		desc:     desc,
		openFunc: openFunc,
		state:    media.ChannelIdle,
		buf:      buffer.New(capacity),
	}
}

// ID returns the channel's stable identifier. VideoChannel equality
// is by this ID, never by buffer contents (spec.md §9).
func (c *VideoChannel) ID() string { return c.id }

// Descriptor returns the static channel metadata.
func (c *VideoChannel) Descriptor() media.ChannelDescriptor { return c.desc }

// State returns the current lifecycle state.
func (c *VideoChannel) State() media.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error message recorded when the channel entered
// Errored, or "" otherwise.
func (c *VideoChannel) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// SetAudioSink installs the callback used to forward decoded audio
// frames when IsMaster is true. Frames from non-master channels, and
// all frames when no sink is installed, are discarded (spec.md §4.D).
func (c *VideoChannel) SetAudioSink(fn func(media.AudioFrame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = fn
}

// Initialize opens the adapter and snapshots its VideoInfo, moving
// Idle -> Ready. Fails if the channel is not Idle or the adapter
// fails to open.
func (c *VideoChannel) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != media.ChannelIdle {
		return fmt.Errorf("channel %s: Initialize called in state %v", c.id, c.state)
	}
	adp, err := codec.OpenWithRetry(c.openFunc, c.desc.SourceLocator, openAttempts)
	if err != nil {
		c.state = media.ChannelErrored
		c.errMsg = err.Error()
		return err
	}
	c.adp = adp
	c.state = media.ChannelReady
	return nil
}

// StartDecoding spawns the decode worker. Idempotent if already
// Decoding.
func (c *VideoChannel) StartDecoding() error {
	c.mu.Lock()
	if c.state == media.ChannelDecoding {
		c.mu.Unlock()
		return nil
	}
	if c.state != media.ChannelReady {
		c.mu.Unlock()
		return fmt.Errorf("channel %s: StartDecoding called in state %v", c.id, c.state)
	}
	c.state = media.ChannelDecoding
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running.Store(true)
	c.lastMetricAt = time.Now()
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go c.decodeLoop(stop, done)
	return nil
}

// FrameAt delegates to the underlying FrameBuffer.
func (c *VideoChannel) FrameAt(t float64, strategy media.FrameStrategy, tolerance float64) *media.VideoFrame {
	return c.buf.FrameAt(t, strategy, tolerance)
}

// BufferStatus reports fill/capacity/fill-ratio for backpressure
// observation (spec.md §4.C buffer_status).
func (c *VideoChannel) BufferStatus() media.FillInfo {
	n, cap := c.buf.Len(), c.buf.Capacity()
	ratio := 0.0
	if cap > 0 {
		ratio = float64(n) / float64(cap)
	}
	return media.FillInfo{Fill: n, Capacity: cap, FillRatio: ratio}
}

// Metrics computes a throughput snapshot over the interval since the
// previous call (or since StartDecoding) and starts a new interval.
func (c *VideoChannel) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	dt := now.Sub(c.lastMetricAt).Seconds()
	if dt <= 0 {
		return Metrics{}
	}
	fd := atomic.LoadInt64(&c.framesDecoded)
	by := atomic.LoadInt64(&c.bytesVideo)
	dr := atomic.LoadInt64(&c.framesDropped)

	dF := maxi64(fd-c.lastMFrames, 0)
	dB := maxi64(by-c.lastMBytes, 0)
	dD := maxi64(dr-c.lastMDrops, 0)

	m := Metrics{
		FPS:         float64(dF) / dt,
		BitrateKbps: (float64(dB) * 8.0 / dt) / 1000.0,
	}
	if den := dF + dD; den > 0 {
		m.DropsPct = 100.0 * float64(dD) / float64(den)
	}
	switch {
	case m.FPS >= 24:
		m.Health = 5
	case m.FPS >= 15:
		m.Health = 4
	case m.FPS >= 5:
		m.Health = 3
	case m.FPS > 0:
		m.Health = 2
	default:
		m.Health = 0
	}
	if m.DropsPct > 10 && m.Health > 0 {
		m.Health--
	}

	c.lastMFrames, c.lastMBytes, c.lastMDrops, c.lastMetricAt = fd, by, dr, now
	return m
}

// Seek pauses the worker, clears the buffer, repositions the adapter,
// decodes forward to land on a frame at or after t, and resumes the
// worker if it was running. Safe to call from any state that has an
// adapter (spec.md §4.C).
func (c *VideoChannel) Seek(t float64) error {
	c.mu.Lock()
	adp := c.adp
	wasDecoding := c.state == media.ChannelDecoding
	c.mu.Unlock()
	if adp == nil {
		return fmt.Errorf("channel %s: Seek called with no adapter", c.id)
	}

	if wasDecoding {
		c.pauseWorker()
	}

	c.buf.Clear()
	if err := adp.Seek(t); err != nil {
		return fmt.Errorf("channel %s: Seek: %w", c.id, err)
	}

	// Precise landing is our responsibility: decode forward until a
	// video frame's timestamp >= t, per the CodecAdapter contract.
	for {
		unit, err := adp.DecodeNext()
		if err != nil {
			if err == codec.ErrEndOfStream {
				break
			}
			return fmt.Errorf("channel %s: seek landing: %w", c.id, err)
		}
		if unit == nil || unit.Video == nil {
			continue
		}
		c.buf.Push(toMediaFrame(unit.Video))
		if unit.Video.Timestamp >= t {
			break
		}
	}

	if wasDecoding {
		return c.StartDecoding()
	}
	return nil
}

// TryAsyncSeek spawns a background Seek(t) unless one is already in
// flight on this channel, returning false without starting anything in
// that case. The adapter is owned by a single goroutine except during
// a seek (spec.md §5); without this gate, a caller that fires an async
// seek on every tick while drift persists would race two goroutines
// over the same adapter.
func (c *VideoChannel) TryAsyncSeek(t float64) bool {
	if !c.seeking.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer c.seeking.Store(false)
		_ = c.Seek(t)
	}()
	return true
}

// pauseWorker stops the current worker and waits for it to join.
func (c *VideoChannel) pauseWorker() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.running.Store(false)
	c.mu.Unlock()
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	if done != nil {
		<-done
	}
	c.mu.Lock()
	c.state = media.ChannelReady
	c.mu.Unlock()
}

// Stop clears the running flag, joins the worker, drops the adapter
// and clears the buffer. State returns to Idle.
func (c *VideoChannel) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	adp := c.adp
	c.running.Store(false)
	c.mu.Unlock()

	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	if done != nil {
		<-done
	}

	if adp != nil {
		_ = adp.Close()
	}
	c.buf.Clear()

	c.mu.Lock()
	c.adp = nil
	c.state = media.ChannelIdle
	c.mu.Unlock()
}

// decodeLoop is the per-tick worker described in spec.md §4.C:
// cancellation check, buffer-full backpressure, one decode_next call,
// frame routing by result kind.
func (c *VideoChannel) decodeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if c.buf.Len() >= c.buf.Capacity() {
			time.Sleep(bufferFullSleep)
			continue
		}

		unit, err := c.adp.DecodeNext()
		switch {
		case err == codec.ErrEndOfStream:
			c.mu.Lock()
			c.state = media.ChannelCompleted
			c.mu.Unlock()
			return
		case err != nil:
			c.mu.Lock()
			c.state = media.ChannelErrored
			c.errMsg = err.Error()
			c.mu.Unlock()
			return
		case unit == nil:
			continue // EAGAIN-equivalent
		case unit.Video != nil:
			f := toMediaFrame(unit.Video)
			c.buf.Push(f)
			atomic.AddInt64(&c.framesDecoded, 1)
			atomic.AddInt64(&c.bytesVideo, int64(len(f.PixelData)))
		case unit.Audio != nil:
			c.mu.Lock()
			isMaster, sink := c.IsMaster, c.onAudio
			c.mu.Unlock()
			if isMaster && sink != nil {
				sink(toMediaAudio(unit.Audio))
			}
			// Non-master audio is discarded per spec.md §4.D.
		}
	}
}

func toMediaFrame(u *codec.VideoUnit) media.VideoFrame {
	return media.VideoFrame{
		Timestamp:   u.Timestamp,
		Width:       u.Width,
		Height:      u.Height,
		PixelFormat: media.PixelFormatBGRA8,
		PixelData:   u.PixelData,
		RowStride:   u.RowStride,
		FrameNumber: u.FrameNumber,
		IsKeyframe:  u.IsKeyframe,
	}
}

func toMediaAudio(u *codec.AudioUnit) media.AudioFrame {
	return media.AudioFrame{
		Timestamp:    u.Timestamp,
		SampleRate:   u.SampleRate,
		ChannelCount: u.ChannelCount,
		SampleFormat: media.SampleFormatS16Interleaved,
		SampleCount:  u.SampleCount,
		PCMBytes:     u.PCMBytes,
	}
}

func maxi64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
