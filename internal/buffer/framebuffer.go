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

// Package buffer implements the bounded, time-sorted frame reservoir
// that sits between one channel's decode worker and the synchronizer.
//
// This generalizes the teacher's frameBuf (QAnotherRTSP's video.go),
// which held only the single latest decoded frame behind an
// RWMutex+atomic sequence counter for a live camera feed with no
// seeking. A file-backed multi-channel player needs Before/After/
// Nearest/Exact lookups across a short window of recent frames, so
// the single slot becomes a capacity-bounded sorted slice guarded by
// the same single-mutex discipline the teacher uses.
package buffer

import (
	"sort"
	"sync"

	"github.com/e1z0/dashcam-core/internal/media"
)

// DefaultCapacity is the smallest buffer size that absorbs a decode
// stall without starving the renderer at 30fps while bounding
// steady-state memory (capacity * width * height * 4 bytes).
const DefaultCapacity = 30

// DefaultRetentionWindow trims frames older than (t - window) after
// any successful lookup, capping memory without disturbing concurrent
// pushers.
const DefaultRetentionWindow = 0.5 // seconds

// FrameBuffer is a thread-safe, capacity-bounded reservoir of
// VideoFrames for one channel, strictly sorted by Timestamp ascending
// with no duplicate timestamps (invariants I1, I2).
type FrameBuffer struct {
	mu              sync.Mutex
	capacity        int
	retentionWindow float64
	frames          []media.VideoFrame
}

// New creates a FrameBuffer with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FrameBuffer{
		capacity:        capacity,
		retentionWindow: DefaultRetentionWindow,
		frames:          make([]media.VideoFrame, 0, capacity),
	}
}

// Push inserts a frame in timestamp order. If the buffer is at
// capacity, the oldest (smallest timestamp) frame is evicted first.
func (b *FrameBuffer) Push(f media.VideoFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) >= b.capacity {
		b.frames = b.frames[1:]
	}

	// Insert keeping ascending order; decoded frames normally arrive
	// in order already (B-frames aside), so this is usually an append.
	idx := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].Timestamp >= f.Timestamp
	})
	if idx < len(b.frames) && b.frames[idx].Timestamp == f.Timestamp {
		b.frames[idx] = f // duplicate timestamp: replace, don't grow (I1)
		return
	}
	b.frames = append(b.frames, media.VideoFrame{})
	copy(b.frames[idx+1:], b.frames[idx:])
	b.frames[idx] = f
}

// FrameAt resolves a query time t against the given strategy. The
// zero value, an empty *media.VideoFrame pointer (nil), signals no
// match.
func (b *FrameBuffer) FrameAt(t float64, strategy media.FrameStrategy, tolerance float64) *media.VideoFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result *media.VideoFrame
	switch strategy {
	case media.StrategyBefore:
		result = b.beforeLocked(t)
	case media.StrategyAfter:
		result = b.afterLocked(t)
	case media.StrategyExact:
		n := b.nearestLocked(t)
		if n != nil && absf(n.Timestamp-t) <= tolerance {
			result = n
		}
	default: // StrategyNearest
		result = b.nearestLocked(t)
	}

	if result != nil {
		b.evictOlderThanLocked(t - b.retentionWindow)
	}
	return result
}

func (b *FrameBuffer) insertionPointLocked(t float64) int {
	return sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].Timestamp >= t
	})
}

// nearestLocked returns the frame whose timestamp is closest to t,
// ties breaking to the earlier frame.
func (b *FrameBuffer) nearestLocked(t float64) *media.VideoFrame {
	if len(b.frames) == 0 {
		return nil
	}
	idx := b.insertionPointLocked(t)
	switch {
	case idx == 0:
		f := b.frames[0]
		return &f
	case idx == len(b.frames):
		f := b.frames[len(b.frames)-1]
		return &f
	default:
		before := b.frames[idx-1]
		after := b.frames[idx]
		if after.Timestamp == t {
			return &after
		}
		db := t - before.Timestamp
		da := after.Timestamp - t
		if db <= da { // tie breaks to the earlier frame
			return &before
		}
		return &after
	}
}

func (b *FrameBuffer) beforeLocked(t float64) *media.VideoFrame {
	// insertionPointLocked finds the first index with Timestamp >= t,
	// so every index before it has a strictly smaller timestamp; the
	// largest such timestamp is the one immediately preceding it.
	idx := b.insertionPointLocked(t)
	if idx == 0 {
		return nil
	}
	f := b.frames[idx-1]
	return &f
}

func (b *FrameBuffer) afterLocked(t float64) *media.VideoFrame {
	for i := 0; i < len(b.frames); i++ {
		if b.frames[i].Timestamp > t {
			f := b.frames[i]
			return &f
		}
	}
	return nil
}

func (b *FrameBuffer) evictOlderThanLocked(cutoff float64) {
	if len(b.frames) == 0 {
		return
	}
	idx := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].Timestamp >= cutoff
	})
	if idx > 0 {
		b.frames = b.frames[idx:]
	}
}

// Len returns the current number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Capacity returns the configured maximum frame count.
func (b *FrameBuffer) Capacity() int {
	return b.capacity
}

// FillRatio returns Len()/Capacity().
func (b *FrameBuffer) FillRatio() float64 {
	b.mu.Lock()
	n := len(b.frames)
	b.mu.Unlock()
	return float64(n) / float64(b.capacity)
}

// Latest returns the frame with the greatest timestamp, or nil if
// empty.
func (b *FrameBuffer) Latest() *media.VideoFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return nil
	}
	f := b.frames[len(b.frames)-1]
	return &f
}

// Clear empties the buffer. Called by VideoChannel.Seek before
// repositioning the decoder.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
