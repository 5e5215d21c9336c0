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

// Package codec defines the pluggable decoder contract (component A)
// and its FFmpeg-backed implementation, grounded in QAnotherRTSP's
// video.go (the astiav open/decode/scale pipeline) generalized from a
// single "decode forever, display the latest frame" RTSP loop into an
// incremental decode_next() state machine a VideoChannel worker drives
// one step at a time.
package codec

import "errors"

// Sentinel errors matching spec.md §4.A's Open() failure taxonomy.
var (
	ErrCannotOpen       = errors.New("codec: cannot open source")
	ErrNoVideoStream    = errors.New("codec: no video stream")
	ErrUnsupportedCodec = errors.New("codec: unsupported codec")
	ErrCorruptedHeader  = errors.New("codec: corrupted header")
	// ErrEndOfStream is a normal terminal condition, not a failure.
	ErrEndOfStream = errors.New("codec: end of stream")
)

// VideoInfo is the static description of the video stream, available
// once Open succeeds.
type VideoInfo struct {
	Width       int
	Height      int
	FrameRate   float64
	CodecName   string
	BitRate     int64
	TimeBaseNum int
	TimeBaseDen int
}

// AudioInfo is the static description of an optional audio stream.
type AudioInfo struct {
	SampleRate int
	Channels   int
	CodecName  string
	TimeBaseNum int
	TimeBaseDen int
}

// DecodedUnit is exactly one of Video or Audio; the other is nil.
type DecodedUnit struct {
	Video *VideoUnit
	Audio *AudioUnit
}

// VideoUnit is a decoded, color-converted video frame ready for a
// FrameBuffer. Fields mirror media.VideoFrame; the codec package keeps
// its own struct so it has no dependency on internal/media, letting
// callers (internal/channel) do the final adaptation.
type VideoUnit struct {
	Timestamp   float64
	Width       int
	Height      int
	PixelData   []byte
	RowStride   int
	FrameNumber int64
	IsKeyframe  bool
}

// AudioUnit is a decoded PCM unit.
type AudioUnit struct {
	Timestamp    float64
	SampleRate   int
	ChannelCount int
	SampleCount  int
	PCMBytes     []byte
}

// Adapter wraps a native decoder. Implementations are owned
// exclusively by one goroutine except during Seek (spec.md §5).
type Adapter interface {
	// VideoInfo returns the video stream's static description. Valid
	// only after a successful Open.
	VideoInfo() VideoInfo

	// AudioInfo returns the audio stream's static description, if the
	// source carries one.
	AudioInfo() (AudioInfo, bool)

	// DecodeNext advances the decoder by one step.
	//
	//   - (unit, nil): a frame is ready.
	//   - (nil, nil): EAGAIN-equivalent — the decoder wants another
	//     call before it has a frame to hand back. Not an error.
	//   - (nil, ErrEndOfStream): the stream is exhausted. Normal
	//     terminal state.
	//   - (nil, other error): fatal; the caller should transition the
	//     owning channel to Errored.
	DecodeNext() (*DecodedUnit, error)

	// Seek moves the read position to the last keyframe at or before
	// t and flushes decoder buffers. The caller (VideoChannel) is
	// responsible for precise landing: decode forward until a frame's
	// timestamp >= t.
	Seek(t float64) error

	// Close releases all native resources. Safe to call once.
	Close() error
}

// OpenFunc constructs an Adapter for a source locator. Production code
// uses OpenFFmpeg; tests substitute a fake.
type OpenFunc func(locator string) (Adapter, error)
