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
package codec

import (
	"errors"
	"fmt"
	"io"

	astiav "github.com/asticode/go-astiav"
)

// ffmpegAdapter wraps one astiav decode session for a single file
// locator. The open/scale/seek shape is lifted directly from
// QAnotherRTSP's video.go (openAndDecode, bgraScaler); decode_next()
// replaces that file's "read until EOF" loop with a one-packet-at-a-
// time state machine so a VideoChannel worker can interleave it with
// buffer-full backpressure checks.
type ffmpegAdapter struct {
	fc   *astiav.FormatContext
	pkt  *astiav.Packet
	vf   *astiav.Frame
	af   *astiav.Frame
	vIdx int
	aIdx int

	vctx *astiav.CodecContext
	actx *astiav.CodecContext

	scaler bgraScaler

	videoInfo VideoInfo
	audioInfo AudioInfo
	hasAudio  bool

	frameCounter int64
}

// OpenFFmpeg opens locator (a path or URL FFmpeg's demuxer can read)
// for software decode, forcing BGRA output for video.
func OpenFFmpeg(locator string) (Adapter, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: AllocFormatContext", ErrCannotOpen)
	}

	rd := astiav.NewDictionary()
	defer rd.Free()
	_ = rd.Set("probesize", "5000000", 0)

	if err := fc.OpenInput(locator, nil, rd); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: FindStreamInfo: %v", ErrCorruptedHeader, err)
	}

	vIdx, aIdx := -1, -1
	for i, s := range fc.Streams() {
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if vIdx < 0 {
				vIdx = i
			}
		case astiav.MediaTypeAudio:
			if aIdx < 0 {
				aIdx = i
			}
		}
	}
	if vIdx < 0 {
		fc.Free()
		return nil, ErrNoVideoStream
	}

	vst := fc.Streams()[vIdx]
	vpar := vst.CodecParameters()
	vdec := astiav.FindDecoder(vpar.CodecID())
	if vdec == nil {
		fc.Free()
		return nil, fmt.Errorf("%w: no decoder for %s", ErrUnsupportedCodec, vpar.CodecID().String())
	}
	vctx := astiav.AllocCodecContext(vdec)
	if vctx == nil {
		fc.Free()
		return nil, fmt.Errorf("%w: AllocCodecContext(video)", ErrCannotOpen)
	}
	if err := vpar.ToCodecContext(vctx); err != nil {
		vctx.Free()
		fc.Free()
		return nil, fmt.Errorf("%w: ToCodecContext(video): %v", ErrCorruptedHeader, err)
	}
	vopts := astiav.NewDictionary()
	defer vopts.Free()
	_ = vopts.Set("hwaccel", "none", 0)
	if err := vctx.Open(vdec, vopts); err != nil {
		vctx.Free()
		fc.Free()
		return nil, fmt.Errorf("%w: open video decoder: %v", ErrUnsupportedCodec, err)
	}

	tb := vst.TimeBase()
	rate := vst.AvgFrameRate()
	if rate.Num() <= 0 || rate.Den() <= 0 {
		rate = vctx.Framerate()
	}
	var fps float64
	if rate.Den() > 0 {
		fps = float64(rate.Num()) / float64(rate.Den())
	}

	a := &ffmpegAdapter{
		fc:   fc,
		pkt:  astiav.AllocPacket(),
		vf:   astiav.AllocFrame(),
		vIdx: vIdx,
		aIdx: aIdx,
		vctx: vctx,
		videoInfo: VideoInfo{
			Width:       vctx.Width(),
			Height:      vctx.Height(),
			FrameRate:   fps,
			CodecName:   vdec.Name(),
			BitRate:     vctx.BitRate(),
			TimeBaseNum: tb.Num(),
			TimeBaseDen: tb.Den(),
		},
	}

	if aIdx >= 0 {
		ast := fc.Streams()[aIdx]
		apar := ast.CodecParameters()
		if adec := astiav.FindDecoder(apar.CodecID()); adec != nil {
			actx := astiav.AllocCodecContext(adec)
			if actx != nil && apar.ToCodecContext(actx) == nil && actx.Open(adec, nil) == nil {
				atb := ast.TimeBase()
				a.actx = actx
				a.af = astiav.AllocFrame()
				a.hasAudio = true
				a.audioInfo = AudioInfo{
					SampleRate:  actx.SampleRate(),
					Channels:    actx.ChannelLayout().Channels(),
					CodecName:   adec.Name(),
					TimeBaseNum: atb.Num(),
					TimeBaseDen: atb.Den(),
				}
			} else if actx != nil {
				actx.Free()
			}
		}
	}

	return a, nil
}

func (a *ffmpegAdapter) VideoInfo() VideoInfo { return a.videoInfo }

func (a *ffmpegAdapter) AudioInfo() (AudioInfo, bool) { return a.audioInfo, a.hasAudio }

// DecodeNext reads and processes exactly one demuxed packet, or drains
// one already-decoded frame if one is pending. Mirrors video.go's
// SendPacket/ReceiveFrame pairing, one step per call instead of an
// inner "receive everything" loop, so EAGAIN surfaces to the caller
// as (nil, nil) per the §4.A contract.
func (a *ffmpegAdapter) DecodeNext() (*DecodedUnit, error) {
	// Hand back a frame the decoders already hold before feeding them
	// another packet.
	if unit, err := a.receiveVideo(); unit != nil || err != nil {
		return unit, err
	}
	if a.hasAudio {
		if unit, err := a.receiveAudio(); unit != nil || err != nil {
			return unit, err
		}
	}
	if err := a.fc.ReadFrame(a.pkt); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("ReadFrame: %w", err)
	}
	defer a.pkt.Unref()

	switch a.pkt.StreamIndex() {
	case a.vIdx:
		if err := a.vctx.SendPacket(a.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return nil, fmt.Errorf("video SendPacket: %w", err)
		}
		if unit, err := a.receiveVideo(); unit != nil || err != nil {
			return unit, err
		}
		return nil, nil // EAGAIN-equivalent: need another packet
	case a.aIdx:
		if !a.hasAudio {
			return nil, nil
		}
		if err := a.actx.SendPacket(a.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return nil, fmt.Errorf("audio SendPacket: %w", err)
		}
		if unit, err := a.receiveAudio(); unit != nil || err != nil {
			return unit, err
		}
		return nil, nil
	default:
		return nil, nil // uninteresting stream (subtitles, data, ...)
	}
}

func (a *ffmpegAdapter) receiveVideo() (*DecodedUnit, error) {
	err := a.vctx.ReceiveFrame(a.vf)
	if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("video ReceiveFrame: %w", err)
	}
	defer a.vf.Unref()

	w, h, stride, pix, err := a.scaler.toBGRA(a.vf)
	if err != nil {
		return nil, fmt.Errorf("color convert: %w", err)
	}

	tb := a.videoInfo
	var ts float64
	if tb.TimeBaseDen > 0 {
		ts = float64(a.vf.Pts()) * float64(tb.TimeBaseNum) / float64(tb.TimeBaseDen)
	}
	a.frameCounter++

	return &DecodedUnit{Video: &VideoUnit{
		Timestamp:   ts,
		Width:       w,
		Height:      h,
		PixelData:   pix,
		RowStride:   stride,
		FrameNumber: a.frameCounter,
		IsKeyframe:  a.vf.PictureType() == astiav.PictureTypeI,
	}}, nil
}

func (a *ffmpegAdapter) receiveAudio() (*DecodedUnit, error) {
	err := a.actx.ReceiveFrame(a.af)
	if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audio ReceiveFrame: %w", err)
	}
	defer a.af.Unref()

	pcm, err := a.af.Data().Bytes(0)
	if err != nil {
		return nil, fmt.Errorf("audio Data: %w", err)
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)

	ai := a.audioInfo
	var ts float64
	if ai.TimeBaseDen > 0 {
		ts = float64(a.af.Pts()) * float64(ai.TimeBaseNum) / float64(ai.TimeBaseDen)
	}

	return &DecodedUnit{Audio: &AudioUnit{
		Timestamp:    ts,
		SampleRate:   a.af.SampleRate(),
		ChannelCount: a.af.ChannelLayout().Channels(),
		SampleCount:  a.af.NbSamples(),
		PCMBytes:     out,
	}}, nil
}

// Seek moves to the keyframe at or before t and flushes decoder
// buffers; landing precisely on t is the VideoChannel's job (it
// decodes forward until a frame's timestamp >= t).
func (a *ffmpegAdapter) Seek(t float64) error {
	tb := a.videoInfo
	if tb.TimeBaseDen == 0 {
		return fmt.Errorf("seek: unknown time base")
	}
	ts := int64(t * float64(tb.TimeBaseDen) / float64(tb.TimeBaseNum))
	flags := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if err := a.fc.SeekFrame(a.vIdx, ts, flags); err != nil {
		return fmt.Errorf("SeekFrame: %w", err)
	}
	a.vctx.FlushBuffers()
	if a.actx != nil {
		a.actx.FlushBuffers()
	}
	return nil
}

func (a *ffmpegAdapter) Close() error {
	a.scaler.close()
	if a.af != nil {
		a.af.Free()
	}
	if a.actx != nil {
		a.actx.Free()
	}
	a.vf.Free()
	a.vctx.Free()
	a.pkt.Free()
	a.fc.Free()
	return nil
}

// bgraScaler converts decoded frames to tightly packed BGRA via
// libswscale, verbatim in spirit from video.go's bgraScaler — same
// lazy re-creation on source-format change, same AllocBuffer dance.
type bgraScaler struct {
	ssc        *astiav.SoftwareScaleContext
	dst        *astiav.Frame
	srcW, srcH int
	srcPix     astiav.PixelFormat
}

func (s *bgraScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

func (s *bgraScaler) ensure(src *astiav.Frame) error {
	sw, sh, sp := src.Width(), src.Height(), src.PixelFormat()
	if s.ssc != nil && sw == s.srcW && sh == s.srcH && sp == s.srcPix {
		return nil
	}
	s.close()

	flags := astiav.NewSoftwareScaleContextFlags()
	ssc, err := astiav.CreateSoftwareScaleContext(sw, sh, sp, sw, sh, astiav.PixelFormatBgra, flags)
	if err != nil {
		return fmt.Errorf("CreateSoftwareScaleContext: %w", err)
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(sw)
	dst.SetHeight(sh)
	dst.SetPixelFormat(astiav.PixelFormatBgra)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("dst.AllocBuffer: %w", err)
	}
	s.ssc, s.dst, s.srcW, s.srcH, s.srcPix = ssc, dst, sw, sh, sp
	return nil
}

func (s *bgraScaler) toBGRA(src *astiav.Frame) (w, h, stride int, out []byte, err error) {
	if err := s.ensure(src); err != nil {
		return 0, 0, 0, nil, err
	}
	if err := s.ssc.ScaleFrame(src, s.dst); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("ScaleFrame: %w", err)
	}
	n, err := s.dst.ImageBufferSize(1)
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("ImageBufferSize: %w", err)
	}
	out = make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(out, 1); err != nil {
		return 0, 0, 0, nil, fmt.Errorf("ImageCopyToBuffer: %w", err)
	}
	ls := s.dst.Linesize()
	stride = ls[0]
	return s.srcW, s.srcH, stride, out, nil
}
