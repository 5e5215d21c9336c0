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

// Package audiosink is a reference host-audio-output collaborator.
// The core's synchronization machinery never plays audio itself
// (spec.md §6 names host audio output as an external collaborator);
// AudioSink is the optional consumer a caller may wire to a
// VideoChannel's master-audio callback. It follows QAnotherRTSP's
// audio.go/video.go pattern verbatim: one shared Oto v2 context, one
// io.Pipe-fed Player per sink, fire-and-forget writes that tolerate
// pipe back-pressure.
package audiosink

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/e1z0/dashcam-core/internal/media"
)

var (
	globalMu   sync.Mutex
	globalCtx  *oto.Context
	globalRate int
	globalCh   int
)

// InitGlobalContext initializes the process-wide Oto context once.
// Subsequent calls with different parameters keep the existing
// context, matching Oto v2's internal mixing model.
func InitGlobalContext(sampleRate, channels int) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalCtx != nil {
		if globalRate != sampleRate || globalCh != channels {
			log.Printf("audiosink: keeping existing context %d Hz/%d ch (requested %d/%d)",
				globalRate, globalCh, sampleRate, channels)
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(sampleRate, channels, oto.FormatSignedInt16LE)
	if err != nil {
		return fmt.Errorf("audiosink: creating context: %w", err)
	}
	go func() {
		<-ready
		log.Printf("audiosink: context ready")
	}()

	globalCtx = ctx
	globalRate, globalCh = sampleRate, channels
	log.Printf("audiosink: initialized context %d Hz/%d ch", sampleRate, channels)
	return nil
}

// AudioSink plays a stream of media.AudioFrame PCM bytes through the
// global Oto context via an io.Pipe-fed Player, lazily created on the
// first frame.
type AudioSink struct {
	mu     sync.Mutex
	player oto.Player
	pipeW  *io.PipeWriter
	closed bool
}

// New returns an AudioSink with no player yet; it is created on the
// first call to Write.
func New() *AudioSink {
	return &AudioSink{}
}

// Write plays one decoded audio frame. Safe to call from the decode
// worker that produces frames for the master channel.
func (s *AudioSink) Write(f media.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.player == nil || s.pipeW == nil {
		globalMu.Lock()
		ctx := globalCtx
		globalMu.Unlock()
		if ctx == nil {
			log.Printf("audiosink: Write called before InitGlobalContext")
			return
		}
		pr, pw := io.Pipe()
		p := ctx.NewPlayer(pr)
		if p == nil {
			_ = pw.Close()
			log.Printf("audiosink: NewPlayer failed")
			return
		}
		p.Play()
		s.player = p
		s.pipeW = pw
	}

	// Fire-and-forget: a slow consumer back-pressures the pipe, which
	// is tolerable for a live audio sink.
	_, _ = s.pipeW.Write(f.PCMBytes)
}

// Close releases the player and pipe writer. Safe to call once.
func (s *AudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.pipeW != nil {
		err = s.pipeW.Close()
	}
	if s.player != nil {
		if cerr := s.player.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
