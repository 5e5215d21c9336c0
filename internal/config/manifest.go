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

// Package config loads and saves the YAML manifest describing a
// VideoFile's channel set, following QAnotherRTSP's config.go: plain
// yaml.v2 structs, and an atomic write-to-tmp-then-rename so a crash
// mid-save never leaves a truncated manifest on disk.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/e1z0/dashcam-core/internal/media"
)

// Manifest is the on-disk shape of a media.VideoFile.
type Manifest struct {
	ID               string          `yaml:"id"`
	Channels         []ChannelEntry  `yaml:"channels"`
	StartWallclock   int64           `yaml:"start_wallclock,omitempty"`
	Duration         float64         `yaml:"duration"`
	TelemetryLocator string          `yaml:"telemetry_locator,omitempty"`
}

// ChannelEntry is the on-disk shape of a media.ChannelDescriptor.
type ChannelEntry struct {
	ID            string  `yaml:"id"`
	Position      string  `yaml:"position"`
	SourceLocator string  `yaml:"source_locator"`
	Width         int     `yaml:"width,omitempty"`
	Height        int     `yaml:"height,omitempty"`
	FrameRate     float64 `yaml:"frame_rate,omitempty"`
	CodecName     string  `yaml:"codec_name,omitempty"`
	Enabled       bool    `yaml:"enabled"`
}

var saveMu sync.Mutex

// Load reads and parses a manifest file into a media.VideoFile.
func Load(path string) (media.VideoFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return media.VideoFile{}, fmt.Errorf("config: reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return media.VideoFile{}, fmt.Errorf("config: parsing manifest: %w", err)
	}
	out := m.toVideoFile()
	ensureChannelIDs(out.Channels)
	return out, nil
}

// ensureChannelIDs assigns a random hex ID to any channel missing one,
// the same gap-filling role as QAnotherRTSP's config.go
// ensureCameraIDs played for CameraConfig.ID.
func ensureChannelIDs(channels []media.ChannelDescriptor) {
	for i := range channels {
		if channels[i].ID == "" {
			channels[i].ID = genID()
		}
	}
}

// genID generates a random 8-byte hex identifier, ported unchanged
// from QAnotherRTSP's helpers.go.
func genID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Save atomically writes a media.VideoFile to path: encode to a
// sibling .tmp file, then rename over the destination.
func Save(path string, file media.VideoFile) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	m := fromVideoFile(file)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("config: creating temp manifest: %w", err)
	}
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(&m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("config: encoding manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("config: closing temp manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("config: renaming manifest into place: %w", err)
	}
	return nil
}

func (m Manifest) toVideoFile() media.VideoFile {
	out := media.VideoFile{
		ID:               m.ID,
		StartWallclock:   m.StartWallclock,
		Duration:         m.Duration,
		TelemetryLocator: m.TelemetryLocator,
	}
	out.Channels = make([]media.ChannelDescriptor, 0, len(m.Channels))
	for _, c := range m.Channels {
		out.Channels = append(out.Channels, media.ChannelDescriptor{
			ID:            c.ID,
			Position:      positionFromString(c.Position),
			SourceLocator: c.SourceLocator,
			Width:         c.Width,
			Height:        c.Height,
			FrameRate:     c.FrameRate,
			CodecName:     c.CodecName,
			Enabled:       c.Enabled,
		})
	}
	return out
}

func fromVideoFile(v media.VideoFile) Manifest {
	m := Manifest{
		ID:               v.ID,
		StartWallclock:   v.StartWallclock,
		Duration:         v.Duration,
		TelemetryLocator: v.TelemetryLocator,
	}
	m.Channels = make([]ChannelEntry, 0, len(v.Channels))
	for _, c := range v.Channels {
		m.Channels = append(m.Channels, ChannelEntry{
			ID:            c.ID,
			Position:      c.Position.String(),
			SourceLocator: c.SourceLocator,
			Width:         c.Width,
			Height:        c.Height,
			FrameRate:     c.FrameRate,
			CodecName:     c.CodecName,
			Enabled:       c.Enabled,
		})
	}
	return m
}

func positionFromString(s string) media.CameraPosition {
	switch s {
	case "Rear":
		return media.PositionRear
	case "Left":
		return media.PositionLeft
	case "Right":
		return media.PositionRight
	case "Interior":
		return media.PositionInterior
	case "Front":
		return media.PositionFront
	default:
		return media.PositionOther
	}
}
