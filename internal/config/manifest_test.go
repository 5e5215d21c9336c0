package config

import (
	"path/filepath"
	"testing"

	"github.com/e1z0/dashcam-core/internal/media"
)

func sampleFile() media.VideoFile {
	return media.VideoFile{
		ID:       "trip-001",
		Duration: 120.5,
		Channels: []media.ChannelDescriptor{
			{ID: "front", Position: media.PositionFront, SourceLocator: "front.mp4", Width: 1920, Height: 1080, FrameRate: 30, CodecName: "h264", Enabled: true},
			{ID: "rear", Position: media.PositionRear, SourceLocator: "rear.mp4", Enabled: true},
		},
		TelemetryLocator: "trip-001.nmea",
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yml")

	want := sampleFile()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.ID != want.ID || got.Duration != want.Duration || got.TelemetryLocator != want.TelemetryLocator {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if len(got.Channels) != len(want.Channels) {
		t.Fatalf("channel count mismatch: got %d want %d", len(got.Channels), len(want.Channels))
	}
	if got.Channels[0].Position != media.PositionFront {
		t.Fatalf("want front position round-tripped, got %v", got.Channels[0].Position)
	}
	if got.Channels[0].CodecName != "h264" {
		t.Fatalf("want codec name round-tripped, got %q", got.Channels[0].CodecName)
	}
	if got.Channels[1].Position != media.PositionRear {
		t.Fatalf("want rear position round-tripped, got %v", got.Channels[1].Position)
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yml")
	if err := Save(path, sampleFile()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path + ".tmp"); err == nil {
		t.Fatalf("expected no leftover .tmp file")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/manifest.yml"); err == nil {
		t.Fatalf("expected an error loading a nonexistent manifest")
	}
}

func TestLoadAssignsMissingChannelIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yml")
	file := media.VideoFile{
		Duration: 10,
		Channels: []media.ChannelDescriptor{
			{Position: media.PositionFront, SourceLocator: "front.mp4", Enabled: true},
		},
	}
	if err := Save(path, file); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Channels[0].ID == "" {
		t.Fatalf("want a generated ID for a channel missing one")
	}
}
