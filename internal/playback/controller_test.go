package playback

import (
	"testing"
	"time"

	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/media"
)

// scriptedAdapter emits evenly spaced VideoUnits up to a duration,
// used to exercise the tick driver without real decoding.
type scriptedAdapter struct {
	step float64
	t    float64
	dur  float64
}

func (a *scriptedAdapter) VideoInfo() codec.VideoInfo         { return codec.VideoInfo{Width: 2, Height: 2, FrameRate: 1 / a.step} }
func (a *scriptedAdapter) AudioInfo() (codec.AudioInfo, bool) { return codec.AudioInfo{}, false }

func (a *scriptedAdapter) DecodeNext() (*codec.DecodedUnit, error) {
	if a.t > a.dur {
		return nil, codec.ErrEndOfStream
	}
	u := &codec.VideoUnit{Timestamp: a.t, Width: 2, Height: 2, PixelData: make([]byte, 16), RowStride: 8}
	a.t += a.step
	return &codec.DecodedUnit{Video: u}, nil
}

func (a *scriptedAdapter) Seek(t float64) error {
	a.t = t
	return nil
}

func (a *scriptedAdapter) Close() error { return nil }

func scriptedOpenFunc(step, dur float64) codec.OpenFunc {
	return func(locator string) (codec.Adapter, error) {
		return &scriptedAdapter{step: step, dur: dur}, nil
	}
}

func testFile() media.VideoFile {
	return media.VideoFile{
		Channels: []media.ChannelDescriptor{
			{ID: "front", Position: media.PositionFront, SourceLocator: "front.mp4", Enabled: true},
			{ID: "rear", Position: media.PositionRear, SourceLocator: "rear.mp4", Enabled: true},
		},
		Duration: 5.0,
	}
}

func TestLoadSelectsFrontAsMaster(t *testing.T) {
	c := New()
	if err := c.Load(testFile(), 60, scriptedOpenFunc(0.01, 5.0)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	chans := c.Channels()
	var masterID string
	for _, ch := range chans {
		if ch.IsMaster {
			masterID = ch.ID()
		}
	}
	if masterID != "front" {
		t.Fatalf("want front channel as master, got %q", masterID)
	}
	if c.State() != media.PlaybackPaused {
		t.Fatalf("want Paused after Load, got %v", c.State())
	}
}

func TestLoadFailsWithZeroEnabledChannels(t *testing.T) {
	c := New()
	file := media.VideoFile{Channels: []media.ChannelDescriptor{{ID: "front", Enabled: false}}}
	if err := c.Load(file, 10, scriptedOpenFunc(0.1, 1.0)); err == nil {
		t.Fatalf("expected error loading a file with zero enabled channels")
	}
}

func TestPlayAdvancesCurrentTime(t *testing.T) {
	c := New()
	if err := c.Load(testFile(), 120, scriptedOpenFunc(0.005, 5.0)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	ct := c.CurrentTime()
	c.Stop()
	if ct <= 0 {
		t.Fatalf("want current_time to have advanced, got %v", ct)
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	c := New()
	if err := c.Load(testFile(), 120, scriptedOpenFunc(0.01, 5.0)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Seek(999); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if ct := c.CurrentTime(); ct != c.Duration() {
		t.Fatalf("Seek(999) should clamp to duration %v, got %v", c.Duration(), ct)
	}
	if err := c.Seek(-5); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if ct := c.CurrentTime(); ct != 0 {
		t.Fatalf("Seek(-5) should clamp to 0, got %v", ct)
	}
	c.Stop()
}

func TestPauseStopsTickAdvancement(t *testing.T) {
	c := New()
	if err := c.Load(testFile(), 120, scriptedOpenFunc(0.005, 5.0)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	c.Pause()
	after := c.CurrentTime()
	time.Sleep(60 * time.Millisecond)
	if c.CurrentTime() != after {
		t.Fatalf("current_time advanced while paused: %v -> %v", after, c.CurrentTime())
	}
	c.Stop()
}

func TestStopResetsState(t *testing.T) {
	c := New()
	if err := c.Load(testFile(), 60, scriptedOpenFunc(0.01, 5.0)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	if c.State() != media.PlaybackStopped {
		t.Fatalf("want Stopped, got %v", c.State())
	}
	if c.CurrentTime() != 0 {
		t.Fatalf("want current_time reset to 0, got %v", c.CurrentTime())
	}
	if len(c.Channels()) != 0 {
		t.Fatalf("want no channels after Stop, got %d", len(c.Channels()))
	}
}
