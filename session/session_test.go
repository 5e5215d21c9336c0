package session

import (
	"sync"
	"testing"
	"time"

	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/media"
)

type scriptedAdapter struct {
	step, t, dur float64
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

func (a *scriptedAdapter) Seek(t float64) error { a.t = t; return nil }
func (a *scriptedAdapter) Close() error         { return nil }

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

func f64(v float64) *float64 { return &v }

type recordingSink struct {
	mu   sync.Mutex
	from []media.PlaybackState
	to   []media.PlaybackState
}

func (r *recordingSink) OnStateChange(from, to media.PlaybackState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.from = append(r.from, from)
	r.to = append(r.to, to)
}

func TestLoadBuildsTelemetryAndEvents(t *testing.T) {
	s := New()
	gps := []media.GpsPoint{
		{WallclockUnix: 0, Latitude: 1, Longitude: 1, SpeedKmh: f64(60)},
		{WallclockUnix: 0.4, Latitude: 1, Longitude: 1, SpeedKmh: f64(30)},
	}
	if err := s.Load(testFile(), 60, scriptedOpenFunc(0.01, 5.0), gps); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer s.Stop()

	if loc := s.LocationAt(0); loc == nil {
		t.Fatalf("expected a location at t=0")
	}
	evs := s.Events()
	if len(evs) != 1 || evs[0].Kind != media.EventHardBraking {
		t.Fatalf("want 1 HardBraking event, got %+v", evs)
	}
}

func TestPlaybackOpsDelegateToController(t *testing.T) {
	s := New()
	if err := s.Load(testFile(), 120, scriptedOpenFunc(0.005, 5.0), nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if s.CurrentTime() <= 0 {
		t.Fatalf("want current_time to have advanced")
	}
	s.Pause()
	if s.State() != media.PlaybackPaused {
		t.Fatalf("want Paused, got %v", s.State())
	}
	s.Stop()
	if s.State() != media.PlaybackStopped {
		t.Fatalf("want Stopped, got %v", s.State())
	}
}

func TestPositionRatioZeroWithNothingLoaded(t *testing.T) {
	s := New()
	if r := s.PositionRatio(); r != 0 {
		t.Fatalf("want 0 ratio with nothing loaded, got %v", r)
	}
}

func TestEventSinkObservesStateTransitions(t *testing.T) {
	s := New()
	sink := &recordingSink{}
	s.SetEventSink(sink)
	if err := s.Load(testFile(), 60, scriptedOpenFunc(0.01, 5.0), nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.to) == 0 {
		t.Fatalf("expected at least one observed state transition")
	}
}

func TestLocationAtNilWithoutTelemetry(t *testing.T) {
	s := New()
	if err := s.Load(testFile(), 60, scriptedOpenFunc(0.01, 5.0), nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer s.Stop()
	if loc := s.LocationAt(1); loc != nil {
		t.Fatalf("want nil location with no telemetry points, got %v", loc)
	}
}
