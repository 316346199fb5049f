package talkkiller

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/tunehop/pkg/spectrum"
)

type fakeTap struct {
	frames chan []float64
	closed bool
}

func (t *fakeTap) Frames() <-chan []float64 { return t.frames }
func (t *fakeTap) Close() { t.closed = true }

type fakeSource struct {
	station      string
	playing      bool
	rate         int
	attachErr    error
	notReadyLeft int
	attachCalls  int
	tap          *fakeTap
	switched     []string
}

func (s *fakeSource) CurrentStationID() string { return s.station }
func (s *fakeSource) IsPlaying() bool { return s.playing }
func (s *fakeSource) SampleRate() int { return s.rate }

func (s *fakeSource) SwitchTo(id string) error {
	s.switched = append(s.switched, id)
	return nil
}

// Attach hands out a tap primed with one full analysis window so the first
// sample after attach already has a spectrum to score.
func (s *fakeSource) Attach(buffer int) (Tap, error) {
	s.attachCalls++
	if s.notReadyLeft > 0 {
		s.notReadyLeft--
		return nil, errors.Wrap(ErrAnalysisNotReady, "decoder starting")
	}
	if s.attachErr != nil {
		return nil, s.attachErr
	}
	s.tap = &fakeTap{frames: make(chan []float64, buffer)}
	s.tap.frames <- make([]float64, 16)
	return s.tap, nil
}

type fakeFallbacks struct {
	list []string
}

func (f *fakeFallbacks) FallbackList() []string { return f.list }

func testSettings() Settings {
	return Settings{
		Enabled:         true,
		SpeechSeconds:   2,
		Sensitivity:     0.6,
		CooldownSeconds: 5,
	}
}

func newTestDetector(t *testing.T, src *fakeSource, fb *fakeFallbacks, set Settings) *Detector {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := New(Config{Bins: 8, TapBuffer: 4}, *logger, src, fb, set, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// stepN drives n ticks starting at base, 200ms apart, returning the time of
// the last tick.
func stepN(d *Detector, base time.Time, n int) time.Time {
	now := base
	for i := 0; i < n; i++ {
		now = base.Add(time.Duration(i) * tickInterval)
		d.step(now)
	}
	return now
}

var testBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDetectorSwitchesAfterSustainedSpeech(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b", "c"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	// 2s threshold at 200ms per tick: the tenth tick crosses it.
	stepN(d, testBase, 9)
	if len(src.switched) != 0 {
		t.Fatalf("switched %v before threshold", src.switched)
	}
	d.step(testBase.Add(9 * tickInterval))
	if len(src.switched) != 1 || src.switched[0] != "b" {
		t.Fatalf("switched = %v, want [b]", src.switched)
	}
}

func TestDetectorResetsOnMusicTick(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())

	score := 0.9
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return score }

	now := stepN(d, testBase, 9)
	score = 0.1
	now = now.Add(tickInterval)
	d.step(now)

	// The accumulator went back to zero, so nine more speech ticks still sit
	// below the threshold.
	score = 0.9
	stepN(d, now.Add(tickInterval), 9)
	if len(src.switched) != 0 {
		t.Fatalf("switched = %v, want none after reset", src.switched)
	}
}

func TestDetectorCooldownBlocksSecondSwitch(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	// First switch lands on tick 10.
	last := stepN(d, testBase, 10)
	if len(src.switched) != 1 {
		t.Fatalf("switched = %v, want one switch", src.switched)
	}

	// Re-crossing the threshold 2s later is still inside the 5s cooldown.
	stepN(d, last.Add(tickInterval), 10)
	if len(src.switched) != 1 {
		t.Fatalf("switched = %v, want cooldown to hold", src.switched)
	}

	// The accumulator kept growing through the cooldown, so the first tick at
	// or past the cooldown boundary fires immediately.
	d.step(last.Add(5 * time.Second))
	if len(src.switched) != 2 {
		t.Fatalf("switched = %v, want second switch after cooldown", src.switched)
	}
}

func TestDetectorSelfRotationConsumesTrigger(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	// The trigger fires on tick 10 with nowhere to go: no switch, but the
	// accumulator is consumed and the cooldown armed all the same.
	fireAt := stepN(d, testBase, 10)
	if len(src.switched) != 0 {
		t.Fatalf("switched = %v, want no switch to the current station", src.switched)
	}

	// A real target appears and the accumulator re-crosses the threshold 2s
	// later, but the cooldown from the target-less fire still holds.
	fb.list = []string{"a", "b"}
	stepN(d, fireAt.Add(tickInterval), 10)
	if len(src.switched) != 0 {
		t.Fatalf("switched = %v, want cooldown to hold after target-less fire", src.switched)
	}

	d.step(fireAt.Add(5 * time.Second))
	if len(src.switched) != 1 || src.switched[0] != "b" {
		t.Fatalf("switched = %v, want [b] once the cooldown clears", src.switched)
	}
}

func TestDetectorRetriesWhileStreamStarting(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100, notReadyLeft: 3}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	sub := d.Subscribe()
	defer d.Unsubscribe(sub)

	// Three not-ready ticks, then the attach lands on tick 4 and the next
	// ten speech ticks cross the threshold.
	stepN(d, testBase, 13)
	if src.attachCalls != 4 {
		t.Errorf("attachCalls = %d, want a retry per tick until the decoder is up", src.attachCalls)
	}
	if len(src.switched) != 1 || src.switched[0] != "b" {
		t.Errorf("switched = %v, want [b]", src.switched)
	}
	for len(sub.C) > 0 {
		if ev := <-sub.C; ev.Type == EventBlocked {
			t.Fatalf("station blocked while the decoder was starting: %+v", ev)
		}
	}
}

func TestDetectorEmptyFallbackList(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	stepN(d, testBase, 30)
	if len(src.switched) != 0 {
		t.Fatalf("switched = %v, want none with an empty fallback list", src.switched)
	}
}

func TestDetectorSetupErrorKeepsSentinelAndCause(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100, attachErr: errors.New("no pcm")}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())

	err := d.attach(testBase, "a")
	if !errors.Is(err, ErrAnalysisSetup) {
		t.Errorf("attach error = %v, want ErrAnalysisSetup", err)
	}
	if !strings.Contains(err.Error(), "no pcm") {
		t.Errorf("attach error = %q, want the cause preserved", err)
	}
}

func TestDetectorSetupFailureBlocksStation(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100, attachErr: errors.New("no pcm")}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())

	sub := d.Subscribe()
	defer d.Unsubscribe(sub)

	stepN(d, testBase, 5)
	if src.attachCalls != 1 {
		t.Errorf("attachCalls = %d, want setup attempted once per station", src.attachCalls)
	}

	select {
	case ev := <-sub.C:
		if ev.Type != EventBlocked || !ev.Blocked || ev.Station != "a" {
			t.Errorf("event = %+v, want blocked event for station a", ev)
		}
	default:
		t.Error("no blocked event published")
	}
	select {
	case ev := <-sub.C:
		t.Errorf("unexpected extra event %+v while blocked", ev)
	default:
	}
}

func TestDetectorReattachesOnStationChange(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100, attachErr: errors.New("no pcm")}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	last := stepN(d, testBase, 3)
	if src.attachCalls != 1 {
		t.Fatalf("attachCalls = %d, want 1 while blocked", src.attachCalls)
	}

	src.station = "b"
	src.attachErr = nil
	stepN(d, last.Add(tickInterval), 10)
	if src.attachCalls != 2 {
		t.Errorf("attachCalls = %d, want re-attach for the new station", src.attachCalls)
	}
	if len(src.switched) != 1 {
		t.Errorf("switched = %v, want the loop running again on station b", src.switched)
	}
}

func TestDetectorReadFailureBlocksStation(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	last := stepN(d, testBase, 3)

	sub := d.Subscribe()
	defer d.Unsubscribe(sub)

	close(src.tap.frames)
	stepN(d, last.Add(tickInterval), 10)

	if src.attachCalls != 1 {
		t.Errorf("attachCalls = %d, want no re-attach for the failed station", src.attachCalls)
	}
	if len(src.switched) != 0 {
		t.Errorf("switched = %v, want detection stopped after read failure", src.switched)
	}

	select {
	case ev := <-sub.C:
		if ev.Type != EventBlocked {
			t.Errorf("event type = %v, want blocked", ev.Type)
		}
	default:
		t.Error("no blocked event published")
	}
}

func TestDetectorDisableTearsDown(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.9 }

	last := stepN(d, testBase, 9)
	tap := src.tap

	off := testSettings()
	off.Enabled = false
	if err := d.Settings().Set(off); err != nil {
		t.Fatalf("Set: %v", err)
	}
	last = last.Add(tickInterval)
	d.step(last)
	if !tap.closed {
		t.Error("tap not closed on disable")
	}

	// Re-enabling starts the count over: nine speech ticks are not enough.
	if err := d.Settings().Set(testSettings()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stepN(d, last.Add(tickInterval), 9)
	if len(src.switched) != 0 {
		t.Errorf("switched = %v, want accumulation restarted from zero", src.switched)
	}
	if src.attachCalls != 2 {
		t.Errorf("attachCalls = %d, want fresh attach after re-enable", src.attachCalls)
	}
}

func TestDetectorTickEvents(t *testing.T) {
	src := &fakeSource{station: "a", playing: true, rate: 44100}
	fb := &fakeFallbacks{list: []string{"a", "b"}}
	d := newTestDetector(t, src, fb, testSettings())
	d.scoreFn = func(spectrum.Snapshot, int) float64 { return 0.7 }

	sub := d.Subscribe()
	defer d.Unsubscribe(sub)

	d.step(testBase)

	select {
	case ev := <-sub.C:
		if ev.Type != EventTick {
			t.Errorf("event type = %v, want tick", ev.Type)
		}
		if ev.Score != 0.7 {
			t.Errorf("score = %v, want 0.7", ev.Score)
		}
		if ev.Label != LabelSpeech {
			t.Errorf("label = %q, want %q", ev.Label, LabelSpeech)
		}
		if ev.Station != "a" {
			t.Errorf("station = %q, want a", ev.Station)
		}
	default:
		t.Fatal("no tick event published")
	}
}
