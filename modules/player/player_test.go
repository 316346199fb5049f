package player

import (
	"io"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/tunehop/modules/directory"
	"github.com/zachfi/tunehop/modules/talkkiller"
)

type fakeResolver struct {
	stations map[string]directory.Station
}

func (r *fakeResolver) Lookup(id string) (directory.Station, bool) {
	st, ok := r.stations[id]
	return st, ok
}

func newTestPlayer(t *testing.T) *Player {
	t.Helper()

	resolver := &fakeResolver{stations: map[string]directory.Station{
		"a": {ID: "a", Name: "Amber FM", StreamURL: "http://a.example.com/live"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := New(Config{}, *logger, resolver, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSwitchToUnknownStation(t *testing.T) {
	p := newTestPlayer(t)

	if err := p.SwitchTo("nope"); err == nil {
		t.Error("SwitchTo with an unknown ID should fail")
	}
	if err := p.SwitchTo("a"); err != nil {
		t.Errorf("SwitchTo(a) = %v, want admission", err)
	}

	// The switch is asynchronous; admission queues the command.
	select {
	case cmd := <-p.cmds:
		if cmd.station == nil || cmd.station.ID != "a" {
			t.Errorf("queued command = %+v, want switch to a", cmd)
		}
	default:
		t.Error("no command queued")
	}
}

func TestPlayRequiresTunedStation(t *testing.T) {
	p := newTestPlayer(t)

	if err := p.Play(); err == nil {
		t.Error("Play with no station tuned should fail")
	}

	p.setCurrent(directory.Station{ID: "a", Name: "Amber FM"})
	if err := p.Play(); err != nil {
		t.Errorf("Play = %v, want admission", err)
	}
}

func TestAttachRequiresDecodableStream(t *testing.T) {
	p := newTestPlayer(t)

	if _, err := p.Attach(4); !errors.Is(err, talkkiller.ErrAnalysisNotReady) {
		t.Errorf("Attach with nothing playing = %v, want not-ready", err)
	}

	p.setPlaying(true)
	if _, err := p.Attach(4); !errors.Is(err, talkkiller.ErrAnalysisNotReady) {
		t.Errorf("Attach while the decoder is starting = %v, want not-ready", err)
	}

	p.setAnalysis(analysisFailed, 0)
	if _, err := p.Attach(4); err == nil || errors.Is(err, talkkiller.ErrAnalysisNotReady) {
		t.Errorf("Attach on an undecodable stream = %v, want a durable error", err)
	}

	p.setAnalysis(analysisReady, 48000)
	tap, err := p.Attach(4)
	if err != nil {
		t.Fatalf("Attach = %v, want tap", err)
	}
	defer tap.Close()

	if got := p.SampleRate(); got != 48000 {
		t.Errorf("SampleRate = %d, want the decoded rate", got)
	}

	p.frames.publish([]float64{0.5})
	if frame := <-tap.Frames(); len(frame) != 1 || frame[0] != 0.5 {
		t.Errorf("frame = %v, want published PCM", frame)
	}
}

func TestNowPlaying(t *testing.T) {
	p := newTestPlayer(t)

	p.setCurrent(directory.Station{ID: "a", Name: "Amber FM"})
	p.setPlaying(true)
	p.setTitle("Artist - Track")

	got := p.NowPlaying()
	want := NowPlaying{StationID: "a", StationName: "Amber FM", Title: "Artist - Track", Playing: true}
	if got != want {
		t.Errorf("NowPlaying = %+v, want %+v", got, want)
	}

	// Tuning elsewhere clears the stale title.
	p.setCurrent(directory.Station{ID: "b", Name: "Blue Radio"})
	if got := p.NowPlaying().Title; got != "" {
		t.Errorf("Title = %q, want cleared on switch", got)
	}
}

func TestRelayTap(t *testing.T) {
	p := newTestPlayer(t)

	tap := p.Relay()
	defer tap.Close()

	p.relay.publish([]byte("mp3 bytes"))
	if got := <-tap.Frames(); string(got) != "mp3 bytes" {
		t.Errorf("chunk = %q, want relayed bytes", got)
	}
}
