package talkkiller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/tunehop/pkg/spectrum"
)

// tickInterval is the fixed period of the sample->score->classify->trigger
// pipeline. The hysteresis accumulator advances in steps of this size.
const tickInterval = 200 * time.Millisecond

// Detection failures are non-fatal and scoped to the station that caused
// them: the loop stays off for that station until the next station change,
// while playback continues untouched.
var (
	// ErrAnalysisSetup means the PCM tap or analyzer could not be attached.
	ErrAnalysisSetup = errors.New("analysis setup failed")

	// ErrAnalysisRead means the attached tap failed mid-play.
	ErrAnalysisRead = errors.New("analysis read failed")

	// ErrAnalysisNotReady means the source cannot hand out taps yet, e.g.
	// the stream decoder is still starting. Transient: the attach is
	// retried on the next tick instead of blocking the station.
	ErrAnalysisNotReady = errors.New("analysis not ready")
)

// AudioSource is the narrow view of the playback controller the detector
// consumes. SwitchTo is fire-and-forget: the detector does not wait for the
// new stream before resuming its tick loop.
type AudioSource interface {
	CurrentStationID() string
	IsPlaying() bool
	SwitchTo(id string) error
	SampleRate() int
	Attach(buffer int) (Tap, error)
}

// Tap delivers decoded mono PCM frames from the player. Frames is closed
// when the source goes away.
type Tap interface {
	Frames() <-chan []float64
	Close()
}

// FallbackProvider supplies the user-curated ordered fallback list.
type FallbackProvider interface {
	FallbackList() []string
}

var module = "talkkiller"

// Detector runs the talk-killer loop: one goroutine, one ticker, strictly
// serial ticks. All hysteresis and trigger state lives here, never in
// captured closures, so settings changes mid-run cannot observe stale state.
type Detector struct {
	services.Service

	cfg       *Config
	logger    *slog.Logger
	source    AudioSource
	fallbacks FallbackProvider
	settings  *SettingsStore
	feed      *feed
	metrics   *metrics

	sess *session
	hyst hysteresis
	fail failover

	// scoreFn computes the speech score for a snapshot; replaced in tests.
	scoreFn func(spectrum.Snapshot, int) float64
}

// session owns the per-station analysis resources: the PCM tap and the
// analyzer, acquired on station attach and released on detach. A blocked
// session holds no resources but pins the station ID so setup is not
// retried until the station changes.
type session struct {
	stationID string
	tap       Tap
	analyzer  *spectrum.Analyzer
	blocked   bool
}

// New creates the detector. The settings store is seeded with initial,
// typically the persisted settings loaded by the directory module.
func New(cfg Config, logger slog.Logger, source AudioSource, fallbacks FallbackProvider, initial Settings, reg prometheus.Registerer) (*Detector, error) {
	if cfg.Bins == 0 {
		cfg.Bins = defaultBins
	}
	if cfg.TapBuffer == 0 {
		cfg.TapBuffer = defaultTapBuffer
	}

	d := &Detector{
		cfg:       &cfg,
		logger:    logger.With("module", module),
		source:    source,
		fallbacks: fallbacks,
		settings:  NewSettingsStore(initial),
		feed:      newFeed(),
		metrics:   newMetrics(reg),
		scoreFn:   SpeechScore,
	}

	d.Service = services.NewBasicService(nil, d.running, d.stopping)

	return d, nil
}

// Settings returns the live settings store shared with the API.
func (d *Detector) Settings() *SettingsStore { return d.settings }

// Subscribe registers an event subscriber.
func (d *Detector) Subscribe() *Subscription { return d.feed.subscribe() }

// Unsubscribe removes an event subscriber.
func (d *Detector) Unsubscribe(sub *Subscription) { d.feed.unsubscribe(sub) }

func (d *Detector) running(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			// A missed tick is dropped by the ticker, never queued, so
			// ticks cannot overlap or bunch up after a slow one.
			d.step(now)
		}
	}
}

func (d *Detector) stopping(_ error) error {
	d.teardown()
	return nil
}

// step executes one tick. Classification strictly precedes accumulation,
// which strictly precedes the trigger check.
func (d *Detector) step(now time.Time) {
	set := d.settings.Get()
	station := d.source.CurrentStationID()
	active := set.Enabled && d.source.IsPlaying() && station != ""

	if d.sess != nil && (!active || d.sess.stationID != station) {
		d.teardown()
	}
	if !active {
		return
	}

	if d.sess == nil {
		if err := d.attach(now, station); err != nil {
			// A source that is still warming up is retried next tick;
			// anything else has blocked the station.
			if !errors.Is(err, ErrAnalysisNotReady) {
				d.logger.Warn("talk killer unavailable for station", "station", station, "err", err)
			}
			return
		}
	}
	if d.sess.blocked {
		return
	}

	score, err := d.sample()
	if err != nil {
		d.block(now, station)
		d.logger.Warn("talk killer disabled for station", "station", station, "err", err)
		return
	}

	speech := score >= set.Sensitivity
	accumulated := d.hyst.observe(speech, tickInterval)

	d.metrics.ticks.Inc()
	d.metrics.score.Set(score)
	d.metrics.accumulated.Set(accumulated.Seconds())
	d.feed.publish(Event{
		Type:    EventTick,
		Score:   score,
		Label:   Label(score, set.Sensitivity),
		Station: station,
		At:      now,
	})

	threshold := time.Duration(set.SpeechSeconds * float64(time.Second))
	cooldown := time.Duration(set.CooldownSeconds * float64(time.Second))
	if accumulated < threshold || !d.fail.cleared(now, cooldown) {
		return
	}

	// The trigger fires: consume the accumulator and arm the cooldown before
	// rotating, so a fire with nowhere to go still restarts the count.
	d.hyst.reset()
	d.fail.fired(now)

	next := NextFallback(d.fallbacks.FallbackList(), station)
	if next == "" || next == station {
		d.logger.Debug("no fallback target, staying", "station", station)
		return
	}

	d.metrics.switches.Inc()
	d.feed.publish(Event{
		Type:    EventSwitch,
		Score:   score,
		Station: station,
		Target:  next,
		At:      now,
	})
	d.logger.Info("sustained speech, switching station", "from", station, "to", next, "score", score)

	if err := d.source.SwitchTo(next); err != nil {
		d.logger.Error("station switch failed", "to", next, "err", err)
	}
}

// attach acquires the analysis session for a station. A setup failure is
// durable for the station's lifetime in this session: the station is marked
// blocked and setup is not retried until the station changes. A source that
// is not ready yet is not a failure; the caller tries again next tick.
func (d *Detector) attach(now time.Time, station string) error {
	analyzer, err := spectrum.NewAnalyzer(d.source.SampleRate(), d.cfg.Bins)
	if err != nil {
		d.block(now, station)
		return fmt.Errorf("%w: %v", ErrAnalysisSetup, err)
	}

	tap, err := d.source.Attach(d.cfg.TapBuffer)
	if err != nil {
		if errors.Is(err, ErrAnalysisNotReady) {
			return err
		}
		d.block(now, station)
		return fmt.Errorf("%w: %v", ErrAnalysisSetup, err)
	}

	d.sess = &session{stationID: station, tap: tap, analyzer: analyzer}
	return nil
}

// block marks the current station as permanently blocked for analysis and
// emits the one-shot blocked event. Playback is not touched.
func (d *Detector) block(now time.Time, station string) {
	if d.sess != nil && d.sess.tap != nil {
		d.sess.tap.Close()
	}
	d.sess = &session{stationID: station, blocked: true}
	d.hyst.reset()
	d.metrics.blocked.Inc()
	d.feed.publish(Event{
		Type:    EventBlocked,
		Blocked: true,
		Station: station,
		At:      now,
	})
}

// sample drains pending PCM frames into the analyzer and scores the current
// spectrum snapshot. Until a full analysis window has arrived the score is 0
// (no signal is treated as non-speech).
func (d *Detector) sample() (float64, error) {
	for {
		select {
		case frame, ok := <-d.sess.tap.Frames():
			if !ok {
				return 0, fmt.Errorf("%w: %v", ErrAnalysisRead, io.ErrClosedPipe)
			}
			d.sess.analyzer.Push(frame)
			continue
		default:
		}
		break
	}

	snap, err := d.sess.analyzer.Snapshot()
	if err != nil {
		if errors.Is(err, spectrum.ErrInsufficientData) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrAnalysisRead, err)
	}

	return d.scoreFn(snap, d.sess.analyzer.SampleRate()), nil
}

// teardown releases the session and resets accumulation. The cooldown clock
// is not reset: it runs from the last fired trigger regardless of loop
// restarts.
func (d *Detector) teardown() {
	if d.sess != nil && d.sess.tap != nil {
		d.sess.tap.Close()
	}
	d.sess = nil
	d.hyst.reset()
}
