package player

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep/mp3"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/tunehop/modules/directory"
	"github.com/zachfi/tunehop/modules/talkkiller"
	"github.com/zachfi/tunehop/pkg/shoutcast"
)

var module = "player"

// fallbackSampleRate is assumed until the first decoded frame reports the
// real rate.
const fallbackSampleRate = 44100

// analysisState tracks whether the decoder can supply PCM for analysis.
// Pending is the window between stream start and the decoder reading the
// first MP3 header; taps are refused but retryable during it.
type analysisState int

const (
	analysisPending analysisState = iota
	analysisReady
	analysisFailed
)

// StationResolver maps station IDs to playable stations.
type StationResolver interface {
	Lookup(id string) (directory.Station, bool)
}

// NowPlaying describes the live stream for the metadata relay.
type NowPlaying struct {
	StationID   string `json:"stationId"`
	StationName string `json:"stationName"`
	Title       string `json:"title"`
	Playing     bool   `json:"playing"`
}

type command struct {
	station *directory.Station // switch to this station
	play    bool               // resume playback of the current station
	pause   bool               // stop playback
}

// Player owns the active stream. It relays the raw ICY audio bytes to HTTP
// listeners and decodes them to PCM for analysis taps. Station switches are
// asynchronous; callers never wait for the new stream to start.
type Player struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	station StationResolver
	metrics *metrics

	frames *fanout[[]float64]
	relay  *fanout[[]byte]

	cmds chan command

	mu         sync.RWMutex
	current    directory.Station
	playing    bool
	title      string
	sampleRate int
	analysis   analysisState
}

// New creates and returns a new Player.
func New(cfg Config, logger slog.Logger, stations StationResolver, reg prometheus.Registerer) (*Player, error) {
	if cfg.FrameSize == 0 {
		cfg.FrameSize = defaultFrameSize
	}
	if cfg.RelayBuffer == 0 {
		cfg.RelayBuffer = defaultRelayBuffer
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = defaultReconnectInitial
	}
	if cfg.ReconnectBackoffMax == 0 {
		cfg.ReconnectBackoffMax = defaultReconnectMax
	}

	p := &Player{
		cfg:        &cfg,
		logger:     logger.With("module", module),
		station:    stations,
		metrics:    newMetrics(reg),
		frames:     newFanout[[]float64](),
		relay:      newFanout[[]byte](),
		cmds:       make(chan command, 8),
		sampleRate: fallbackSampleRate,
	}

	p.Service = services.NewBasicService(nil, p.running, p.stopping)

	return p, nil
}

func (p *Player) running(ctx context.Context) error {
	var cancel context.CancelFunc
	var done chan struct{}

	stop := func() {
		if cancel != nil {
			cancel()
			<-done
			cancel = nil
		}
	}
	start := func(st directory.Station) {
		var pctx context.Context
		pctx, cancel = context.WithCancel(ctx)
		done = make(chan struct{})
		go func() {
			defer close(done)
			p.playLoop(pctx, st)
		}()
	}

	if p.cfg.Autoplay && p.cfg.DefaultStation != "" {
		if st, ok := p.station.Lookup(p.cfg.DefaultStation); ok {
			p.setCurrent(st)
			start(st)
		} else {
			p.logger.Warn("default station not found", "station", p.cfg.DefaultStation)
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case cmd := <-p.cmds:
			switch {
			case cmd.station != nil:
				stop()
				p.setCurrent(*cmd.station)
				p.metrics.switches.Inc()
				start(*cmd.station)
			case cmd.play:
				if st, ok := p.CurrentStation(); ok && !p.IsPlaying() {
					stop()
					start(st)
				}
			case cmd.pause:
				stop()
			}
		}
	}
}

func (p *Player) stopping(_ error) error {
	p.frames.closeAll()
	p.relay.closeAll()
	return nil
}

// CurrentStationID returns the ID of the tuned station, or "".
func (p *Player) CurrentStationID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.ID
}

// CurrentStation returns the tuned station, if any.
func (p *Player) CurrentStation() (directory.Station, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current.ID != ""
}

// IsPlaying reports whether a stream is currently being read.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// SampleRate returns the PCM rate of the decoded stream.
func (p *Player) SampleRate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sampleRate
}

// NowPlaying returns the current stream metadata.
func (p *Player) NowPlaying() NowPlaying {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NowPlaying{
		StationID:   p.current.ID,
		StationName: p.current.Name,
		Title:       p.title,
		Playing:     p.playing,
	}
}

// SwitchTo tunes to another station asynchronously. The error covers only
// request admission; stream setup failures surface through logs and the
// playing state.
func (p *Player) SwitchTo(id string) error {
	st, ok := p.station.Lookup(id)
	if !ok {
		return errors.Errorf("unknown station %q", id)
	}

	select {
	case p.cmds <- command{station: &st}:
		return nil
	default:
		return errors.New("player busy, switch dropped")
	}
}

// Play resumes playback of the current station.
func (p *Player) Play() error {
	if _, ok := p.CurrentStation(); !ok {
		return errors.New("no station tuned")
	}
	select {
	case p.cmds <- command{play: true}:
		return nil
	default:
		return errors.New("player busy")
	}
}

// Pause stops playback. The tuned station is kept.
func (p *Player) Pause() error {
	select {
	case p.cmds <- command{pause: true}:
		return nil
	default:
		return errors.New("player busy")
	}
}

// Attach subscribes an analysis tap to the decoded PCM frames. A stream
// that is not playing yet, or whose decoder has not reached the first MP3
// header, refuses taps with ErrAnalysisNotReady so the caller retries; only
// a stream whose audio actually failed to decode is a durable failure.
// Playback itself is unaffected either way.
func (p *Player) Attach(buffer int) (talkkiller.Tap, error) {
	p.mu.RLock()
	playing, state := p.playing, p.analysis
	p.mu.RUnlock()

	if !playing {
		return nil, errors.Wrap(talkkiller.ErrAnalysisNotReady, "no active stream")
	}
	switch state {
	case analysisPending:
		return nil, errors.Wrap(talkkiller.ErrAnalysisNotReady, "stream decoder starting")
	case analysisFailed:
		return nil, errors.New("stream audio cannot be decoded for analysis")
	}

	return p.frames.subscribe(buffer), nil
}

// ByteTap delivers raw audio chunks to a relay listener.
type ByteTap interface {
	Frames() <-chan []byte
	Close()
}

// Relay subscribes an HTTP listener to the raw audio bytes.
func (p *Player) Relay() ByteTap {
	return p.relay.subscribe(p.cfg.RelayBuffer)
}

func (p *Player) setCurrent(st directory.Station) {
	p.mu.Lock()
	p.current = st
	p.title = ""
	p.mu.Unlock()
}

func (p *Player) setPlaying(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()
}

func (p *Player) setTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}

func (p *Player) setAnalysis(state analysisState, sampleRate int) {
	p.mu.Lock()
	p.analysis = state
	if sampleRate > 0 {
		p.sampleRate = sampleRate
	}
	p.mu.Unlock()
}

// playLoop keeps one station playing, reconnecting with exponential backoff
// after upstream disconnects, until the context is cancelled.
func (p *Player) playLoop(ctx context.Context, st directory.Station) {
	backoff := p.cfg.ReconnectBackoff

	for {
		start := time.Now()
		err := p.playOnce(ctx, st)
		if ctx.Err() != nil {
			return
		}
		// A stream that held for a while earns a fresh backoff.
		if time.Since(start) > time.Minute {
			backoff = p.cfg.ReconnectBackoff
		}

		p.logger.Warn("stream ended, reconnecting", "station", st.ID, "backoff", backoff, "err", err)
		p.metrics.reconnects.Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > p.cfg.ReconnectBackoffMax {
			backoff = p.cfg.ReconnectBackoffMax
		}
	}
}

// playOnce opens the stream and pumps it until it ends or the context is
// cancelled. Raw bytes go to relay listeners; a decoder goroutine turns the
// same bytes into PCM frames for analysis taps.
func (p *Player) playOnce(ctx context.Context, st directory.Station) error {
	stream, err := shoutcast.Open(st.StreamURL, p.logger)
	if err != nil {
		return errors.Wrap(err, "opening stream")
	}

	stream.MetadataCallbackFunc = func(m *shoutcast.Metadata) {
		p.logger.Info("now playing", "station", st.ID, "title", m.StreamTitle)
		p.setTitle(m.StreamTitle)
	}

	// Unblock stream.Read when the context is cancelled.
	watch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-watch:
			stream.Close()
		}
	}()
	defer close(watch)

	p.setAnalysis(analysisPending, 0)

	pr, pw := io.Pipe()
	decDone := make(chan struct{})
	go func() {
		defer close(decDone)
		p.decodeLoop(pr)
	}()

	p.logger.Info("playing", "station", st.ID, "name", stream.Name, "bitrate", stream.Bitrate)
	p.setPlaying(true)
	defer p.setPlaying(false)

	buf := make([]byte, 4096)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.relay.publish(chunk)
			p.metrics.relayBytes.Add(float64(n))
			// The decoder drains the pipe even when decoding failed, so
			// this only errors once the decoder has exited entirely.
			if _, werr := pw.Write(chunk); werr != nil {
				pw.CloseWithError(werr)
				<-decDone
				return errors.Wrap(werr, "stream decoder failed")
			}
		}
		if rerr != nil {
			pw.Close()
			<-decDone
			return rerr
		}
	}
}

// decodeLoop decodes MP3 bytes from the pipe into mono PCM frames. Decode
// failures never interrupt playback: the pipe keeps draining and analysis
// taps are closed so the detector sees a read failure.
func (p *Player) decodeLoop(pr *io.PipeReader) {
	streamer, format, err := mp3.Decode(pr)
	if err != nil {
		p.logger.Warn("stream not decodable, analysis unavailable", "err", err)
		p.setAnalysis(analysisFailed, 0)
		p.frames.closeAll()
		_, _ = io.Copy(io.Discard, pr)
		return
	}
	defer streamer.Close()

	p.setAnalysis(analysisReady, int(format.SampleRate))

	samples := make([][2]float64, p.cfg.FrameSize)
	for {
		n, ok := streamer.Stream(samples)
		if n > 0 {
			mono := make([]float64, n)
			for i := 0; i < n; i++ {
				mono[i] = (samples[i][0] + samples[i][1]) / 2
			}
			p.frames.publish(mono)
		}
		if !ok {
			if serr := streamer.Err(); serr != nil {
				p.logger.Warn("decode failed mid-stream, analysis unavailable", "err", serr)
				p.setAnalysis(analysisFailed, 0)
				p.frames.closeAll()
				_, _ = io.Copy(io.Discard, pr)
			}
			return
		}
	}
}
