package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Snapshot holds one magnitude per frequency bin, scaled to 0-255. Bin i
// covers frequencies around i * sampleRate / (2 * len(snapshot)).
type Snapshot []byte

// ErrInsufficientData is returned by Snapshot until a full analysis window
// of samples has been pushed.
var ErrInsufficientData = errors.New("not enough samples for a full analysis window")

// Magnitudes below minDB map to 0 and above maxDB map to 255. The range
// matches the common browser analyser defaults so scores computed from a
// Snapshot line up with what a web client would see.
const (
	minDB = -100.0
	maxDB = -30.0
)

// Analyzer converts a rolling window of PCM samples into byte-magnitude
// frequency snapshots. It keeps the most recent fftSize samples; each
// Snapshot call transforms the current window. Not safe for concurrent use;
// the detection loop is the only caller.
type Analyzer struct {
	sampleRate int
	bins       int
	fftSize    int

	fft    *fourier.FFT
	window []float64 // Hann coefficients, precomputed
	buf    []float64 // most recent fftSize samples
	filled int

	scratch []float64
	coeffs  []complex128
	winSum  float64
}

// NewAnalyzer returns an Analyzer producing snapshots with the given number
// of frequency bins. bins must be a power of two.
func NewAnalyzer(sampleRate, bins int) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate %d", sampleRate)
	}
	if bins <= 0 || bins&(bins-1) != 0 {
		return nil, errors.Errorf("bin count must be a power of two, got %d", bins)
	}

	fftSize := bins * 2
	a := &Analyzer{
		sampleRate: sampleRate,
		bins:       bins,
		fftSize:    fftSize,
		fft:        fourier.NewFFT(fftSize),
		window:     make([]float64, fftSize),
		buf:        make([]float64, 0, fftSize),
		scratch:    make([]float64, fftSize),
		coeffs:     make([]complex128, fftSize/2+1),
	}

	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
		a.winSum += a.window[i]
	}

	return a, nil
}

// SampleRate returns the rate the analyzer was constructed for.
func (a *Analyzer) SampleRate() int { return a.sampleRate }

// Bins returns the number of frequency bins per snapshot.
func (a *Analyzer) Bins() int { return a.bins }

// Push appends PCM samples to the analysis window, discarding the oldest
// samples once the window is full.
func (a *Analyzer) Push(samples []float64) {
	if len(samples) >= a.fftSize {
		a.buf = append(a.buf[:0], samples[len(samples)-a.fftSize:]...)
		a.filled = a.fftSize
		return
	}

	overflow := len(a.buf) + len(samples) - a.fftSize
	if overflow > 0 {
		a.buf = a.buf[:copy(a.buf, a.buf[overflow:])]
	}
	a.buf = append(a.buf, samples...)

	a.filled += len(samples)
	if a.filled > a.fftSize {
		a.filled = a.fftSize
	}
}

// Reset discards all buffered samples, e.g. when the source changes.
func (a *Analyzer) Reset() {
	a.buf = a.buf[:0]
	a.filled = 0
}

// Snapshot runs a windowed FFT over the current sample window and returns
// the byte magnitude of each bin. Silence maps to 0.
func (a *Analyzer) Snapshot() (Snapshot, error) {
	if a.filled < a.fftSize {
		return nil, ErrInsufficientData
	}

	for i, s := range a.buf {
		a.scratch[i] = s * a.window[i]
	}
	a.fft.Coefficients(a.coeffs, a.scratch)

	out := make(Snapshot, a.bins)
	for i := 0; i < a.bins; i++ {
		// Normalise by the window sum so a full-scale sine lands near 0 dBFS.
		mag := 2 * cmplx.Abs(a.coeffs[i]) / a.winSum
		if mag <= 0 {
			continue
		}
		db := 20 * math.Log10(mag)
		v := math.Round(255 * (db - minDB) / (maxDB - minDB))
		if v <= 0 {
			continue
		}
		if v > 255 {
			v = 255
		}
		out[i] = byte(v)
	}

	return out, nil
}
