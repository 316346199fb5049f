package talkkiller

import "github.com/zachfi/tunehop/pkg/spectrum"

// The mid band holding most speech energy. Energy concentration here
// relative to the whole spectrum is what separates talk from music.
const (
	speechBandLowHz  = 300.0
	speechBandHighHz = 3000.0
)

// Classification labels emitted with every tick event.
const (
	LabelSpeech = "Speech-ish"
	LabelMusic  = "Music"
)

// SpeechScore returns the ratio of spectral energy in the speech band to the
// energy of the whole snapshot, in [0,1]. A snapshot with no energy scores 0:
// silence is never speech.
func SpeechScore(snap spectrum.Snapshot, sampleRate int) float64 {
	bins := len(snap)
	if bins == 0 {
		return 0
	}

	nyquist := float64(sampleRate) / 2
	lo := int(speechBandLowHz / nyquist * float64(bins))
	hi := int(speechBandHighHz / nyquist * float64(bins))
	if hi > bins-1 {
		hi = bins - 1
	}

	var mid, total float64
	for i, v := range snap {
		total += float64(v)
		if i >= lo && i < hi {
			mid += float64(v)
		}
	}

	if total == 0 {
		return 0
	}
	return mid / total
}

// Label classifies a score against the configured sensitivity.
func Label(score, sensitivity float64) string {
	if score >= sensitivity {
		return LabelSpeech
	}
	return LabelMusic
}
