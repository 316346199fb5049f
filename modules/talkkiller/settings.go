package talkkiller

import (
	"sync"

	"github.com/pkg/errors"
)

// Settings are the user-facing knobs of the talk killer. They are persisted
// by the directory module and mutable at any time; the detection loop reads
// them fresh on every tick so changes take effect immediately.
type Settings struct {
	// Enabled turns the detection loop on or off. Playback is unaffected.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// SpeechSeconds is how long speech must persist before switching away.
	SpeechSeconds float64 `yaml:"speech-seconds" json:"speechSeconds"`

	// Sensitivity is the minimum speech score classified as speech.
	Sensitivity float64 `yaml:"sensitivity" json:"sensitivity"`

	// CooldownSeconds is the minimum time between automatic switches.
	CooldownSeconds float64 `yaml:"cooldown-seconds" json:"cooldownSeconds"`
}

// Validate checks all values are within their supported ranges.
func (s Settings) Validate() error {
	if s.SpeechSeconds < 2 || s.SpeechSeconds > 20 {
		return errors.Errorf("speech-seconds must be between 2 and 20, got %v", s.SpeechSeconds)
	}
	if s.Sensitivity < 0 || s.Sensitivity > 1 {
		return errors.Errorf("sensitivity must be between 0 and 1, got %v", s.Sensitivity)
	}
	if s.CooldownSeconds < 5 || s.CooldownSeconds > 60 {
		return errors.Errorf("cooldown-seconds must be between 5 and 60, got %v", s.CooldownSeconds)
	}
	return nil
}

// SettingsStore is a mutex-guarded live view of Settings, shared between the
// detection loop (reader) and the settings API (writer).
type SettingsStore struct {
	mu sync.RWMutex
	s  Settings
}

func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{s: initial}
}

func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Set replaces the settings after validation.
func (st *SettingsStore) Set(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
	return nil
}
