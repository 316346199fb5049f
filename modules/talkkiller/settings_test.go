package talkkiller

import "testing"

func validSettings() Settings {
	return Settings{
		Enabled:         true,
		SpeechSeconds:   6,
		Sensitivity:     0.6,
		CooldownSeconds: 20,
	}
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"speech seconds low bound", func(s *Settings) { s.SpeechSeconds = 2 }, false},
		{"speech seconds high bound", func(s *Settings) { s.SpeechSeconds = 20 }, false},
		{"speech seconds too low", func(s *Settings) { s.SpeechSeconds = 1.9 }, true},
		{"speech seconds too high", func(s *Settings) { s.SpeechSeconds = 20.1 }, true},
		{"sensitivity zero", func(s *Settings) { s.Sensitivity = 0 }, false},
		{"sensitivity one", func(s *Settings) { s.Sensitivity = 1 }, false},
		{"sensitivity negative", func(s *Settings) { s.Sensitivity = -0.1 }, true},
		{"sensitivity above one", func(s *Settings) { s.Sensitivity = 1.1 }, true},
		{"cooldown low bound", func(s *Settings) { s.CooldownSeconds = 5 }, false},
		{"cooldown high bound", func(s *Settings) { s.CooldownSeconds = 60 }, false},
		{"cooldown too low", func(s *Settings) { s.CooldownSeconds = 4 }, true},
		{"cooldown too high", func(s *Settings) { s.CooldownSeconds = 61 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("Validate(%+v) = nil, want error", s)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate(%+v) = %v, want nil", s, err)
			}
		})
	}
}

func TestSettingsStoreRejectsInvalid(t *testing.T) {
	st := NewSettingsStore(validSettings())

	bad := validSettings()
	bad.Sensitivity = 2
	if err := st.Set(bad); err == nil {
		t.Fatal("Set with invalid settings should fail")
	}
	if got := st.Get(); got != validSettings() {
		t.Errorf("store = %+v, want original settings kept after rejected Set", got)
	}
}

func TestSettingsStoreSet(t *testing.T) {
	st := NewSettingsStore(validSettings())

	next := validSettings()
	next.Enabled = false
	next.Sensitivity = 0.8
	if err := st.Set(next); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := st.Get(); got != next {
		t.Errorf("store = %+v, want %+v", got, next)
	}
}
