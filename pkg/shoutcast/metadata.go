package shoutcast

import "strings"

// Metadata is the parsed content of one ICY metadata block.
type Metadata struct {
	// StreamTitle is the currently playing track, typically "Artist - Title".
	StreamTitle string

	// StreamURL is an optional link associated with the current track.
	StreamURL string
}

// NewMetadata parses a raw ICY metadata block. Blocks look like
//
//	StreamTitle='Artist - Title';StreamUrl='';\x00\x00...
//
// and are zero-padded to a multiple of 16 bytes.
func NewMetadata(raw []byte) *Metadata {
	m := &Metadata{}

	s := strings.TrimRight(string(raw), "\x00")
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "'")

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "streamtitle":
			m.StreamTitle = value
		case "streamurl":
			m.StreamURL = value
		}
	}

	return m
}

// Equals reports whether two metadata blocks describe the same track.
func (m *Metadata) Equals(other *Metadata) bool {
	if other == nil {
		return false
	}
	return m.StreamTitle == other.StreamTitle
}
