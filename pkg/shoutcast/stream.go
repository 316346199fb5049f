package shoutcast

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// userAgent is sent on every request. Some directories refuse unknown
// clients, so we present as a common player.
const userAgent = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"

// MetadataCallbackFunc is called when the stream metadata changes.
type MetadataCallbackFunc func(m *Metadata)

// Stream is an open shoutcast stream. Read returns audio bytes only; ICY
// metadata blocks are parsed out of the byte stream as they arrive.
type Stream struct {
	// Name of the station, from the icy-name header.
	Name string

	// Genre the station reports.
	Genre string

	// Description of the stream.
	Description string

	// URL is the station homepage.
	URL string

	// Bitrate in kbit/s, zero when the server does not report one.
	Bitrate int

	// MetadataCallbackFunc, when set, is invoked each time the stream
	// metadata changes. Called from within Read.
	MetadataCallbackFunc MetadataCallbackFunc

	metaint  int // audio bytes between metadata blocks; 0 means no metadata
	pos      int // audio bytes read since the last metadata block
	metadata *Metadata
	rc       io.ReadCloser
	logger   *slog.Logger
}

// Open connects to a remote stream. Playlist URLs (.pls, .m3u) are resolved
// to the stream URL they point at.
func Open(url string, logger *slog.Logger) (*Stream, error) {
	resolved, err := resolvePlaylistURL(url)
	if err != nil {
		return nil, err
	}
	if resolved != url {
		logger.Debug("resolved playlist", "url", url, "stream", resolved)
		url = resolved
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", userAgent)
	req.Header.Add("icy-metadata", "1")

	// Timeout establishing the connection only. The stream body is read
	// indefinitely.
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	client := &http.Client{
		Transport: &http.Transport{
			Dial:                  dialer.Dial,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %q from %s", resp.Status, url)
	}

	var bitrate int
	if raw := resp.Header.Get("icy-br"); raw != "" {
		if bitrate, err = strconv.Atoi(raw); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("cannot parse bitrate: %w", err)
		}
	}

	// Servers that ignore the icy-metadata request header send a plain
	// audio stream; metaint stays 0 and Read passes bytes through.
	var metaint int
	if raw := resp.Header.Get("icy-metaint"); raw != "" {
		if metaint, err = strconv.Atoi(raw); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("cannot parse metaint: %w", err)
		}
	}

	s := &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		Bitrate:     bitrate,
		metaint:     metaint,
		rc:          resp.Body,
		logger:      logger,
	}

	return s, nil
}

// Read implements io.Reader, returning only audio bytes.
func (s *Stream) Read(buf []byte) (int, error) {
	if s.metaint == 0 {
		return s.rc.Read(buf)
	}

	// Never read past the next metadata boundary in a single call; the
	// boundary is handled once the audio bytes before it are consumed.
	if s.pos == s.metaint {
		if err := s.readMetadataBlock(); err != nil {
			return 0, err
		}
		s.pos = 0
	}

	limit := len(buf)
	if remain := s.metaint - s.pos; remain < limit {
		limit = remain
	}

	n, err := s.rc.Read(buf[:limit])
	s.pos += n
	return n, err
}

// readMetadataBlock consumes one metadata block from the stream and fires
// the callback when the track changed.
func (s *Stream) readMetadataBlock() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(s.rc, lenByte[:]); err != nil {
		return err
	}

	blockLen := int(lenByte[0]) * 16
	if blockLen == 0 {
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(s.rc, block); err != nil {
		return err
	}

	if m := NewMetadata(block); !m.Equals(s.metadata) {
		s.metadata = m
		if s.MetadataCallbackFunc != nil {
			s.MetadataCallbackFunc(m)
		}
	}

	return nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	s.logger.Debug("closing stream", "url", s.URL)
	return s.rc.Close()
}
