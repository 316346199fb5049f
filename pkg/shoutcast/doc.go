// Package shoutcast reads ICY/Shoutcast internet radio streams.
//
// Open resolves playlist URLs (.pls, .m3u) to the actual stream URL,
// negotiates ICY metadata, and returns a Stream whose Read yields only audio
// bytes: interleaved metadata blocks are parsed out and delivered through
// MetadataCallbackFunc when the track changes. No read timeout is applied to
// the stream body so long-running playback is supported.
package shoutcast
