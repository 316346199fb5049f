package api

import "net/http"

// handleStream relays the live audio bytes of the current station to the
// browser as a chunked audio/mpeg response. The relay passes bytes through
// untouched; listeners joining mid-stream start at the next MP3 frame sync
// their decoder finds.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	tap := a.player.Relay()
	defer tap.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	a.logger.Debug("relay listener connected", "remote", r.RemoteAddr)
	defer a.logger.Debug("relay listener disconnected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-tap.Frames():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
