package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from the same origin in production; during
	// development it runs on a separate port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams detector events (per-tick score and label, one-shot
// analysis-blocked flags, switch notifications) to the browser.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := a.detector.Subscribe()
	defer a.detector.Unsubscribe(sub)

	// Reader goroutine: processes control frames and notices the client
	// going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-sub.Done():
			return
		case e := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
