package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/imamik/edgefleet/internal/progress"
)

// handleProgress streams progress events until the client goes away or
// falls too far behind.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	if s.cfg.Progress == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("progress is not available"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	obs := progress.NewChannelObserver(s.cfg.StreamBuffer)
	handle := s.cfg.Progress.Subscribe(obs)
	defer func() {
		s.cfg.Progress.Unsubscribe(handle)
		obs.Close()
	}()

	log := s.log.WithValues("remote", r.RemoteAddr)
	log.V(1).Info("progress stream opened")
	defer log.V(1).Info("progress stream closed")

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-obs.Done():
			// Pruned for falling behind; drain what is buffered and stop.
			for {
				select {
				case e := <-obs.Events():
					if writeEvent(w, e) != nil {
						return
					}
				default:
					flusher.Flush()
					return
				}
			}
		case e := <-obs.Events():
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e progress.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}
