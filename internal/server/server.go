// Package server exposes the preview and control HTTP surface: the MJPEG
// live view, snapshots, the system state, motion/alarm controls, and a
// server-sent-events feed bridged from the event bus.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/camera"
	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/logger"
	"github.com/akulinich/watchpost/internal/service/coordinator"
)

const (
	// mjpegBoundary separates frames in the multipart stream.
	mjpegBoundary = "frame"

	// shutdownTimeout bounds the HTTP server drain on exit.
	shutdownTimeout = 2 * time.Second
)

// Server serves the appliance HTTP surface.
type Server struct {
	coordinator *coordinator.Coordinator
	tap         *camera.Tap
	events      *bus.Bus
	httpServer  *http.Server
}

// New builds the server with its routes.
func New(listenAddress string, coord *coordinator.Coordinator, tap *camera.Tap, events *bus.Bus) *Server {
	s := &Server{
		coordinator: coord,
		tap:         tap,
		events:      events,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /video_feed", s.handleVideoFeed)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /toggle_motion", s.handleToggleMotion)
	mux.HandleFunc("POST /trigger_alarm", s.handleTriggerAlarm)

	s.httpServer = &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Run serves HTTP until the context is cancelled, then drains with a
// bounded timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "http")

	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(drainCtx); err != nil {
			logger.WarnKV(ctx, "HTTP drain incomplete", "error", err)
		}
	}()

	logger.InfoKV(ctx, "HTTP server listening", "listen_address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	<-done

	return nil
}

// handleVideoFeed streams the preview as multipart MJPEG, one part per tap
// frame, until the client disconnects.
func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := "viewer-" + uuid.NewString()

	frames, err := s.tap.Attach(viewerID)
	if err != nil {
		http.Error(w, "too many viewers", http.StatusServiceUnavailable)

		return
	}
	defer s.tap.Detach(viewerID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-frames:
			if _, err = fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame.Data)); err != nil {
				return
			}

			if _, err = w.Write(frame.Data); err != nil {
				return
			}

			if _, err = fmt.Fprint(w, "\r\n"); err != nil {
				return
			}

			flusher.Flush()
		}
	}
}

// handleSnapshot returns a single JPEG frame.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	frame, err := s.coordinator.SnapshotFrame(r.Context())
	if err != nil {
		http.Error(w, "camera unavailable", http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(frame.Data)
}

// stateResponse is the JSON rendering of the system state.
type stateResponse struct {
	MotionEnabled   bool  `json:"motion_enabled"`
	RecordingActive bool  `json:"recording_active"`
	MotionCount     int   `json:"motion_count"`
	UptimeSeconds   int64 `json:"uptime_seconds"`
}

// renderState converts a snapshot for JSON output.
func renderState(state *watch.SystemState) stateResponse {
	return stateResponse{
		MotionEnabled:   state.MotionEnabled,
		RecordingActive: state.RecordingActive,
		MotionCount:     state.MotionCount,
		UptimeSeconds:   int64(state.Uptime(time.Now()).Seconds()),
	}
}

// handleState returns the system state snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, renderState(s.coordinator.Snapshot()))
}

// handleToggleMotion flips motion detection and returns the new state.
func (s *Server) handleToggleMotion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, renderState(s.coordinator.ToggleMotion(r.Context())))
}

// handleTriggerAlarm sounds the alarm manually. The duration query
// parameter is in seconds and defaults to 5.
func (s *Server) handleTriggerAlarm(w http.ResponseWriter, r *http.Request) {
	seconds := 5

	if raw := r.URL.Query().Get("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid duration", http.StatusBadRequest)

			return
		}

		seconds = parsed
	}

	if err := s.coordinator.TriggerAlarm(r.Context(), time.Duration(seconds)*time.Second); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Alarm triggered for %d seconds", seconds),
	})
}

// sseEvent is the JSON payload pushed to event stream clients.
type sseEvent struct {
	Name      string         `json:"name"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// handleEvents bridges the event bus to a server-sent-events stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	subscriberID := "sse-" + uuid.NewString()
	ch := make(chan bus.Event, 16)

	if err := s.events.Subscribe(subscriberID, ch); err != nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)

		return
	}
	//nolint:errcheck // Unsubscribe only fails when the bus is already closed.
	defer s.events.Unsubscribe(subscriberID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher.Flush()

	encoder := json.NewEncoder(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: ", event.Name); err != nil {
				return
			}

			if err := encoder.Encode(sseEvent{
				Name:      event.Name,
				Severity:  string(event.Severity),
				Message:   event.Message,
				Payload:   event.Payload,
				Timestamp: event.Timestamp,
			}); err != nil {
				return
			}

			if _, err := fmt.Fprint(w, "\n"); err != nil {
				return
			}

			flusher.Flush()
		}
	}
}

// writeJSON renders a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
