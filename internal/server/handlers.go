package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/cwbudde/algo-sitar/offline"
	"github.com/cwbudde/algo-sitar/preset"
	"github.com/cwbudde/algo-sitar/sitar"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB

// statusResponse is the polled session snapshot
type statusResponse struct {
	Status          string    `json:"status"`
	Level           string    `json:"level"`
	Recorder        string    `json:"recorder"`
	HasInput        bool      `json:"hasInput"`
	Elapsed         float64   `json:"elapsed"`
	Progress        float64   `json:"progress"`
	PreviewProgress float64   `json:"previewProgress"`
	Backing         string    `json:"backing,omitempty"`
	BackingSummary  []float32 `json:"backingSummary,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// errorStatus maps the session error taxonomy to HTTP codes
func errorStatus(err error) int {
	var (
		de *sitar.DeviceError
		ce *sitar.DecodeError
		ne *sitar.GraphNotReadyError
		ee *sitar.EncodingError
	)
	switch {
	case errors.As(err, &de):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ne), errors.Is(err, offline.ErrNoRender):
		return http.StatusConflict
	case errors.As(err, &ee):
		return http.StatusInternalServerError
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStatus returns the last status message and the session gauges
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session
	last := sess.Status().Last()
	resp := statusResponse{
		Status:          last.Text,
		Level:           last.Level.String(),
		Recorder:        sess.Recorder().State().String(),
		HasInput:        sess.Engine().HasInput(),
		Elapsed:         sess.Elapsed(),
		Progress:        sess.Progress(),
		PreviewProgress: sess.PreviewProgress(),
	}
	if b := sess.Recorder().Backing(); b != nil {
		resp.Backing = b.Name
		resp.BackingSummary = b.Summary
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams status messages via SSE
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgs, cancel := s.session.Status().Subscribe(16)
	defer cancel()
	for {
		select {
		case <-r.Context().Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\n", m.Level)
			fmt.Fprintf(w, "data: %s\n\n", m.Text)
			flusher.Flush()
		}
	}
}

// handleGetParams returns the current controls in preset form
func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, preset.Encode(s.session.Store().Snapshot()))
}

// handleSetParam writes one control: {"value": x}
func (s *Server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {\"value\": number}"})
		return
	}
	name := chi.URLParam(r, "name")
	v, err := s.session.SetParam(name, *body.Value)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"name": name, "value": v})
}

// handleApplyPreset replaces every control from an untyped payload
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "preset must be a JSON object"})
		return
	}
	s.writeJSON(w, http.StatusOK, preset.Encode(s.session.ApplyPreset(payload)))
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	entries := s.session.Presets().List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{"name": e.Name, "params": preset.Encode(e.Params)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	saved := s.session.SavePreset(name)
	s.writeJSON(w, http.StatusOK, map[string]any{"name": name, "saved": saved})
}

func (s *Server) handleRecallPreset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RecallPreset(chi.URLParam(r, "name")); err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, preset.Encode(s.session.Store().Snapshot()))
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	s.session.Presets().Remove(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// handleAcquireInput opens the live input and starts the engine
func (s *Server) handleAcquireInput(w http.ResponseWriter, r *http.Request) {
	if err := s.session.AcquireInput(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleReleaseInput(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ReleaseInput(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StartRecording(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StopRecording(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

// handleDownloadTake serves the latest recorded take
func (s *Server) handleDownloadTake(w http.ResponseWriter, r *http.Request) {
	path, err := s.session.LastTake()
	if err != nil {
		s.writeError(w, err)
		return
	}
	serveWAV(w, r, path)
}

// handleUploadBacking loads the multipart "audio" file as backing track
func (s *Server) handleUploadBacking(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please upload a WAV file as \"audio\""})
		return
	}
	defer file.Close()

	track, err := s.session.LoadBacking(header.Filename, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":     track.Name,
		"duration": track.Duration(),
		"summary":  track.Summary,
	})
}

func (s *Server) handleClearBacking(w http.ResponseWriter, r *http.Request) {
	s.session.ClearBacking()
	w.WriteHeader(http.StatusNoContent)
}

// handleOfflineInput loads the multipart "audio" file for offline rendering
func (s *Server) handleOfflineInput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please upload a WAV file as \"audio\""})
		return
	}
	defer file.Close()

	if err := s.session.LoadOfflineInput(header.Filename, file); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOfflineRender(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.RenderOffline(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleOfflineResult(w http.ResponseWriter, r *http.Request) {
	res := s.session.OfflineResult()
	if res == nil {
		s.writeError(w, offline.ErrNoRender)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) writeResult(w http.ResponseWriter, res *offline.Result) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"duration": res.Duration(),
		"frames":   res.Frames(),
		"summary":  res.Summary,
	})
}

func (s *Server) handlePreviewStart(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StartPreview(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewStop(w http.ResponseWriter, r *http.Request) {
	s.session.StopPreview()
	w.WriteHeader(http.StatusNoContent)
}

// handleOfflineExport writes the latest render and serves it
func (s *Server) handleOfflineExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.session.ExportOffline()
	if err != nil {
		s.writeError(w, err)
		return
	}
	serveWAV(w, r, path)
}

func serveWAV(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
