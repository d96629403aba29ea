// Package api exposes the player's command surface and status over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/asset"
	"github.com/satindergrewal/stemdeck/internal/engine"
	"github.com/satindergrewal/stemdeck/internal/mixgraph"
	"github.com/satindergrewal/stemdeck/internal/stem"
)

// Controller is the command surface of the engine.
type Controller interface {
	SelectSong(id string) error
	ToggleStem(st stem.Stem) error
	ToggleFullMix() error
	Reset() error
	Restart() error
	Status() engine.Status
}

// Server routes HTTP requests to a Controller.
type Server struct {
	ctl     Controller
	catalog *asset.Catalog
	hub     *Hub
	log     zerolog.Logger
}

// New creates a server. catalog and hub may be nil.
func New(ctl Controller, catalog *asset.Catalog, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		ctl:     ctl,
		catalog: catalog,
		hub:     hub,
		log:     logger.With().Str("component", "api").Logger(),
	}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/songs", s.handleSongs)
	mux.HandleFunc("/api/song", post(s.handleSong))
	mux.HandleFunc("/api/stems/{stem}/toggle", post(s.handleToggle))
	mux.HandleFunc("/api/fullmix", post(s.command(s.ctl.ToggleFullMix)))
	mux.HandleFunc("/api/reset", post(s.command(s.ctl.Reset)))
	mux.HandleFunc("/api/restart", post(s.command(s.ctl.Restart)))
	if s.hub != nil {
		mux.Handle("/api/events", s.hub)
	}
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	titles := []asset.Title{}
	if s.catalog != nil {
		titles = s.catalog.Titles()
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": titles})
}

func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Song string `json:"song"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Song != "" && s.catalog != nil && !s.catalog.Has(req.Song) {
		http.Error(w, "unknown song", http.StatusNotFound)
		return
	}
	s.reply(w, s.ctl.SelectSong(req.Song))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	st, err := stem.Parse(r.PathValue("stem"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.reply(w, s.ctl.ToggleStem(st))
}

func (s *Server) command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, fn())
	}
}

// reply maps a command result to a response carrying the new status.
func (s *Server) reply(w http.ResponseWriter, err error) {
	code := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrInvalidCommand), errors.Is(err, mixgraph.ErrNoPlayableStems):
		code = http.StatusConflict
	case errors.Is(err, engine.ErrClosed):
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusInternalServerError
	}

	resp := map[string]any{"ok": err == nil, "status": s.ctl.Status()}
	if err != nil {
		resp["error"] = err.Error()
		s.log.Debug().Err(err).Int("code", code).Msg("command rejected")
	}
	writeJSON(w, code, resp)
}
