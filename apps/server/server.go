package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/notedhq/noted/pkg/auth"
	"github.com/notedhq/noted/pkg/config"
	"github.com/notedhq/noted/pkg/hub"
	"github.com/notedhq/noted/pkg/store"
)

var validate = validator.New()

type server struct {
	cfg      config.Server
	store    *store.Store
	hub      *hub.Hub
	tokens   *auth.Tokens
	presence *hub.Presence
}

func newServer(cfg config.Server, st *store.Store, h *hub.Hub, presence *hub.Presence) *server {
	return &server{
		cfg:      cfg,
		store:    st,
		hub:      h,
		tokens:   auth.NewTokens(cfg.JWTSecret),
		presence: presence,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.Handle("GET /api/auth/me", s.auth(s.handleMe))
	mux.Handle("PUT /api/auth/me", s.auth(s.handleUpdateMe))

	mux.Handle("GET /api/groups", s.auth(s.handleListGroups))
	mux.Handle("POST /api/groups", s.auth(s.handleCreateGroup))
	mux.Handle("GET /api/groups/{id}", s.auth(s.handleGetGroup))
	mux.Handle("PUT /api/groups/{id}", s.auth(s.handleUpdateGroup))
	mux.Handle("DELETE /api/groups/{id}", s.auth(s.handleDeleteGroup))
	mux.Handle("POST /api/groups/{id}/join", s.auth(s.handleJoinGroup))
	mux.Handle("POST /api/groups/{id}/leave", s.auth(s.handleLeaveGroup))
	mux.Handle("GET /api/groups/{id}/messages", s.auth(s.handleListMessages))
	mux.Handle("POST /api/groups/{id}/messages", s.auth(s.handleCreateMessage))
	mux.Handle("GET /api/groups/{id}/presence", s.auth(s.handleGroupPresence))

	mux.Handle("GET /api/images", s.auth(s.handleListImages))
	mux.Handle("POST /api/images", s.auth(s.handleCreateImage))
	mux.Handle("GET /api/images/{id}", s.auth(s.handleGetImage))
	mux.Handle("GET /api/images/{id}/file", s.auth(s.handleImageFile))
	mux.Handle("PUT /api/images/{id}", s.auth(s.handleUpdateImage))
	mux.Handle("DELETE /api/images/{id}", s.auth(s.handleDeleteImage))

	mux.HandleFunc("GET /ws/chat/{group_id}", s.handleChat)

	return corsMiddleware(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func apiError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apiError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
