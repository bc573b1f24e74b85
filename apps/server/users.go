package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/notedhq/noted/pkg/auth"
	"github.com/notedhq/noted/pkg/store"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Bio      string `json:"bio"`
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apiError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Username, req.Email, hash, req.Bio)
	if errors.Is(err, store.ErrDuplicate) {
		apiError(w, http.StatusBadRequest, "username or email already taken")
		return
	}
	if err != nil {
		log.Printf("Failed to create user: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, hash, err := s.store.UserByUsername(r.Context(), req.Username)
	if err != nil {
		apiError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	ok, err := auth.ComparePassword(req.Password, hash)
	if err != nil || !ok {
		apiError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	access, refresh, err := s.tokens.Generate(user.ID)
	if err != nil {
		log.Printf("Failed to generate tokens: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		apiError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	// The user may have been deleted since the token was issued.
	if _, err := s.store.UserByID(r.Context(), claims.UserID); err != nil {
		apiError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	access, refresh, err := s.tokens.Generate(claims.UserID)
	if err != nil {
		apiError(w, http.StatusInternalServerError, "failed to refresh")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		apiError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	Bio string `json:"bio"`
}

func (s *server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.UpdateUserBio(r.Context(), userID, req.Bio)
	if err != nil {
		apiError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
