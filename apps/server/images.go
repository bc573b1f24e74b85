package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/notedhq/noted/pkg/model"
	"github.com/notedhq/noted/pkg/store"
)

const maxImageBytes = 10 << 20 // 10 MB

func (s *server) handleListImages(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	images, err := s.store.ImagesForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list images: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if images == nil {
		images = []model.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

// handleCreateImage accepts a multipart form with title, description and an
// image file part. Bytes land in the media dir under a generated object name;
// only metadata goes to the store.
func (s *server) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		apiError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := r.FormValue("title")
	if title == "" || len(title) > 200 {
		apiError(w, http.StatusBadRequest, "title is required")
		return
	}
	description := r.FormValue("description")

	file, header, err := r.FormFile("image")
	if err != nil {
		apiError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	objectName := uuid.NewString() + sanitizeExt(header.Filename)
	dst, err := os.Create(filepath.Join(s.cfg.MediaDir, objectName))
	if err != nil {
		log.Printf("Failed to create media file: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("Failed to write media file: %v", err)
		os.Remove(dst.Name())
		apiError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	img, err := s.store.CreateImage(r.Context(), userID, title, description, objectName)
	if err != nil {
		log.Printf("Failed to create image row: %v", err)
		os.Remove(dst.Name())
		apiError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// sanitizeExt keeps a short, path-safe extension from an uploaded filename.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

func (s *server) imageFromPath(w http.ResponseWriter, r *http.Request) (model.Image, bool) {
	userID, ok := caller(r)
	if !ok {
		apiError(w, http.StatusUnauthorized, "unauthorized")
		return model.Image{}, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		apiError(w, http.StatusNotFound, "image not found")
		return model.Image{}, false
	}

	img, err := s.store.ImageByID(r.Context(), id, userID)
	if errors.Is(err, store.ErrNotFound) {
		apiError(w, http.StatusNotFound, "image not found")
		return model.Image{}, false
	}
	if err != nil {
		log.Printf("Failed to load image: %v", err)
		apiError(w, http.StatusInternalServerError, "internal error")
		return model.Image{}, false
	}
	return img, true
}

func (s *server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.imageFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *server) handleImageFile(w http.ResponseWriter, r *http.Request) {
	img, ok := s.imageFromPath(w, r)
	if !ok {
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.MediaDir, img.ObjectName))
}

type imageUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (s *server) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.imageFromPath(w, r)
	if !ok {
		return
	}

	var req imageUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != nil && (*req.Title == "" || len(*req.Title) > 200) {
		apiError(w, http.StatusBadRequest, "invalid title")
		return
	}

	updated, err := s.store.UpdateImage(r.Context(), img.ID, img.UserID, req.Title, req.Description)
	if err != nil {
		log.Printf("Failed to update image: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to update image")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.imageFromPath(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteImage(r.Context(), img.ID, img.UserID)
	if err != nil {
		log.Printf("Failed to delete image: %v", err)
		apiError(w, http.StatusInternalServerError, "failed to delete image")
		return
	}
	if err := os.Remove(filepath.Join(s.cfg.MediaDir, deleted.ObjectName)); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove media file %s: %v", deleted.ObjectName, err)
	}
	w.WriteHeader(http.StatusNoContent)
}
