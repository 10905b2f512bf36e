// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/staticlift/internal/blob"
	"github.com/olegiv/staticlift/internal/images"
	"github.com/olegiv/staticlift/internal/middleware"
)

// publicImagePath is the unauthenticated serving prefix; upload and list
// responses return URLs under it so the editor can use them directly.
const publicImagePath = "/cms-images/"

// ImagesHandler serves media uploads and the public image endpoint.
type ImagesHandler struct {
	svc *images.Service
}

// NewImagesHandler creates an images handler.
func NewImagesHandler(svc *images.Service) *ImagesHandler {
	return &ImagesHandler{svc: svc}
}

func (h *ImagesHandler) available(w http.ResponseWriter) bool {
	if !h.svc.Available() {
		writeJSONError(w, http.StatusServiceUnavailable, "Stockage d'images non configuré")
		return false
	}
	return true
}

// Upload accepts either a multipart form with a "file" field or a raw body
// with a ?filename= query parameter.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	filename, contentType, data, err := readUpload(r)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeJSONError(w, http.StatusBadRequest, "Fichier trop volumineux (5 Mo maximum)")
		return
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	img, err := h.svc.Upload(r.Context(), filename, contentType, data)
	switch {
	case errors.Is(err, images.ErrUnsupportedType):
		writeJSONError(w, http.StatusBadRequest, "Type de fichier non supporté")
		return
	case errors.Is(err, images.ErrTooLarge):
		writeJSONError(w, http.StatusBadRequest, "Fichier trop volumineux (5 Mo maximum)")
		return
	case err != nil:
		slog.Error("storing image", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	slog.Info("image uploaded", "key", img.Key, "size", img.Size, "by", middleware.Identity(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     img.Key,
		"url":     publicImagePath + img.Key,
		"size":    img.Size,
		"type":    img.ContentType,
	})
}

// readUpload extracts the upload payload from either request shape.
func readUpload(r *http.Request) (filename, contentType string, data []byte, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, images.MaxUploadSize+1)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", nil, err
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", nil, err
		}
		return header.Filename, header.Header.Get("Content-Type"), data, nil
	}

	data, err = io.ReadAll(r.Body)
	if err != nil {
		return "", "", nil, err
	}
	filename = r.URL.Query().Get("filename")
	return filename, r.Header.Get("Content-Type"), data, nil
}

// List responds with stored images, newest keys sorting last.
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	list, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("listing images", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	type entry struct {
		images.Image
		URL string `json:"url"`
	}
	entries := make([]entry, 0, len(list))
	for _, img := range list {
		entries = append(entries, entry{Image: img, URL: publicImagePath + img.Key})
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": entries})
}

// Delete removes an image.
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.svc.Delete(r.Context(), key); err != nil {
		slog.Error("deleting image", "key", key, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	slog.Info("image deleted", "key", key, "by", middleware.Identity(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": key,
	})
}

// Serve is the public image endpoint. Keys embed their upload timestamp, so
// payloads never change under a key and long-lived caching is safe.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	key := chi.URLParam(r, "key")
	data, contentType, err := h.svc.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("reading image", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
