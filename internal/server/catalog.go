// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
	"github.com/kmarwood/ollamaweb/internal/ollama"
	"github.com/kmarwood/ollamaweb/internal/store"
)

// ============================================================================
// MODEL CATALOG
// ============================================================================

// handleModels handles GET /api/models. Each call reconciles the local
// catalog against the live backend: installed models are upserted,
// models no longer installed are flagged unavailable, and the merged
// list is returned. A dead backend leaves the stored catalog untouched
// (stale-but-available over empty).
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.syncCatalog(ctx)

	models, err := s.store.ListModels()
	if err != nil {
		log.Printf("STORE_ERROR | op=list_models error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}
	if models == nil {
		models = []model.ModelRecord{}
	}
	s.writeJSON(w, http.StatusOK, models)
}

// syncCatalog performs the reconciliation pass: fetch the external set,
// upsert every entry, mark the rest unavailable. listModels fails soft,
// so an unreachable backend results in an empty external set and no
// catalog mutation.
func (s *Server) syncCatalog(ctx context.Context) {
	external := s.backend.ListModels(ctx)
	if len(external) == 0 {
		return
	}

	names := make([]string, 0, len(external))
	for _, m := range external {
		names = append(names, m.Name)
		record := model.ModelRecord{
			Name:        m.Name,
			Size:        m.Size,
			Digest:      m.Digest,
			Family:      m.Details.Family,
			IsAvailable: true,
			ModifiedAt:  m.ModifiedAt,
		}
		if err := s.store.UpsertModel(record); err != nil {
			log.Printf("CATALOG_SYNC | op=upsert model=%s error=%v", m.Name, err)
		}
	}

	if err := s.store.MarkModelsUnavailable(names); err != nil {
		log.Printf("CATALOG_SYNC | op=mark_unavailable error=%v", err)
	}
}

// handlePullModel handles POST /api/models/pull.
func (s *Server) handlePullModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.backend.PullModel(r.Context(), req.Name); err != nil {
		log.Printf("MODEL_PULL | model=%s error=%v", req.Name, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to pull model")
		return
	}

	log.Printf("MODEL_PULL | model=%s status=accepted", req.Name)
	s.syncCatalog(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteModel handles DELETE /api/models/{name}.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.backend.DeleteModel(r.Context(), name); err != nil {
		if ollama.IsModelNotFound(err) {
			// Still drop the stale local record.
			if err := s.store.DeleteModel(name); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Printf("STORE_ERROR | op=delete_model name=%s error=%v", name, err)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Printf("MODEL_DELETE | model=%s error=%v", name, err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete model")
		return
	}

	if err := s.store.DeleteModel(name); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("STORE_ERROR | op=delete_model name=%s error=%v", name, err)
	}
	log.Printf("MODEL_DELETE | model=%s status=deleted", name)
	w.WriteHeader(http.StatusNoContent)
}
