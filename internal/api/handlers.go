package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/consensus"
	"github.com/veriscope/authenticity-engine/internal/model"
)

// analyzeRequest is the POST /analyze body. MediaID and MediaURL are each
// optional but at least one must be present.
type analyzeRequest struct {
	MediaID   string   `json:"mediaId"`
	MediaURL  string   `json:"mediaUrl"`
	MediaType string   `json:"mediaType"`
	Providers []string `json:"providers"`
}

// analyzeResponse is the POST /analyze response: the consensus fields inline
// plus the contributing provider results.
type analyzeResponse struct {
	Success   bool            `json:"success"`
	MediaID   string          `json:"mediaId"`
	MediaType model.MediaType `json:"mediaType"`
	model.ConsensusRecord
	Results []model.ProviderResult `json:"results"`
}

// analysisDocument is the GET /analyze response.
type analysisDocument struct {
	Consensus *model.ConsensusRecord `json:"consensus"`
	Results   []model.ProviderResult `json:"results"`
}

// providerInfo describes one registered adapter for GET /providers.
type providerInfo struct {
	Name       string            `json:"name"`
	Enabled    bool              `json:"enabled"`
	MediaTypes []model.MediaType `json:"media_types"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mt := model.MediaType(strings.ToLower(strings.TrimSpace(req.MediaType)))
	if !mt.Valid() {
		s.respondError(w, http.StatusBadRequest, "mediaType must be video or photo")
		return
	}
	if req.MediaID == "" && req.MediaURL == "" {
		s.respondError(w, http.StatusBadRequest, "mediaId or mediaUrl is required")
		return
	}

	ref := model.MediaRef{
		MediaID:    req.MediaID,
		MediaType:  mt,
		LocatorURL: req.MediaURL,
	}
	if ref.LocatorURL == "" {
		if s.resolver == nil {
			s.respondError(w, http.StatusBadRequest, "no media storage configured; mediaUrl is required")
			return
		}
		signed, err := s.resolver.Resolve(r.Context(), ref.MediaID, string(mt))
		if err != nil {
			s.log.Warn("media url resolution failed",
				zap.String("media_id", ref.MediaID),
				zap.Error(err),
			)
			s.respondError(w, http.StatusBadRequest, "could not resolve a URL for mediaId")
			return
		}
		ref.LocatorURL = signed.SignedURL
	}
	if ref.MediaID == "" {
		ref.MediaID = uuid.New().String()
	}

	analysis := s.engine.Analyze(r.Context(), ref, req.Providers)
	rec := consensus.Aggregate(analysis.Results, time.Now().UTC())

	if err := s.gateway.Persist(r.Context(), ref, rec, analysis.Results); err != nil {
		s.log.Error("persist failed",
			zap.String("media_id", ref.MediaID),
			zap.Error(err),
		)
		s.respondError(w, http.StatusInternalServerError, "failed to persist analysis")
		return
	}

	s.respondJSON(w, http.StatusOK, analyzeResponse{
		Success:         true,
		MediaID:         ref.MediaID,
		MediaType:       ref.MediaType,
		ConsensusRecord: rec,
		Results:         analysis.Results,
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	mediaID := r.URL.Query().Get("mediaId")
	if mediaID == "" {
		s.respondError(w, http.StatusBadRequest, "mediaId is required")
		return
	}
	mt := model.MediaType(strings.ToLower(r.URL.Query().Get("mediaType")))
	if !mt.Valid() {
		s.respondError(w, http.StatusBadRequest, "mediaType must be video or photo")
		return
	}

	rec, err := s.store.GetConsensus(r.Context(), mediaID, mt)
	if err != nil {
		s.log.Error("consensus lookup failed", zap.String("media_id", mediaID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if rec == nil {
		s.respondError(w, http.StatusNotFound, "no analysis found")
		return
	}

	results, err := s.store.ListProviderResults(r.Context(), mediaID, mt)
	if err != nil {
		s.log.Error("provider results lookup failed", zap.String("media_id", mediaID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	s.respondJSON(w, http.StatusOK, analysisDocument{Consensus: rec, Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("store ping failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  "unreachable",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  "ok",
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	adapters := s.registry.All()
	infos := make([]providerInfo, 0, len(adapters))
	for _, a := range adapters {
		info := providerInfo{
			Name:       a.Name(),
			Enabled:    a.Enabled(),
			MediaTypes: []model.MediaType{},
		}
		for _, mt := range []model.MediaType{model.MediaTypeVideo, model.MediaTypePhoto} {
			if a.Supports(mt) {
				info.MediaTypes = append(info.MediaTypes, mt)
			}
		}
		infos = append(infos, info)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"providers": infos})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	hours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	snapshot, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		s.log.Error("metrics collection failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "metrics collection failed")
		return
	}
	s.respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
