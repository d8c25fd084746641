package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/literature-harvester/internal/domain"
)

const (
	defaultNetworkDepth = 2
	maxIDLength         = 512
	maxRequestBodySize  = 1 << 20 // 1 MB limit for request bodies
)

// paperIDParams are the path parameters shared by the citation queries.
type paperIDParams struct {
	ID    string `validate:"required,max=512"`
	Other string `validate:"required,max=512"`
}

// depthParams carries a parsed depth query parameter.
type depthParams struct {
	Depth int `validate:"gte=0"`
}

// addCitationRequest is the JSON request body for ingesting a citation edge.
type addCitationRequest struct {
	CitingID string `json:"citing_id" validate:"required,max=512"`
	CitedID  string `json:"cited_id" validate:"required,max=512"`
}

// getNetwork handles GET /papers/{id}/network.
func (s *Server) getNetwork(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !s.validID(w, id) {
		return
	}

	depth, ok := s.parseDepth(w, r, "depth", defaultNetworkDepth)
	if !ok {
		return
	}

	graph, err := s.engine.BuildNetwork(r.Context(), id, depth)
	if err != nil {
		s.logger.Error().Err(err).Str("paper_id", id).Msg("failed to build citation network")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, graphToResponse(id, depth, graph))
}

// getPaths handles GET /papers/{id}/paths/{target}.
func (s *Server) getPaths(w http.ResponseWriter, r *http.Request) {
	params := paperIDParams{
		ID:    strings.TrimSpace(chi.URLParam(r, "id")),
		Other: strings.TrimSpace(chi.URLParam(r, "target")),
	}
	if err := s.validate.Struct(params); err != nil {
		writeValidationError(w, err)
		return
	}

	maxDepth, ok := s.parseDepth(w, r, "max_depth", s.engine.MaxDepth())
	if !ok {
		return
	}

	paths, err := s.engine.FindPaths(r.Context(), params.ID, params.Other, maxDepth)
	if err != nil {
		s.logger.Error().Err(err).
			Str("from", params.ID).
			Str("to", params.Other).
			Msg("failed to find citation paths")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pathsResponse{
		From:     params.ID,
		To:       params.Other,
		MaxDepth: maxDepth,
		Count:    len(paths),
		Paths:    paths,
	})
}

// getSimilarity handles GET /papers/{id}/similarity/{other}.
func (s *Server) getSimilarity(w http.ResponseWriter, r *http.Request) {
	params := paperIDParams{
		ID:    strings.TrimSpace(chi.URLParam(r, "id")),
		Other: strings.TrimSpace(chi.URLParam(r, "other")),
	}
	if err := s.validate.Struct(params); err != nil {
		writeValidationError(w, err)
		return
	}

	score, err := s.engine.Similarity(r.Context(), params.ID, params.Other)
	if err != nil {
		s.logger.Error().Err(err).
			Str("paper_id", params.ID).
			Str("other_id", params.Other).
			Msg("failed to compute citation similarity")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, similarityResponse{
		ID:    params.ID,
		Other: params.Other,
		Score: score,
	})
}

// addCitation handles POST /citations.
// It responds 201 when a new edge was stored and 200 when it already existed.
func (s *Server) addCitation(w http.ResponseWriter, r *http.Request) {
	if s.citations == nil {
		writeError(w, http.StatusServiceUnavailable, "citation ingestion is not configured")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req addCitationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	req.CitingID = strings.TrimSpace(req.CitingID)
	req.CitedID = strings.TrimSpace(req.CitedID)

	if err := s.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := s.citations.AddCitation(r.Context(), req.CitingID, req.CitedID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("citing_id", req.CitingID).
			Str("cited_id", req.CitedID).
			Msg("failed to add citation")
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Info().
			Str("citing_id", req.CitingID).
			Str("cited_id", req.CitedID).
			Msg("citation added")
	}
	writeJSON(w, status, citationResponse{
		CitingID: req.CitingID,
		CitedID:  req.CitedID,
		Created:  created,
	})
}

// validID checks a single paper ID path parameter, writing a 400 on failure.
func (s *Server) validID(w http.ResponseWriter, id string) bool {
	if err := s.validate.Var(id, "required,max=512"); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("id is required and must be at most %d characters", maxIDLength))
		return false
	}
	return true
}

// parseDepth reads a non-negative integer query parameter, falling back to def
// when absent. Upper bounds are enforced by the engine.
func (s *Server) parseDepth(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter", name))
		return 0, false
	}
	if err := s.validate.Struct(depthParams{Depth: v}); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be non-negative", name))
		return 0, false
	}
	return v, true
}

// writeValidationError reports validator failures as a 400 with per-field messages.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Error:  "validation failed",
		Fields: fields,
	})
}

// writeDomainError maps domain errors to appropriate HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrSelfCitation):
		writeError(w, http.StatusUnprocessableEntity, "self citation rejected")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
