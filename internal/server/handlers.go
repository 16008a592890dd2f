package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file size limit
const uploadSlack = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "environment": s.environment})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Stats(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := decodeOptionalBody(r.Body, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request", zap.Strings("paths", req.Paths))
	stats, err := s.service.Ingest(r.Context(), req.Paths)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.IngestResponse{
		IngestionStats: stats,
		Detail:         fmt.Sprintf("%d chunks stored from %d files.", stats.IngestedChunks, stats.IngestedFiles),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))
	answer, err := s.service.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+uploadSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusBadRequest, "File is too large.")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	stats, err := s.service.Upload(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		s.logger.Warn("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.IngestResponse{
		IngestionStats: stats,
		Detail:         fmt.Sprintf("Uploaded %s and stored %d chunks.", header.Filename, stats.IngestedChunks),
	})
}

// decodeOptionalBody accepts an empty body as the zero value.
func decodeOptionalBody(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusBadRequest {
		msg = strings.TrimPrefix(msg, models.ErrInvalidInput.Error()+": ")
	}
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}
