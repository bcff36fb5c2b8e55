package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/log"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error        string   `json:"error"`
	Code         string   `json:"code"`
	Unregistered []string `json:"unregistered,omitempty"`
}

var errBadRequest = errors.New("bad request")

// statusOf maps ingestion errors to HTTP statuses: problems with the
// submitted data are 422, unreadable uploads 400.
func statusOf(err error) (status int, code string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, sampledb.ErrValidation):
		return http.StatusUnprocessableEntity, "unregistered_classes"
	case errors.Is(err, sampledb.ErrDateFormat):
		return http.StatusUnprocessableEntity, "invalid_date"
	case errors.Is(err, sampledb.ErrReprojection):
		return http.StatusUnprocessableEntity, "reprojection_failed"
	case errors.Is(err, sampledb.ErrConfig):
		return http.StatusUnprocessableEntity, "invalid_config"
	case errors.Is(err, sampledb.ErrIO):
		return http.StatusBadRequest, "unreadable_source"
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	var ve *sampledb.ValidationError
	if errors.As(err, &ve) {
		resp.Unregistered = ve.Unregistered
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	log.Error("web: request error",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("web: encode response failed", zap.Error(err))
	}
}
