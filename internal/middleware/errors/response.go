package errors

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrorResponse standardized error response formatı
type ErrorResponse struct {
	Success    bool                   `json:"success"`
	Error      string                 `json:"error"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	RetryAfter int                    `json:"retry_after,omitempty"`
	Timestamp  string                 `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Stack      string                 `json:"stack,omitempty"` // Sadece development'ta
}

// PanicInfo panic durumu hakkında bilgi
type PanicInfo struct {
	Value     interface{}
	Stack     string
	RequestID string
	Method    string
	Path      string
	UserAgent string
	ClientIP  string
	Timestamp time.Time
}

// NewResponse API hatasından response gövdesi üretir
func NewResponse(apiErr APIError, requestID string) *ErrorResponse {
	resp := &ErrorResponse{
		Success:   false,
		Error:     http.StatusText(apiErr.Status()),
		Code:      apiErr.Code(),
		Message:   apiErr.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	if e, ok := apiErr.(*Error); ok && len(e.Details) > 0 {
		resp.Details = e.Details
	}
	return resp
}

// WriteResponse hazır response'u yazar
func WriteResponse(w http.ResponseWriter, status int, resp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Str("request_id", resp.RequestID).Msg("Error response JSON encoding failed")
	}
}

// Write herhangi bir hatayı standart JSON formatında yazar
func Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := FromDomain(err)
	requestID := w.Header().Get("X-Request-ID")

	if apiErr.Status() >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Server error occurred")
	}

	WriteResponse(w, apiErr.Status(), NewResponse(apiErr, requestID))
}
