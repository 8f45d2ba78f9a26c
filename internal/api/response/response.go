package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/uasmesh/rid-display/internal/api/errors"
)

// errorBody is the envelope for error responses. Successful responses
// carry their payload directly so observation clients see the documented
// wire form without unwrapping.
type errorBody struct {
	Error *errors.APIError `json:"error"`
}

// JSON sends a JSON response.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	sendJSON(w, statusCode, data)
}

// Error sends an error response wrapped in an error envelope.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errors.FromError(err)
	apiErr.WithRequestID(middleware.GetReqID(r.Context()))

	sendJSON(w, apiErr.HTTPCode, errorBody{Error: apiErr})
}

func sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":{"type":"internal","code":"json_encode_error","message":"Failed to encode JSON response"}}`, http.StatusInternalServerError)
	}
}
