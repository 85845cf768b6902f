package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failures by returning them.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError adapts h to http.HandlerFunc, writing returned errors with
// WriteError.
//
//	r.Get("/v1/chain", httpserver.HandleError(h.chain))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			WriteError(w, err)
		}
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
	Code     int    `json:"code"`
}

// WriteError writes err as JSON. ServiceErrors keep their message and map
// their category to a status code; anything else is a 500 with a generic
// message.
func WriteError(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Error:    "Unexpected Service Error",
		Category: apperrors.CategoryGeneralError.String(),
		Code:     http.StatusInternalServerError,
	}
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		resp = errorResponse{
			Error:    svcErr.Error(),
			Category: svcErr.Category.String(),
			Code:     svcErr.StatusCode(),
		}
	}
	WriteJSON(w, resp.Code, resp)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
