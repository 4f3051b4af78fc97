package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/northwind-commerce/cart-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
// Internal and connectivity failures never leak storage detail to the
// caller.
func respondDomainError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
		return
	}

	switch de.Kind {
	case domain.KindValidation:
		respondError(w, http.StatusBadRequest, de.Code, de.Message)
	case domain.KindNotFound:
		respondError(w, http.StatusNotFound, de.Code, de.Message)
	case domain.KindConflict:
		respondError(w, http.StatusConflict, de.Code, de.Message)
	case domain.KindConnectivity:
		log.Printf("storage unreachable: %v", err)
		respondError(w, http.StatusInternalServerError, domain.CodeConnectivity, "storage temporarily unreachable")
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
	}
}
