package utils

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/sarkariwatch/scraper-http-service/common/models"
)

func encode(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteJSON sends data wrapped in the standard response envelope.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	encode(w, statusCode, models.BaseResponse{Data: data})
}

// WriteMessage sends a plain status message in the response envelope.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	encode(w, statusCode, models.BaseResponse{Data: message})
}

// WriteError sends the error envelope: the canonical status text plus a
// human-readable message.
func WriteError(w http.ResponseWriter, statusCode int, errorMessage string) {
	encode(w, statusCode, models.ErrorResponse{
		Error: http.StatusText(statusCode),
		Msg:   errorMessage,
	})
}

// WritePagination sends one page of results with paging metadata derived
// from the total row count.
func WritePagination(w http.ResponseWriter, statusCode int, data any, currentPage, perPage int, total int64) {
	lastPage := int64(math.Ceil(float64(total) / float64(perPage)))

	encode(w, statusCode, models.BasePaginationResponse{
		Data: data,
		Meta: models.MetaResponse{
			CurrentPage: int64(currentPage),
			LastPage:    lastPage,
			PerPage:     int64(perPage),
			Total:       total,
		},
	})
}
