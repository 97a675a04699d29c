package handlers

import (
	"errors"
	"net/http"

	"github.com/ewhitmore/riskledger/internal/models"
	pkghttp "github.com/ewhitmore/riskledger/pkg/http"
)

// writeServiceError maps service sentinel errors onto HTTP responses with
// generic bodies. Anything unmapped becomes a 500 without detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthorized")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteTooManyRequests(w, "Account temporarily locked due to repeated failed attempts")
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
