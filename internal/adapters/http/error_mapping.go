package httpadapter

import (
	"net/http"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrSearchNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCorruptDocument), domain.IsKind(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal details of unclassified failures.
func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
