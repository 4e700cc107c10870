package httpadapter

import (
	"net/http"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidWeights):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCorpusNotLoaded):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
