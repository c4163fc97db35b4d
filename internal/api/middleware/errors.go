package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// StatusFor maps a domain error kind to an HTTP status code.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNotAuthorized:
		return http.StatusForbidden
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindSlotAlreadyFilled, domain.KindConflict, domain.KindSessionNotReady:
		return http.StatusConflict
	case domain.KindValidationFailure:
		return http.StatusBadRequest
	case domain.KindUpstreamExtractionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err as {"error", "kind"} with the status of its kind.
// Internal errors are logged and their details withheld from the client.
func WriteDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	}

	WriteJSON(w, status, map[string]string{
		"error": domain.MessageOf(err),
		"kind":  string(kind),
	})
}
