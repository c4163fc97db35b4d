// Package handlers implements the HTTP endpoints of the reconciliation API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/domain"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a bounded JSON body into dst and validates its tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewError(domain.KindValidationFailure, "request body is required")
		}
		return domain.WrapError(domain.KindValidationFailure, "invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return domain.WrapError(domain.KindValidationFailure, fieldMessage(err), err)
	}
	return nil
}

func fieldMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " is invalid"
	}
	return "invalid request body"
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	return userID, true
}

func writeErr(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	log = log.With().Str("request_id", middleware.RequestIDFrom(r.Context())).Logger()
	middleware.WriteDomainError(w, log, err)
}
