// Package handler holds the HTTP handlers. Each handler depends on a narrow
// interface over the service or store it needs so tests can swap in mocks.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/lifecycle"
	"github.com/tableside/api/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names, not Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encode JSON response")
	}
}

// decodeBody decodes the JSON body into dst and validates it. On failure the
// 400 response is already written and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), minBound(fe))
	case "lt", "lte", "max":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return "invalid " + fe.Field()
	}
}

func minBound(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		if n, err := strconv.Atoi(fe.Param()); err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fe.Param()
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func tableIDParam(w http.ResponseWriter, r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id"})
		return 0, false
	}
	return int32(id), true
}

// writeServiceError maps service and engine errors to a status code.
// Anything unrecognised is logged and answered with 500.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, lifecycle.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrCategoryInUse),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})

	case errors.Is(err, lifecycle.ErrEmptyCart),
		errors.Is(err, lifecycle.ErrInvalidQuantity),
		errors.Is(err, service.ErrUnknownMenuItem),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidCategoryID),
		errors.Is(err, service.ErrInvalidSeats),
		errors.Is(err, service.ErrTooManyTables),
		errors.Is(err, service.ErrReorderMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	default:
		log.WithError(err).Error(op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
