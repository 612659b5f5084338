// Package handler exposes the platform's HTTP API. Handlers decode
// requests, call services, and translate service errors to statuses;
// no business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/service"
)

// actorHeader carries the authenticated user id, injected by the edge
// proxy. Session handling itself lives outside this service.
const actorHeader = "X-Actor-ID"

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON parses the request body, rejecting unknown fields so
// client typos surface as 400s instead of silent zero values.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// requireActor extracts the acting user id or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "X-Actor-ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service sentinels onto HTTP statuses. Errors
// without a mapping are logged and returned as an opaque 500 so
// internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidOption),
		errors.Is(err, service.ErrInvalidQuestion),
		errors.Is(err, service.ErrInvalidItem),
		errors.Is(err, service.ErrInvalidTier),
		errors.Is(err, service.ErrInvalidPoll),
		errors.Is(err, service.ErrInvalidChoice),
		errors.Is(err, service.ErrInvalidCurrency),
		errors.Is(err, service.ErrInvalidSetting),
		errors.Is(err, service.ErrUnknownGateway):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrActorSuspended):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNotAmbassador),
		errors.Is(err, service.ErrNoQuestions):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrNotEligible),
		errors.Is(err, service.ErrWatchAdDisabled),
		errors.Is(err, service.ErrNoIssuedQuestion),
		errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrQuestionMismatch),
		errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrPollClosed),
		errors.Is(err, service.ErrAlreadyAmbassador),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrDuplicateThreshold),
		errors.Is(err, service.ErrItemInactive),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInsufficientPoints),
		errors.Is(err, service.ErrStalePrice),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNotSettleable):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrConcurrentRequest):
		writeError(w, http.StatusTooManyRequests, err.Error())

	default:
		log.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// pageParams reads limit/offset query parameters with bounds applied.
func pageParams(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = queryInt(r, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
