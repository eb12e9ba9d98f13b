// Package server exposes the petition governance engine's HTTP surface
// (spec.md §6), grounded on the teacher's pkg/server handler style:
// a Handlers struct wrapping the domain services, manual path parsing via
// strings.TrimPrefix/Split, and writeJSON/writeErr helper functions.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// problemDetail is an RFC 7807 problem+json body.
type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// statusForKind maps a petitionerr.Kind to the HTTP status spec.md §7
// assigns it.
func statusForKind(kind petitionerr.Kind) int {
	switch kind {
	case petitionerr.KindSystemHalted:
		return http.StatusServiceUnavailable
	case petitionerr.KindNotFound:
		return http.StatusNotFound
	case petitionerr.KindInvalidTransition, petitionerr.KindAlreadyFated,
		petitionerr.KindConcurrentModification, petitionerr.KindAlreadyExists:
		return http.StatusConflict
	case petitionerr.KindValidation:
		return http.StatusBadRequest
	case petitionerr.KindUnauthorized:
		return http.StatusUnauthorized
	case petitionerr.KindRealmMismatch:
		return http.StatusForbidden
	case petitionerr.KindFateEventEmissionFailed, petitionerr.KindTransient,
		petitionerr.KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeErr renders err as an RFC 7807 problem+json response, classifying
// the status code from its petitionerr.Kind.
func writeErr(w http.ResponseWriter, err error) {
	kind := petitionerr.KindOf(err)
	status := statusForKind(kind)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problemDetail{
		Type:   "https://three-fates.archon-governance/errors/" + kind.String(),
		Title:  kind.String(),
		Status: status,
		Detail: err.Error(),
	})
}
