// Package respond provides shared JSON response utilities for API handlers.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Error codes returned in ErrorResponse.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidID    = "INVALID_ID"
	CodeInvalidParam = "INVALID_PARAMETER"
	CodeMissingParam = "MISSING_PARAMETER"
	CodeUnavailable  = "UNAVAILABLE"
	CodeRateLimited  = "RATE_LIMITED"
)

// Problem is the body of every API error. Detail is always set and says
// what went wrong in terms of the request. CanonicalID names the player the
// request was about and Param the query or path parameter at fault.
type Problem struct {
	Code        string `json:"code"`
	Detail      string `json:"detail"`
	CanonicalID string `json:"canonical_id,omitempty"`
	Param       string `json:"param,omitempty"`
}

// ErrorResponse is the error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error Problem `json:"error"`
}

// WriteJSON writes raw JSON bytes to the response with cache and ETag headers.
func WriteJSON(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", "Accept-Encoding")
	setCacheHeaders(w, ttl, cacheHit)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WriteNotModified sends a 304 with the matching ETag.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteProblem sends a structured JSON error response. Errors are never
// cached.
func WriteProblem(w http.ResponseWriter, status int, p Problem) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: p})
}

// NotFound reports that nothing is published for id. id is empty for
// requests that do not name a player.
func NotFound(w http.ResponseWriter, id, detail string) {
	WriteProblem(w, http.StatusNotFound, Problem{Code: CodeNotFound, Detail: detail, CanonicalID: id})
}

// InvalidID reports a malformed canonical id in param.
func InvalidID(w http.ResponseWriter, param, raw string, err error) {
	WriteProblem(w, http.StatusBadRequest, Problem{
		Code:   CodeInvalidID,
		Detail: fmt.Sprintf("%q is neither a numeric profile id nor a synthetic name id: %v", raw, err),
		Param:  param,
	})
}

// InvalidParam reports a query parameter with an unusable value.
func InvalidParam(w http.ResponseWriter, param, detail string) {
	WriteProblem(w, http.StatusBadRequest, Problem{Code: CodeInvalidParam, Detail: detail, Param: param})
}

// MissingParam reports a required query parameter that was not sent.
func MissingParam(w http.ResponseWriter, param string) {
	WriteProblem(w, http.StatusBadRequest, Problem{
		Code: CodeMissingParam, Detail: param + " query parameter is required", Param: param,
	})
}

// Unavailable reports a failed store query. id is the player the query was
// for, if any.
func Unavailable(w http.ResponseWriter, id string, err error) {
	WriteProblem(w, http.StatusServiceUnavailable, Problem{
		Code: CodeUnavailable, Detail: "canonical store query failed: " + err.Error(), CanonicalID: id,
	})
}

// RateLimited reports a client over its request budget.
func RateLimited(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	WriteProblem(w, http.StatusTooManyRequests, Problem{
		Code: CodeRateLimited, Detail: "too many requests, retry after " + retryAfter + "s",
	})
}

// WriteJSONObject marshals a Go value to JSON and writes it.
// Used for responses not built by Postgres (health checks, root info).
func WriteJSONObject(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setCacheHeaders(w http.ResponseWriter, ttl time.Duration, cacheHit bool) {
	maxAge := int(ttl.Seconds())
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
}
