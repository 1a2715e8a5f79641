// Package handler contains the data-plane HTTP handlers.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redisgate/redisgate/internal/api/response"
	"github.com/redisgate/redisgate/internal/command"
	"github.com/redisgate/redisgate/internal/gateway"
)

// Redis serves the /redis/{instanceID} command surface: the path-style
// shorthand routes and the generic JSON command route.
type Redis struct {
	dispatcher *gateway.Dispatcher
	policy     *command.Policy
}

func NewRedis(dispatcher *gateway.Dispatcher, policy *command.Policy) *Redis {
	return &Redis{dispatcher: dispatcher, policy: policy}
}

// apiKey extracts the caller's key from Authorization: Bearer or X-API-Key.
func apiKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return key
		}
	}
	return r.Header.Get("X-API-Key")
}

// Shorthand handles GET /redis/{instanceID}/* where the wildcard is the
// verb and its arguments, e.g. /redis/abc123/set/foo/bar. Unknown or
// malformed shorthand paths come back as InvalidCommand via the translator.
func (h *Redis) Shorthand(w http.ResponseWriter, r *http.Request) {
	key := apiKey(r)
	if key == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing API key")
		return
	}

	instanceID := chi.URLParam(r, "instanceID")
	rest := chi.URLParam(r, "*")
	// chi hands back the raw path when the request URL carried escapes
	// (RawPath set) and the already-decoded path otherwise; decode only in
	// the former case so values aren't unescaped twice.
	escaped := r.URL.RawPath != ""

	reply, gerr := h.dispatcher.Dispatch(r.Context(), key, instanceID, func() (*command.Request, error) {
		return command.TranslatePath(h.policy, instanceID, rest, escaped)
	})
	if gerr != nil {
		response.WriteError(w, gerr.HTTPStatus(), gerr.Message)
		return
	}
	response.WriteData(w, response.Convert(reply))
}

// Command handles POST /redis/{instanceID} with body
// {"command": ["SET", "key", "value"]}. The JSON form is the binary-safe
// escape hatch for values the path shorthand cannot carry.
func (h *Redis) Command(w http.ResponseWriter, r *http.Request) {
	key := apiKey(r)
	if key == "" {
		response.WriteError(w, http.StatusUnauthorized, "missing API key")
		return
	}

	instanceID := chi.URLParam(r, "instanceID")

	reply, gerr := h.dispatcher.Dispatch(r.Context(), key, instanceID, func() (*command.Request, error) {
		return command.TranslateJSON(h.policy, instanceID, r.Body)
	})
	if gerr != nil {
		response.WriteError(w, gerr.HTTPStatus(), gerr.Message)
		return
	}
	response.WriteData(w, response.Convert(reply))
}
