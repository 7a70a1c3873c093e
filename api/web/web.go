package web

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

type Middleware func(Handler) Handler

func WrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h := mw[i]
		if h != nil {
			handler = h(handler)
		}
	}

	return handler
}

// Result is the envelope of every successful response.
type Result struct {
	Error bool `json:"error"`
	Data  any  `json:"data,omitempty"`
}

// OK responds 200 with data wrapped in a Result.
func OK(ctx context.Context, w http.ResponseWriter, data any) error {
	return Respond(ctx, w, Result{Data: data}, http.StatusOK)
}

func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cannot marshal response data: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(jsonData); err != nil {
		return fmt.Errorf("cannot write response data to response writer: %w", err)
	}

	return nil
}

const maxBodyBytes = 1048576

func Decode(w http.ResponseWriter, r *http.Request, val any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return err
	}

	return nil
}

// IsForm reports whether the request body is url-encoded or multipart form data.
func IsForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return ct == "application/x-www-form-urlencoded" || strings.HasPrefix(ct, "multipart/")
}

// Fields reads the named keys from a form body, or from a flat JSON object
// of strings when the body is not a form.
func Fields(w http.ResponseWriter, r *http.Request, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))

	if IsForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && err != http.ErrNotMultipart {
			return nil, err
		}
		for _, k := range keys {
			out[k] = strings.TrimSpace(r.FormValue(k))
		}
		return out, nil
	}

	var raw map[string]json.RawMessage
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// Numbers are accepted and kept verbatim.
			s = string(v)
		}
		out[k] = strings.TrimSpace(s)
	}
	return out, nil
}

func Param(r *http.Request, key string) string {
	m := mux.Vars(r)
	return m[key]
}
