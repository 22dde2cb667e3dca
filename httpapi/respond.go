package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

const maxBodyBytes = 1 << 20

// handlerFunc is an http.HandlerFunc that may fail. A returned error is
// rendered by [Server.handle].
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type okBody struct {
	OK bool `json:"ok"`
}

var ok = okBody{OK: true}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handle adapts f and renders its error.
func (s *Server) handle(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		herr := asError(err)
		if herr.Status >= http.StatusInternalServerError {
			log.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("httpapi: request failed")
		}
		writeJSON(w, herr.Status, herr.body(s.opts.Production))
	}
}

// decodeJSON reads a JSON object from r into v. Oversized or malformed
// bodies are a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return NewError(http.StatusBadRequest, "Missing request body", err)
		}
		return NewError(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}
