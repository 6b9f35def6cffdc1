package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dshills/pagestorm/internal/docio"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Err(err, "encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Err(err, "request failed")
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}

// requestFormat picks the body format from the format query parameter,
// then the Content-Type header.
func requestFormat(r *http.Request) (docio.Format, error) {
	if q := r.URL.Query().Get("format"); q != "" {
		return docio.ParseFormat(q)
	}
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(strings.ToLower(ct)) {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return docio.FormatYAML, nil
	case "application/cbor":
		return docio.FormatCBOR, nil
	}
	return docio.FormatJSON, nil
}

// responseFormat picks the response format from the format query
// parameter, then the Accept header.
func responseFormat(r *http.Request) (docio.Format, error) {
	if q := r.URL.Query().Get("format"); q != "" {
		return docio.ParseFormat(q)
	}
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "yaml"):
		return docio.FormatYAML, nil
	case strings.Contains(accept, "cbor"):
		return docio.FormatCBOR, nil
	}
	return docio.FormatJSON, nil
}
