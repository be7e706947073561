package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// rateLimited throttles per source address as resolved by clientInfo. A
// rejected request is still a login attempt and is handed to the service for
// auditing. Limiter failures let the request through.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		client := s.clientInfo(r)

		allowed, err := s.limiter.Allow(r.Context(), client.SourceAddress)
		if err != nil {
			s.logger.Warn(r.Context(), "rate limiter unavailable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, s.svc.RejectRateLimited(r.Context(), peekEmail(r), client))
	})
}

// peekEmail best-effort reads the email field for the audit record.
func peekEmail(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.Email
}
