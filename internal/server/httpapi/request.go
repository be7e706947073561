package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

// clientInfo resolves where the request came from. The TCP peer is the
// source unless it is a trusted proxy; then X-Forwarded-For is walked from
// the right and the first hop outside the trusted set is the client.
func (s *Server) clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{SourceAddress: s.sourceAddress(r), UserAgent: r.UserAgent()}
}

func (s *Server) sourceAddress(r *http.Request) string {
	client := remoteHost(r.RemoteAddr)
	if !s.trustedProxy(client) {
		return client
	}

	hops := forwardedFor(r.Header)
	for i := len(hops) - 1; i >= 0; i-- {
		// stop at a hop nobody trusted could have written
		if _, err := netip.ParseAddr(hops[i]); err != nil {
			break
		}
		client = hops[i]
		if !s.trustedProxy(client) {
			break
		}
	}
	return client
}

func (s *Server) trustedProxy(host string) bool {
	if len(s.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// forwardedFor flattens every X-Forwarded-For line into hops, oldest first.
func forwardedFor(h http.Header) []string {
	var hops []string
	for _, line := range h.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(line, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}
	return hops
}

// bearerToken reads the Authorization header, falling back to the session
// cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		if len(h) > len(common.BearerPrefix) && strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
			return strings.TrimSpace(h[len(common.BearerPrefix):])
		}
		return ""
	}
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(common.ErrInvalidInput, err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service's error taxonomy onto HTTP. Anything outside
// it is reported as a bare internal error.
func writeError(w http.ResponseWriter, err error) {
	var locked *common.LockedError
	if errors.As(err, &locked) && locked.RetryAfter > 0 {
		// whole seconds, rounded up so a client never retries too early
		secs := (locked.RetryAfter + time.Second - 1) / time.Second
		w.Header().Set("Retry-After", strconv.FormatInt(int64(secs), 10))
	}
	status, msg := statusFor(err)
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, common.ErrInvalidInput.Error()
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, common.ErrDuplicateEmail.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusUnauthorized, common.ErrAccountLocked.Error()
	case errors.Is(err, common.ErrAccountDisabled):
		return http.StatusUnauthorized, common.ErrAccountDisabled.Error()
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, common.ErrRateLimited.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}
