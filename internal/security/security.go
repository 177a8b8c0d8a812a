package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrOriginDenied  = errors.New("origin denied")
	ErrRemoteExposed = errors.New("web front-end is reachable beyond loopback without an origin allow-list")
)

// Guard rejects cross-site form posts to the web front-end.
type Guard struct {
	allowedOrigins map[string]struct{}
}

func New(allowedOrigins []string) *Guard {
	g := &Guard{allowedOrigins: make(map[string]struct{})}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		g.allowedOrigins[trimmed] = struct{}{}
	}
	return g
}

// CheckOrigin accepts requests without an Origin header, same-origin
// requests, and origins on the allow-list. Browsers that omit Origin but
// report a cross-site fetch are refused.
func (g *Guard) CheckOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if strings.EqualFold(strings.TrimSpace(r.Header.Get("Sec-Fetch-Site")), "cross-site") {
			return fmt.Errorf("%w: cross-site request", ErrOriginDenied)
		}
		return nil
	}
	if _, ok := g.allowedOrigins[origin]; ok {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%w: invalid origin", ErrOriginDenied)
	}

	scheme := "http"
	if requestUsesTLS(r) {
		scheme = "https"
	}
	if parsed.Scheme != scheme || parsed.Host != r.Host {
		return fmt.Errorf("%w: expected %s://%s, got %s", ErrOriginDenied, scheme, r.Host, origin)
	}
	return nil
}

// Middleware applies CheckOrigin to every request that changes state.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if err := g.CheckOrigin(r); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateRemoteExposure reports ErrRemoteExposed when listenAddr is
// reachable from other hosts and no origins were configured. The board has
// no login, so anyone who can reach it can sign people up.
func ValidateRemoteExposure(listenAddr string, allowedOrigins []string) error {
	if !ExposesBeyondLoopback(listenAddr) {
		return nil
	}
	if !HasAllowedOrigins(allowedOrigins) {
		return ErrRemoteExposed
	}
	return nil
}

// HasAllowedOrigins reports whether at least one non-empty origin is configured.
func HasAllowedOrigins(origins []string) bool {
	for _, origin := range origins {
		if strings.TrimSpace(origin) != "" {
			return true
		}
	}
	return false
}

// ExposesBeyondLoopback reports whether listenAddr is reachable from outside the host.
func ExposesBeyondLoopback(listenAddr string) bool {
	host := listenHost(listenAddr)
	if host == "" {
		return true
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func listenHost(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" || strings.HasPrefix(addr, ":") {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return strings.Trim(strings.TrimSpace(host), "[]")
	}
	return strings.Trim(addr, "[]")
}

func requestUsesTLS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
