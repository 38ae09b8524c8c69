package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"

	"scanstation/internal/config"

	"golang.org/x/time/rate"
)

// Auth provides API-key auth and per-key rate limiting for the operator
// endpoints.
type Auth struct {
	cfg      config.APIConfig
	keys     map[string]config.APIClientKey
	limiters *clientLimiters
}

func NewAuth(cfg config.APIConfig) *Auth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &Auth{cfg: cfg, keys: m, limiters: newClientLimiters(cfg.RateLimit)}
}

func (a *Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if !a.checkAuth(r) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
		}

		if a.cfg.RateLimit.RPS > 0 {
			if !a.limiters.allow(a.clientKey(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Auth) checkAuth(r *http.Request) bool {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return false
	}

	// Constant-time comparison over the configured key set.
	for key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

func (a *Auth) headerName() string {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = "x-api-key"
	}
	return header
}

func (a *Auth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

// clientLimiters hands out one token bucket per operator client, keyed by API
// key (or remote host for keyless kiosks). Buckets are created lazily and kept
// for the process lifetime; a station talks to a handful of screens, so the
// map never needs eviction.
type clientLimiters struct {
	limit rate.Limit
	burst int
	m     sync.Map // client key -> *rate.Limiter
}

func newClientLimiters(cfg config.APIRateLimitConfig) *clientLimiters {
	return &clientLimiters{limit: rate.Limit(cfg.RPS), burst: cfg.Burst}
}

func (l *clientLimiters) allow(key string) bool {
	if v, ok := l.m.Load(key); ok {
		return v.(*rate.Limiter).Allow()
	}
	v, _ := l.m.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return v.(*rate.Limiter).Allow()
}
