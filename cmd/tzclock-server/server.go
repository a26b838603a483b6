package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/tzclock/pkg/clock"
	"github.com/codeGROOVE-dev/tzclock/pkg/geo"
	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzlookup"
)

const (
	requestsPerMinute = 30
	waitLimit         = 30 * time.Second
	searchTTL         = 12 * time.Hour
)

type rateLimiter struct {
	requests map[string][]time.Time
	limit    int
	mu       sync.Mutex
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{requests: make(map[string][]time.Time), limit: limit}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}
	rl.requests[ip] = append(valid, now)
	return true
}

type searcher interface {
	Search(ctx context.Context, query string) ([]tzlookup.Place, error)
}

type server struct {
	// ctx outlives individual requests so resolutions are not aborted when
	// the client that triggered them disconnects.
	ctx      context.Context
	searcher searcher
	resolver *resolver.Resolver
	ticker   *clock.Ticker
	searches *otter.Cache[string, []byte]
	limiter  *rateLimiter
	logger   *slog.Logger
}

func newServer(ctx context.Context, s searcher, res *resolver.Resolver, ticker *clock.Ticker, logger *slog.Logger) *server {
	return &server{
		ctx:      ctx,
		searcher: s,
		resolver: res,
		ticker:   ticker,
		searches: otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](searchTTL),
		}),
		limiter: newRateLimiter(requestsPerMinute),
		logger:  logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/v1/clock", s.handleClock)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("PUT /api/v1/format", s.handleFormat)
	return s.wrap(mux)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"stack", string(buf))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		}

		if r.Method != http.MethodGet && !s.limiter.allow(clientIP(r)) {
			s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", clientIP(r))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

type snapshotResponse struct {
	Seq      uint64 `json:"seq"`
	Status   string `json:"status"`
	Zone     string `json:"zone,omitempty"`
	Label    string `json:"label,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

func toResponse(snap resolver.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		Seq:      snap.Seq,
		Status:   snap.Status.String(),
		Zone:     snap.Zone,
		Label:    snap.Label,
		Fallback: snap.Fallback,
	}
	if snap.Cause != nil {
		resp.Cause = snap.Cause.Error()
	}
	return resp
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")

	var req struct {
		Lat   *float64 `json:"lat"`
		Lon   *float64 `json:"lon"`
		Label string   `json:"label"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		s.logger.Warn("Invalid request body", "request_id", requestID, "error", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}
	coord := geo.Coordinate{Latitude: *req.Lat, Longitude: *req.Lon}
	if err := coord.Validate(); err != nil {
		s.logger.Warn("Invalid coordinate", "request_id", requestID, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h := s.resolver.Resolve(s.ctx, coord, req.Label)
	s.logger.Info("Resolution started",
		"request_id", requestID,
		"seq", h.Seq(),
		"lat", coord.Latitude,
		"lon", coord.Longitude,
		"client_ip", clientIP(r))

	if r.URL.Query().Get("wait") == "" {
		s.writeJSON(w, http.StatusAccepted, map[string]uint64{"seq": h.Seq()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), waitLimit)
	defer cancel()
	snap, err := h.Wait(ctx)
	if err != nil {
		status := http.StatusGatewayTimeout
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		http.Error(w, "Resolution still in progress", status)
		return
	}
	s.logger.Info("Resolution completed",
		"request_id", requestID,
		"seq", snap.Seq,
		"zone", snap.Zone,
		"fallback", snap.Fallback,
		"committed", h.Committed(),
		"duration_ms", time.Since(start).Milliseconds())
	s.writeJSON(w, http.StatusOK, toResponse(snap))
}

func (s *server) handleClock(w http.ResponseWriter, _ *http.Request) {
	f, ok := s.ticker.Last()
	if !ok {
		f = s.ticker.Tick()
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < tzlookup.MinQueryLength {
		s.writeJSON(w, http.StatusOK, []tzlookup.Place{})
		return
	}

	key := strings.ToLower(q)
	if data, ok := s.searches.GetIfPresent(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "memory-hit")
		if _, err := w.Write(data); err != nil {
			s.logger.Error("Failed to write cached response", "request_id", requestID, "error", err)
		}
		return
	}

	places, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("Search failed", "request_id", requestID, "query", q, "error", err)
		http.Error(w, "Search unavailable", http.StatusBadGateway)
		return
	}
	if places == nil {
		places = []tzlookup.Place{}
	}
	data, err := json.Marshal(places)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.searches.Set(key, data)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response", "request_id", requestID, "error", err)
	}
}

func (s *server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hour24 *bool `json:"hour24"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Hour24 == nil {
		http.Error(w, "hour24 is required", http.StatusBadRequest)
		return
	}
	s.ticker.SetHour24(*req.Hour24)
	s.writeJSON(w, http.StatusOK, map[string]bool{"hour24": s.ticker.Hour24()})
}
