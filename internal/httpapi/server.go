package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/sjson"

	"gatewayd/internal/gateway"
	"gatewayd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Handle(ctx context.Context, endpoint string, payload []byte) (*gateway.Result, error)
	Health(ctx context.Context) types.HealthResponse
	Ready(ctx context.Context) bool
	Stats() types.StatsResponse
	Performance() types.PerformanceResponse
	CacheStats() types.CacheStatsResponse
}

// NewMux builds the gateway's HTTP surface: the two proxy endpoints, the
// diagnostic snapshots, health probes and the Prometheus scrape handler.
// Every route carries permissive CORS headers and answers OPTIONS.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/api/chat", proxyHandler(svc, "/api/chat"))
	r.Post("/api/generate", proxyHandler(svc, "/api/generate"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Health(r.Context()))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Stats())
	})

	r.Get("/performance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Performance())
	})

	r.Get("/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.CacheStats())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("backend unreachable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// proxyHandler forwards an opaque JSON payload through the gateway and
// attaches gatewayMetadata to the response.
func proxyHandler(svc Service, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, gateway.ClassClientError, "Content-Type must be application/json", "")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, gateway.ClassClientError, "failed to read request body", "")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		// Join server base context with request context so shutdown
		// cancels in-flight backend work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		res, err := svc.Handle(ctx, endpoint, payload)
		if err != nil {
			// Client disconnect or shutdown: nothing useful to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status, class := statusFor(err)
			var rid string
			if res != nil {
				rid = res.RequestID
			}
			writeJSONError(w, status, class, err.Error(), rid)
			logHandled(r, lvl, res, status, time.Since(start), err)
			return
		}

		out := res.Payload
		if raw, merr := json.Marshal(types.GatewayMetadata{
			RequestID:            res.RequestID,
			ModelUsed:            res.Model,
			ExecutionTimeSeconds: res.Duration.Seconds(),
			CacheHit:             res.CacheHit,
			OptimizationsApplied: res.Optimizations,
		}); merr == nil {
			if merged, serr := sjson.SetRawBytes(out, "gatewayMetadata", raw); serr == nil {
				out = merged
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
		logHandled(r, lvl, res, http.StatusOK, time.Since(start), nil)
	}
}

// statusFor maps the gateway error taxonomy to HTTP statuses.
func statusFor(err error) (int, string) {
	class := gateway.Classify(err)
	switch class {
	case gateway.ClassClientError:
		return http.StatusBadRequest, class
	case gateway.ClassTimeout:
		return http.StatusGatewayTimeout, class
	case gateway.ClassUnavailable:
		return http.StatusServiceUnavailable, class
	case gateway.ClassBackendError:
		return http.StatusBadGateway, class
	default:
		return http.StatusInternalServerError, class
	}
}

func logHandled(r *http.Request, lvl LogLevel, res *gateway.Result, status int, dur time.Duration, err error) {
	if lvl < LevelInfo || zlog == nil || res == nil {
		return
	}
	z := zlog.Info().
		Str("path", r.URL.Path).
		Int("status", status).
		Str("request_id", res.RequestID).
		Str("model", res.Model).
		Bool("cache_hit", res.CacheHit).
		Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("http_request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("request handled")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, gateway.ClassInternal, "failed to encode response", "")
	}
}
