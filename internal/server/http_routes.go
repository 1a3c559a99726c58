package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDHeader carries the per-request identifier on every response.
const RequestIDHeader = "X-Request-ID"

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	protect := func(operation string, h apiHandler) http.HandlerFunc {
		return s.rateLimitMiddleware(s.authMiddleware(s.requestSizeLimitMiddleware(s.traced(operation, h))))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("GET /personas", protect("personas.list", s.listPersonas))
	mux.HandleFunc("POST /personas", protect("personas.upsert", s.upsertPersona))
	mux.HandleFunc("POST /personas/extract", protect("personas.extract", s.extractPersona))
	mux.HandleFunc("GET /personas/{name}", protect("personas.get", s.getPersona))
	mux.HandleFunc("DELETE /personas/{name}", protect("personas.delete", s.deletePersona))

	mux.HandleFunc("GET /questions", protect("questions.get", s.getQuestions))
	mux.HandleFunc("PUT /questions", protect("questions.replace", s.putQuestions))
	mux.HandleFunc("POST /questions/extract", protect("questions.extract", s.extractQuestions))

	mux.HandleFunc("POST /simulate", protect("simulate", s.simulate))
	mux.HandleFunc("POST /analyze", protect("analyze", s.analyze))
	mux.HandleFunc("POST /compare", protect("compare", s.compare))
	mux.HandleFunc("POST /framework", protect("framework", s.framework))
	mux.HandleFunc("GET /export/{persona}", protect("export", s.exportDocument))

	return mux
}

// Handler returns the routed API with request IDs and HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return s.Observability.HTTPMiddleware()(requestIDMiddleware(s.setupRoutes()))
}

// requestIDMiddleware keeps a caller-supplied X-Request-ID or assigns a uuid.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, r, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, r, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next(w, r)
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
