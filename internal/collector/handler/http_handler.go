package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"

	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

// Validator resolves an API key and applies the project rate limit.
type Validator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) (string, error)
	CheckRateLimit(ctx context.Context, projectID string) bool
}

// Sink receives every accepted report.
type Sink interface {
	Produce(ctx context.Context, r *enricher.EnrichedReport) error
}

// transparent 1x1 GIF returned to image uploads
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

var (
	errNoAPIKey = errors.New("missing apiKey")
	errNoType   = errors.New("missing type")
)

type HTTPHandler struct {
	validator Validator
	enricher  *enricher.Enricher
	sinks     []Sink
	maxBody   int64
	parsers   fastjson.ParserPool
}

func NewHTTPHandler(v Validator, e *enricher.Enricher, maxBody int64, sinks ...Sink) *HTTPHandler {
	return &HTTPHandler{
		validator: v,
		enricher:  e,
		sinks:     sinks,
		maxBody:   maxBody,
	}
}

// NewRouter mounts the collector routes behind the given middleware.
func NewRouter(h *HTTPHandler, mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mws...)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(CORSMiddleware)

	r.Get("/health", HealthCheck)
	r.Post("/report", h.HandleReport)
	r.Get("/report", h.HandlePixel)
	return r
}

type ReportResponse struct {
	Success bool     `json:"success"`
	EventID string   `json:"event_id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// HandleReport accepts a report posted as JSON, or as text/plain by
// navigator.sendBeacon.
func (h *HTTPHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(h.limit(w, r.Body))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ReportResponse{Errors: []string{"Failed to read body"}})
		return
	}

	id, status, err := h.ingest(r, body)
	if err != nil {
		writeJSON(w, status, ReportResponse{Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Success: true, EventID: id})
}

// HandlePixel accepts a report carried in the data query parameter. It
// always answers with the pixel so the page never sees a broken image.
func (h *HTTPHandler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	if int64(len(data)) > h.maxBody && h.maxBody > 0 {
		log.Warn().Int("size", len(data)).Msg("Image report too large")
	} else if _, _, err := h.ingest(r, []byte(data)); err != nil {
		log.Debug().Err(err).Msg("Image report rejected")
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(pixel)
}

func (h *HTTPHandler) ingest(r *http.Request, body []byte) (string, int, error) {
	apiKey, typ, err := h.peek(body)
	if err != nil {
		return "", http.StatusBadRequest, err
	}

	projectID, err := h.validator.ValidateAPIKey(r.Context(), apiKey)
	if err != nil {
		return "", http.StatusUnauthorized, errors.New("Invalid API key")
	}

	if !h.validator.CheckRateLimit(r.Context(), projectID) {
		return "", http.StatusTooManyRequests, errors.New("Rate limit exceeded")
	}

	var report event.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return "", http.StatusBadRequest, errors.New("Invalid JSON")
	}

	id := uuid.New().String()
	enriched := h.enricher.Enrich(report, id, projectID, r.Header.Get("User-Agent"), clientIP(r))

	for _, s := range h.sinks {
		if err := s.Produce(r.Context(), enriched); err != nil {
			log.Error().Err(err).Str("project_id", projectID).Str("type", typ).Msg("Failed to produce report")
			return "", http.StatusInternalServerError, err
		}
	}

	log.Debug().Str("project_id", projectID).Str("type", typ).Str("event_id", id).Msg("Report accepted")
	return id, http.StatusOK, nil
}

// peek reads the routing fields without decoding the whole report.
func (h *HTTPHandler) peek(body []byte) (apiKey, typ string, err error) {
	p := h.parsers.Get()
	defer h.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return "", "", errors.New("Invalid JSON")
	}
	apiKey = string(v.GetStringBytes("apiKey"))
	if apiKey == "" {
		return "", "", errNoAPIKey
	}
	typ = string(v.GetStringBytes("type"))
	if typ == "" {
		return "", "", errNoType
	}
	return apiKey, typ, nil
}

func (h *HTTPHandler) limit(w http.ResponseWriter, body io.ReadCloser) io.Reader {
	if h.maxBody <= 0 {
		return body
	}
	return http.MaxBytesReader(w, body, h.maxBody)
}

// clientIP prefers proxy headers, then the connection address.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
