package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	gh "github.com/google/go-github/v57/github"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	apptriage "github.com/bryanwahyu/automaton-triage/internal/application/triage"
	domain "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	"github.com/bryanwahyu/automaton-triage/internal/middleware"
)

const (
	maxBodyBytes = 1 << 20 // GitHub payloads cap out well under 1 MiB

	// Replay window for X-GitHub-Delivery ids. GitHub redeliveries beyond
	// ten minutes are answered fresh, which is harmless: the tracker still
	// refuses duplicate task ids.
	deliveryCacheTTL = 10 * time.Minute
)

type Router struct {
	triageSvc  *apptriage.Service
	history    domain.History
	secret     []byte
	logger     *zap.Logger
	deliveries *cache.Cache
}

func NewRouter(triageSvc *apptriage.Service, history domain.History, secret []byte, checkers map[string]middleware.HealthChecker, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		triageSvc:  triageSvc,
		history:    history,
		secret:     secret,
		logger:     logger,
		deliveries: cache.New(deliveryCacheTTL, deliveryCacheTTL),
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"*"},
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(60, 1))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/health/full", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Post("/webhook/github", r.wrap(r.handleWebhook))
	mux.Get("/tasks/latest", r.wrap(r.handleLatestTasks))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.logger.Error("handler error",
				zap.String("path", req.URL.Path),
				zap.Error(err),
			)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /webhook/github
// Verifies the HMAC signature, suppresses delivery replays, and hands the
// event to the triage service. The response never waits on the background
// poller; it reflects submission only.
func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return nil
	}

	if len(r.secret) > 0 {
		sig := req.Header.Get(gh.SHA256SignatureHeader)
		if err := gh.ValidateSignature(sig, body, r.secret); err != nil {
			r.logger.Warn("invalid webhook signature",
				zap.String("ip", middleware.ClientIP(req)),
				zap.Error(err),
			)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return nil
		}
	} else {
		r.logger.Warn("webhook secret not configured, skipping signature verification")
	}

	event := req.Header.Get(gh.EventTypeHeader)
	delivery := req.Header.Get(gh.DeliveryIDHeader)
	r.logger.Info("received event",
		zap.String("event", event),
		zap.String("delivery", delivery),
	)

	if delivery != "" {
		if _, seen := r.deliveries.Get(delivery); seen {
			return writeJSON(w, apptriage.Result{
				Status: apptriage.StatusIgnored,
				Reason: fmt.Sprintf("duplicate delivery: %s", delivery),
			})
		}
		r.deliveries.SetDefault(delivery, struct{}{})
	}

	res, err := r.triageSvc.Process(req.Context(), event, body)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

// GET /tasks/latest?limit=20
func (r *Router) handleLatestTasks(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		http.Error(w, "task history not configured", http.StatusNotFound)
		return nil
	}

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.history.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.RemediationTask{}
	}
	return writeJSON(w, list)
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
