package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appjobs "github.com/AliNMackie/cofound-platform/internal/application/jobs"
	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
	"github.com/AliNMackie/cofound-platform/internal/domain/firewall"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
	"github.com/AliNMackie/cofound-platform/internal/middleware"
)

type Options struct {
	CORSOrigins       []string
	RateLimitCapacity int
	RateLimitRefill   int
	Health            map[string]middleware.HealthChecker
}

type Router struct {
	jobsSvc  *appjobs.Service
	verifier auth.Verifier
}

func NewRouter(jobsSvc *appjobs.Service, verifier auth.Verifier, opts Options) http.Handler {
	r := &Router{jobsSvc: jobsSvc, verifier: verifier}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/metrics", middleware.MetricsHandler)

	capacity, refill := opts.RateLimitCapacity, opts.RateLimitRefill
	if capacity <= 0 {
		capacity = 30
	}
	if refill <= 0 {
		refill = 10
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
		rt.Use(middleware.BearerAuth(r.verifier))
		rt.Use(middleware.RateLimitMiddleware(capacity, refill))

		rt.Post("/analyze", r.wrap(r.handleSubmit))
		rt.Get("/jobs/{id}", r.wrap(r.handleStatus))
		rt.Get("/jobs/{id}/events", r.wrap(r.handleEvents))
	})

	mux.Post("/internal/tasks/process", r.handleDelivery)

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, auth.ErrAuthMissing), errors.Is(err, auth.ErrAuthInvalid):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			case errors.Is(err, auth.ErrDeliveryUntrusted):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, domain.ErrValidation):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case retryable(err):
				http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}
	}
}

// retryable covers every dependency failure the dispatch queue should see as
// a negative acknowledgement.
func retryable(err error) bool {
	return domain.Retryable(err) || errors.Is(err, firewall.ErrClassifierUnavailable)
}

// POST /v1/analyze
// Accepts the submission and returns immediately; the result arrives
// asynchronously via the dispatch queue.
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	scope, err := middleware.ScopeFromContext(req.Context())
	if err != nil {
		return auth.ErrAuthInvalid
	}

	var body struct {
		ContractText string `json:"contract_text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	job, err := r.jobsSvc.Submit(req.Context(), appjobs.SubmitCommand{
		Tenant:       scope,
		ContractText: body.ContractText,
	})
	if err != nil {
		return err
	}
	middleware.IncrementJobsSubmitted()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"job_id": job.ID,
		"status": job.State,
	})
}

// GET /v1/jobs/{id}
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	scope, err := middleware.ScopeFromContext(req.Context())
	if err != nil {
		return auth.ErrAuthInvalid
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		// Shape-identical to a missing job so malformed probes learn nothing.
		return domain.ErrNotFound
	}

	job, err := r.jobsSvc.Status(req.Context(), scope, domain.JobID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(jobView(job))
}

// GET /v1/jobs/{id}/events?limit=20
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	scope, err := middleware.ScopeFromContext(req.Context())
	if err != nil {
		return auth.ErrAuthInvalid
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateJobID(id); err != nil {
		return domain.ErrNotFound
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	events, err := r.jobsSvc.Events(req.Context(), scope, domain.JobID(id), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(events)
}

// POST /internal/tasks/process
// Delivery callback from the dispatch queue. The delivery credential is
// verified before the body is read or any job data is touched. The response
// status is the acknowledgement protocol: 2xx stops redelivery, 503 asks the
// queue to redeliver with backoff.
func (r *Router) handleDelivery(w http.ResponseWriter, req *http.Request) {
	middleware.IncrementDeliveries()

	raw, err := middleware.BearerToken(req)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := r.verifier.VerifyDelivery(req.Context(), raw); err != nil {
		middleware.SecurityEvent("delivery_untrusted", err.Error())
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var ref domain.Ref
	if err := json.NewDecoder(req.Body).Decode(&ref); err != nil {
		// Malformed bodies can never succeed; acknowledge so the queue drops them.
		writeAck(w, "dropped")
		return
	}
	if middleware.ValidateTenantID(string(ref.Tenant)) != nil || middleware.ValidateJobID(string(ref.JobID)) != nil {
		writeAck(w, "dropped")
		return
	}

	job, err := r.jobsSvc.Process(req.Context(), ref)
	switch {
	case err == nil:
		recordOutcome(job)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "state": job.State})
	case errors.Is(err, domain.ErrNotFound):
		// Unknown job: acknowledge to stop pointless redelivery.
		writeAck(w, "dropped")
	case retryable(err):
		middleware.IncrementDeliveriesNacked()
		http.Error(w, "retry later", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeAck(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": status})
}

func recordOutcome(job *domain.Job) {
	switch job.State {
	case domain.StateCompleted:
		middleware.IncrementJobsCompleted()
	case domain.StateBlocked:
		middleware.IncrementJobsBlocked()
		middleware.IncrementFirewallBlocks()
	case domain.StateFailed:
		middleware.IncrementJobsFailed()
	}
}

// jobView shapes the API response: the raw result document is inlined when it
// is valid JSON, and internal firewall fields stay summarized.
func jobView(j *domain.Job) map[string]any {
	v := map[string]any{
		"id":         j.ID,
		"state":      j.State,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.Result != "" {
		if json.Valid([]byte(j.Result)) {
			v["result"] = json.RawMessage(j.Result)
		} else {
			v["result"] = j.Result
		}
	}
	if j.FailureReason != "" {
		v["failure_reason"] = j.FailureReason
	}
	if j.BlockReason != "" {
		v["block_reason"] = j.BlockReason
	}
	return v
}
