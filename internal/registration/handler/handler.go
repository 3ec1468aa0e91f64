package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"regform/internal/platform/metrics"
	"regform/internal/platform/middleware"
	"regform/internal/platform/ratelimit"
	"regform/internal/registration/form"
	"regform/internal/registration/models"
	"regform/internal/registration/service"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/httputil"
	"regform/pkg/platform/middleware/metadata"
	"regform/pkg/platform/middleware/requesttime"
	"regform/pkg/platform/sentinel"
)

// Service defines the registration operations the HTTP adapter drives.
type Service interface {
	Input(ctx context.Context, f service.Form, id models.FieldID, value string) error
	Blur(ctx context.Context, f service.Form, id models.FieldID) (models.ValidationOutcome, bool, error)
	SelectFile(ctx context.Context, f service.Form, file *models.FileDescriptor) upload.Decision
	Submit(ctx context.Context, f service.Form) (models.SubmissionResult, error)
	KeyPress(ctx context.Context, f service.Form, key service.KeyEvent) (models.SubmissionResult, bool, error)
	ListRecords(ctx context.Context) ([]models.RegistrationRecord, error)
}

// Sessions holds live forms.
type Sessions interface {
	Create() *form.Form
	Get(id string) (*form.Form, error)
	Delete(id string)
	Count() int
}

// HealthCheck pings one backing dependency.
type HealthCheck func(ctx context.Context) error

// Handler serves the registration form API.
type Handler struct {
	logger         *slog.Logger
	service        Service
	sessions       Sessions
	metrics        *metrics.Metrics
	checks         map[string]HealthCheck
	requestTimeout time.Duration
	maxUploadBytes int64
	limiter        *ratelimit.Limiter
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithHealthCheck adds a named check to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// WithMaxUploadBytes caps how much of a multipart photo body is read. Use
// the upload guard's MaxBodyBytes so a cut-off photo is still over its limit.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithRateLimiter caps form creation per client IP.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a registration Handler.
func New(svc Service, sessions Sessions, opts ...Option) *Handler {
	h := &Handler{
		logger:         slog.Default(),
		service:        svc,
		sessions:       sessions,
		checks:         make(map[string]HealthCheck),
		requestTimeout: 30 * time.Second,
		maxUploadBytes: upload.MaxBodyBytes(upload.DefaultMaxMB),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(metadata.ClientMetadata)
	api.Use(requesttime.Middleware)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(h.requestTimeout))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.LatencyMiddleware(h.metrics))

	api.With(ratelimit.Middleware(h.limiter, h.logger)).Post("/forms", h.handleCreateForm)
	api.Route("/forms/{id}", func(fr chi.Router) {
		fr.Get("/", h.handleGetForm)
		fr.Delete("/", h.handleDeleteForm)
		fr.Put("/fields/{field}", h.handleInput)
		fr.Post("/fields/{field}/blur", h.handleBlur)
		fr.Post("/fields/{field}/visibility", h.handleToggleVisibility)
		fr.Post("/photo", h.handleSelectPhoto)
		fr.Post("/submit", h.handleSubmit)
		fr.Post("/keys", h.handleKeyPress)
		fr.Post("/scroll", h.handleScroll)
		fr.Delete("/alert", h.handleDismissAlert)
	})
	api.Post("/strength", h.handleStrength)
	api.Get("/registrations", h.handleListRecords)
	api.Get("/healthz", h.handleHealth)

	r.Mount("/", api)
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	f := h.sessions.Create()
	h.reportActiveForms()
	h.logger.InfoContext(r.Context(), "form opened",
		"form_id", f.ID(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
	httputil.WriteJSON(w, http.StatusCreated, f.State())
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.State())
}

func (h *Handler) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	h.sessions.Delete(f.ID())
	h.reportActiveForms()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}

	var req fieldInputRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	id := models.FieldID(chi.URLParam(r, "field"))
	if err := h.service.Input(ctx, f, id, req.resolve()); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.State())
}

func (h *Handler) handleBlur(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	id := models.FieldID(chi.URLParam(r, "field"))
	outcome, applied, err := h.service.Blur(r.Context(), f, id)
	if err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	resp := blurResponse{Applied: applied, State: f.State()}
	if applied {
		resp.Outcome = &outcome
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleToggleVisibility(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	id := models.FieldID(chi.URLParam(r, "field"))
	var toggled bool
	f.Do(func() { _, toggled = f.ToggleVisibility(id) })
	if !toggled {
		h.writeBadRequest(w, r, dErrors.New(dErrors.CodeBadRequest, "field "+string(id)+" has no visibility toggle"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.State())
}

func (h *Handler) handleSelectPhoto(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	file, err := h.readPhoto(w, r)
	if err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	decision := h.service.SelectFile(r.Context(), f, file)
	httputil.WriteJSON(w, http.StatusOK, photoResponse{
		Accepted: !decision.Rejected(),
		Alert:    decision.Alert,
		Display:  decision.Display,
		State:    f.State(),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	result, err := h.service.Submit(r.Context(), f)
	if err != nil {
		h.writeCancelled(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitResponse{Result: result, State: f.State()})
}

func (h *Handler) handleKeyPress(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	var key service.KeyEvent
	if err := httputil.DecodeJSON(r, &key); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	result, submitted, err := h.service.KeyPress(r.Context(), f, key)
	if err != nil {
		h.writeCancelled(w, r, err)
		return
	}
	resp := keyResponse{Submitted: submitted, State: f.State()}
	if submitted {
		resp.Result = &result
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleScroll(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	var req scrollRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	f.Do(func() { f.ScrollTo(req.Y) })
	httputil.WriteJSON(w, http.StatusOK, f.State())
}

func (h *Handler) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookupForm(w, r)
	if !ok {
		return
	}
	f.Do(f.DismissAlert)
	httputil.WriteJSON(w, http.StatusOK, f.State())
}

func (h *Handler) handleStrength(w http.ResponseWriter, r *http.Request) {
	var req strengthRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeBadRequest(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, strength.Evaluate(req.Password))
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.service.ListRecords(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list registrations",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{Records: records, Count: len(records)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

// lookupForm resolves {id}; on failure it has already written the response.
func (h *Handler) lookupForm(w http.ResponseWriter, r *http.Request) (*form.Form, bool) {
	id := chi.URLParam(r, "id")
	f, err := h.sessions.Get(id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "form not found"))
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "failed to load form",
			"form_id", id,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form"))
		return nil, false
	}
	return f, true
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "invalid request",
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		err = dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	httputil.WriteError(w, err)
}

func (h *Handler) writeCancelled(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "request abandoned",
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "request cancelled"))
}

func (h *Handler) reportActiveForms() {
	if h.metrics != nil {
		h.metrics.SetActiveForms(h.sessions.Count())
	}
}
