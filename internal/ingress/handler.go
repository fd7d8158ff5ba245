// Package ingress implements the IngressGateway of spec.md §4.6: notification
// submission, out-of-band user registration, external status ingestion, and
// liveness — built on the teacher's wb-go/wbf/ginext handler/router pattern.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/bus"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/internal/respond"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
)

// publisher is the subset of bus.Bus this handler depends on.
type publisher interface {
	Publish(routingKey string, payload interface{}, opts bus.PublishOptions, strategy retry.Strategy) error
}

// store is the subset of statusstore.Store this handler depends on.
type store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Handler implements the IngressGateway endpoints.
type Handler struct {
	store     store
	bus       publisher
	validator *validator.Validate
	apiKey    string
	idempTTL  time.Duration
	statusTTL time.Duration
	strategy  retry.Strategy
}

// Config bundles Handler's dependencies.
type Config struct {
	Store     store
	Bus       publisher
	Validator *validator.Validate
	APIKey    string
	IdempTTL  time.Duration
	StatusTTL time.Duration
	Strategy  retry.Strategy
}

// NewHandler builds a Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:     cfg.Store,
		bus:       cfg.Bus,
		validator: cfg.Validator,
		apiKey:    cfg.APIKey,
		idempTTL:  cfg.IdempTTL,
		statusTTL: cfg.StatusTTL,
		strategy:  cfg.Strategy,
	}
}

// Authenticate enforces the x-api-key header, per spec.md §4.6 step 1.
func (h *Handler) Authenticate(c *ginext.Context) {
	if h.apiKey == "" {
		return
	}

	if c.GetHeader("x-api-key") != h.apiKey {
		respond.Fail(c.Writer, http.StatusUnauthorized, fmt.Errorf("invalid api key"))
		c.Abort()
		return
	}
}

func idempKey(requestID string) string {
	return "idemp:" + requestID
}

// Create implements POST /api/v1/notifications/, the notification
// submission algorithm of spec.md §4.6 steps 2-6.
func (h *Handler) Create(c *ginext.Context) {
	var req model.NotificationRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("ingress: failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("ingress: request body validation failed")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	ctx := c.Request.Context()
	key := idempKey(req.RequestID)

	// Step 2-3: read-then-overwrite admission check. This intentionally
	// races under concurrent first submissions of the same request_id — the
	// worker-side IdempotencyCheck is the authoritative guard (spec.md §4.6
	// "Observation", §9).
	if existing, err := h.store.Get(ctx, key); err == nil {
		respond.OK(c.Writer, json.RawMessage(existing), "duplicate_request")
		return
	} else if err != statusstore.ErrAbsent {
		zlog.Logger.Error().Err(err).Str("request_id", req.RequestID).Msg("ingress: idempotency lookup failed")
	}

	pending := model.StatusRecord{Status: model.StatusPending}
	if err := h.store.Put(ctx, key, pending, h.idempTTL); err != nil {
		zlog.Logger.Error().Err(err).Str("request_id", req.RequestID).Msg("ingress: failed to write pending record")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	enqueued := model.EnqueuedMessage{
		NotificationRequest: req,
		CreatedAt:           time.Now().UTC(),
		Attempts:            0,
	}

	opts := bus.PublishOptions{Priority: req.Priority, Persistent: true}
	if err := h.bus.Publish(string(req.NotificationType), enqueued, opts, h.strategy); err != nil {
		zlog.Logger.Error().Err(err).Str("request_id", req.RequestID).Msg("ingress: publish failed")

		errMsg := err.Error()
		failed := model.StatusRecord{Status: model.StatusFailed, Error: &errMsg}
		if putErr := h.store.Put(ctx, key, failed, h.idempTTL); putErr != nil {
			zlog.Logger.Error().Err(putErr).Msg("ingress: failed to overwrite record with failure status")
		}

		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, map[string]string{"request_id": req.RequestID})
}

// CreateUser implements POST /api/v1/users/, an out-of-band producer with
// no idempotency guard, per spec.md §4.6.
func (h *Handler) CreateUser(c *ginext.Context) {
	var payload model.UserPayload

	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		zlog.Logger.Error().Err(err).Msg("ingress: failed to decode user payload")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(payload); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	opts := bus.PublishOptions{Persistent: true}
	if err := h.bus.Publish(bus.RoutingKeyUserCreated, payload, opts, h.strategy); err != nil {
		// Fire-and-forget from the gateway's viewpoint, per spec.md §4.6 —
		// logged, not surfaced as a failed submission.
		zlog.Logger.Error().Err(err).Str("user_id", payload.UserID).Msg("ingress: user.created publish failed")
	}

	respond.Created(c.Writer, map[string]string{"user_id": payload.UserID})
}

var validChannels = map[string]bool{"email": true, "push": true}
var validCallbackStatus = map[model.Status]bool{
	model.StatusDelivered: true, model.StatusPending: true, model.StatusFailed: true,
}

// IngestStatus implements POST /api/v1/:channel/status/, per spec.md §4.6.
func (h *Handler) IngestStatus(c *ginext.Context) {
	channel := c.Param("channel")
	if !validChannels[channel] {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("unknown channel %q", channel))
		return
	}

	var cb model.StatusCallback
	if err := json.NewDecoder(c.Request.Body).Decode(&cb); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(cb); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	if !validCallbackStatus[cb.Status] {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("unknown status %q", cb.Status))
		return
	}

	key := "status:" + cb.NotificationID
	rec := model.StatusRecord{NotificationID: cb.NotificationID, Status: cb.Status}
	if cb.Error != "" {
		rec.Error = &cb.Error
	}

	if err := h.store.Put(c.Request.Context(), key, rec, h.statusTTL); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", cb.NotificationID).Msg("ingress: failed to write status callback")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, rec, "status recorded")
}

// Health implements GET /health.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c.Writer, map[string]string{"status": "ok"}, "healthy")
}
