// Package pipeline implements the per-channel WorkerPipeline state machine
// of spec.md §4.5: decode → idempotency guard → validate recipient → render
// → send-through-breaker → outcome classification → ack/retry/dead-letter.
//
// It generalizes the teacher's internal/rabbitmq/handlers/notification
// (retry-loop HandleMessage) and internal/worker (goroutine-pool Notifier)
// into the full state machine, merged into one type per channel.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/bus"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/internal/render"
)

// Adapter is the channel-specific half of the pipeline: recipient
// validation and the external send. Implemented by internal/pipeline/email
// and internal/pipeline/push.
type Adapter interface {
	// Validate checks the recipient fields in msg.Metadata. A non-nil error
	// classifies as a delivery error (spec.md §4.5 Validating → Failing).
	Validate(msg model.EnqueuedMessage) error
	// Send delivers body to the recipient described by msg.Metadata,
	// through whatever circuit breaker the adapter wraps internally.
	Send(ctx context.Context, msg model.EnqueuedMessage, body string) error
}

// AuditWriter persists a FailedRecord beyond the StatusStore's TTL window
// (internal/audit). Its failure is logged, not propagated — spec.md has no
// invariant tying dead-letter success to the audit trail.
type AuditWriter interface {
	Record(ctx context.Context, rec model.FailedRecord) error
}

// store is the subset of statusstore.Store the pipeline depends on.
type store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	PutIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// publisher is the subset of bus.Bus the pipeline depends on.
type publisher interface {
	Publish(routingKey string, payload interface{}, opts bus.PublishOptions, strategy retry.Strategy) error
}

// Pipeline drives one channel's queue through the state machine.
type Pipeline struct {
	channel     model.Channel
	store       store
	bus         publisher
	adapter     Adapter
	renderer    *render.Renderer
	audit       AuditWriter // may be nil
	maxAttempts int
	statusTTL   time.Duration
	strategy    retry.Strategy
}

// Config bundles Pipeline's dependencies.
type Config struct {
	Channel     model.Channel
	Store       store
	Bus         publisher
	Adapter     Adapter
	Renderer    *render.Renderer
	Audit       AuditWriter
	MaxAttempts int
	StatusTTL   time.Duration
	Strategy    retry.Strategy
}

// New builds a Pipeline for one channel.
func New(cfg Config) *Pipeline {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}

	return &Pipeline{
		channel:     cfg.Channel,
		store:       cfg.Store,
		bus:         cfg.Bus,
		adapter:     cfg.Adapter,
		renderer:    cfg.Renderer,
		audit:       cfg.Audit,
		maxAttempts: cfg.MaxAttempts,
		statusTTL:   cfg.StatusTTL,
		strategy:    cfg.Strategy,
	}
}

func idempotencyKey(channel model.Channel, requestID string) string {
	return fmt.Sprintf("%s:idempotency:%s", channel, requestID)
}

// isTerminal reports whether status is a resolved outcome that a later
// delivery of the same request_id must never reprocess.
func isTerminal(status model.Status) bool {
	return status == model.StatusDelivered || status == model.StatusFailed
}

// Handle runs one delivery of d through the full state machine. It always
// resolves to exactly one ack or nack call (I4) before returning.
func (p *Pipeline) Handle(ctx context.Context, d bus.Delivery) {
	// Decoded
	var msg model.EnqueuedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		zlog.Logger.Error().Err(err).Msg("pipeline: decode failed, ack-and-drop")
		d.Ack()
		return
	}

	if msg.NotificationID == "" {
		msg.NotificationID = uuid.New().String()
	}

	key := idempotencyKey(p.channel, msg.RequestID)

	// IdempotencyCheck: PutIfAbsent is the sole admission primitive, so two
	// concurrent deliveries of the same request_id race on one atomic SETNX
	// rather than a Get-then-Put window (I2). The loser does not return here
	// unconditionally: a record already present in a non-terminal (in-flight
	// retry) state must still be allowed through to Validate/Send, or the
	// retry ladder can never advance past its own processing record.
	processing := model.StatusRecord{NotificationID: msg.NotificationID, Status: model.StatusProcessing}
	accepted, err := p.store.PutIfAbsent(ctx, key, processing, p.statusTTL)
	if err != nil {
		// Infrastructure error: propagate as a delivery error per spec.md §7.
		p.fail(ctx, d, msg, key, fmt.Errorf("write processing status: %w", err))
		return
	}

	if !accepted {
		raw, err := p.store.Get(ctx, key)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: idempotency lookup failed")
		} else {
			var existing model.StatusRecord
			if err := json.Unmarshal(raw, &existing); err == nil && isTerminal(existing.Status) {
				zlog.Logger.Info().Str("request_id", msg.RequestID).Msg("pipeline: duplicate delivery, ack without resend")
				d.Ack()
				return
			}
		}
		// Non-terminal record: this delivery is a retry of a request_id
		// already in flight. Proceed without rewriting the processing record.
	}

	// Validating
	if err := p.adapter.Validate(msg); err != nil {
		p.fail(ctx, d, msg, key, err)
		return
	}

	// Rendering
	body := p.renderer.Render(msg.TemplateCode, msg.Variables)

	// Sending
	if err := p.adapter.Send(ctx, msg, body); err != nil {
		p.fail(ctx, d, msg, key, err)
		return
	}

	// Delivered
	sentAt := nowRFC3339()
	delivered := model.StatusRecord{
		NotificationID: msg.NotificationID,
		Status:         model.StatusDelivered,
		SentAt:         &sentAt,
	}
	if err := p.store.Put(ctx, key, delivered, p.statusTTL); err != nil {
		zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: failed to write delivered status")
	}

	d.Ack()
}

// fail implements the Failing state: increment attempts, then either
// schedule a retry or dead-letter, exactly as spec.md §4.5's table
// describes.
func (p *Pipeline) fail(ctx context.Context, d bus.Delivery, msg model.EnqueuedMessage, key string, cause error) {
	msg.Attempts++ // I3: attempts is monotonically non-decreasing across republishes.

	zlog.Logger.Warn().Err(cause).Str("request_id", msg.RequestID).Int("attempts", msg.Attempts).Msg("pipeline: delivery failed")

	if msg.Attempts >= p.maxAttempts {
		p.deadLetter(ctx, d, msg, key, cause)
		return
	}

	p.retry(ctx, d, msg)
}

// retry schedules an in-process delayed republish and acks the original
// delivery immediately, per spec.md §4.5's ordering constraints: the
// scheduler starts before the ack, and the retried message is a new
// delivery under the same request_id.
func (p *Pipeline) retry(ctx context.Context, d bus.Delivery, msg model.EnqueuedMessage) {
	delay := backoff(msg.Attempts)

	go func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		routingKey := string(p.channel)
		if err := p.bus.Publish(routingKey, msg, publishOptionsFor(msg), p.strategy); err != nil {
			zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: retry republish failed")
		}
	}()

	d.Ack()
}

// deadLetter implements DeadLettering: publish to the failed routing key,
// then write the failed StatusRecord, then ack — in that order (I5).
func (p *Pipeline) deadLetter(ctx context.Context, d bus.Delivery, msg model.EnqueuedMessage, key string, cause error) {
	failedAt := nowRFC3339()
	rec := model.FailedRecord{
		EnqueuedMessage: msg,
		Error:           cause.Error(),
		FailedAt:        failedAt,
	}

	if err := p.bus.Publish(bus.RoutingKeyFailed, rec, bus.PublishOptions{Persistent: true}, p.strategy); err != nil {
		zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: dead-letter publish failed")
	}

	errMsg := cause.Error()
	failed := model.StatusRecord{
		NotificationID: msg.NotificationID,
		Status:         model.StatusFailed,
		Error:          &errMsg,
		FailedAt:       &failedAt,
	}
	if err := p.store.Put(ctx, key, failed, p.statusTTL); err != nil {
		zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: failed to write failed status")
	}

	if p.audit != nil {
		if err := p.audit.Record(ctx, rec); err != nil {
			zlog.Logger.Error().Err(err).Str("request_id", msg.RequestID).Msg("pipeline: audit write failed")
		}
	}

	d.Ack()
}

// backoff returns the kth retry delay, 2000*2^(k-1) ms, per spec.md §8
// property 3.
func backoff(attempt int) time.Duration {
	return time.Duration(2000*(1<<uint(attempt-1))) * time.Millisecond
}

func publishOptionsFor(msg model.EnqueuedMessage) bus.PublishOptions {
	return bus.PublishOptions{Priority: msg.Priority, Persistent: true}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
