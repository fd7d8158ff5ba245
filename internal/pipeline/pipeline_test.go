package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/notifyhub/internal/bus"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/internal/render"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
)

// fakeStore is a hand-written stand-in for statusstore.Store, in the shape
// of the teacher's gomock-generated mocks (see DESIGN.md).
type fakeStore struct {
	mu      sync.Mutex
	records map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]interface{})}
}

func (f *fakeStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.records[key]
	if !ok {
		return nil, statusstore.ErrAbsent
	}

	body, _ := json.Marshal(v)
	return body, nil
}

func (f *fakeStore) Put(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = value
	return nil
}

func (f *fakeStore) PutIfAbsent(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = value
	return true, nil
}

func (f *fakeStore) statusOf(key string) model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[key].(model.StatusRecord)
	if !ok {
		return ""
	}
	return rec.Status
}

// fakeBus captures every publish call made by the pipeline during a test.
type fakeBus struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	routingKey string
	payload    interface{}
}

func (f *fakeBus) Publish(routingKey string, payload interface{}, _ bus.PublishOptions, _ retry.Strategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{routingKey: routingKey, payload: payload})
	return nil
}

func (f *fakeBus) count(routingKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range f.published {
		if m.routingKey == routingKey {
			n++
		}
	}
	return n
}

// fakeAdapter is a scripted pipeline.Adapter: Validate returns validateErr,
// and Send returns sendErrs in sequence across calls, counting invocations.
type fakeAdapter struct {
	mu          sync.Mutex
	validateErr error
	sendErrs    []error
	sendCalls   int
}

func (a *fakeAdapter) Validate(model.EnqueuedMessage) error {
	return a.validateErr
}

func (a *fakeAdapter) Send(_ context.Context, _ model.EnqueuedMessage, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.sendCalls
	a.sendCalls++

	if idx < len(a.sendErrs) {
		return a.sendErrs[idx]
	}
	return nil
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sendCalls
}

type fakeAudit struct {
	mu      sync.Mutex
	records []model.FailedRecord
}

func (f *fakeAudit) Record(_ context.Context, rec model.FailedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newDelivery(t *testing.T, msg model.EnqueuedMessage) (bus.Delivery, *int32) {
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var acked int32
	return bus.Delivery{
		Body: body,
		Ack:  func() { acked = 1 },
		Nack: func() {},
	}, &acked
}

func TestPipeline_HappyPath_Delivered(t *testing.T) {
	store := newFakeStore()
	b := &fakeBus{}
	adapter := &fakeAdapter{}

	p := New(Config{
		Channel:     model.ChannelEmail,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		MaxAttempts: 5,
		StatusTTL:   time.Hour,
	})

	msg := model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{
			NotificationType: model.ChannelEmail,
			RequestID:        "r1",
			TemplateCode:     "welcome_v1",
			Variables:        map[string]interface{}{"name": "Ada"},
			Metadata:         map[string]interface{}{"email": "a@x"},
		},
	}

	d, acked := newDelivery(t, msg)
	p.Handle(context.Background(), d)

	assert.Equal(t, int32(1), *acked)
	assert.Equal(t, 1, adapter.calls())
	assert.Equal(t, model.StatusDelivered, store.statusOf("email:idempotency:r1"))
}

func TestPipeline_DuplicateDelivery_AcksWithoutResend(t *testing.T) {
	store := newFakeStore()
	store.records["email:idempotency:r1"] = model.StatusRecord{Status: model.StatusDelivered}
	b := &fakeBus{}
	adapter := &fakeAdapter{}

	p := New(Config{
		Channel:  model.ChannelEmail,
		Store:    store,
		Bus:      b,
		Adapter:  adapter,
		Renderer: render.New(),
	})

	msg := model.EnqueuedMessage{NotificationRequest: model.NotificationRequest{RequestID: "r1"}}
	d, acked := newDelivery(t, msg)

	p.Handle(context.Background(), d)

	assert.Equal(t, int32(1), *acked)
	assert.Equal(t, 0, adapter.calls())
}

func TestPipeline_ValidationFailure_EventuallyDeadLetters(t *testing.T) {
	store := newFakeStore()
	b := &fakeBus{}
	adapter := &fakeAdapter{validateErr: errors.New("push_token_missing")}

	p := New(Config{
		Channel:     model.ChannelPush,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		MaxAttempts: 1, // force immediate dead-letter for a deterministic test
	})

	msg := model.EnqueuedMessage{NotificationRequest: model.NotificationRequest{RequestID: "r2"}}
	d, acked := newDelivery(t, msg)

	p.Handle(context.Background(), d)

	assert.Equal(t, int32(1), *acked)
	assert.Equal(t, model.StatusFailed, store.statusOf("push:idempotency:r2"))
	assert.Equal(t, 1, b.count(bus.RoutingKeyFailed))
}

func TestPipeline_TransientFailureThenSuccess_TwoSendInvocations(t *testing.T) {
	store := newFakeStore()
	b := &fakeBus{}
	adapter := &fakeAdapter{sendErrs: []error{errors.New("smtp timeout")}}

	p := New(Config{
		Channel:     model.ChannelEmail,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		MaxAttempts: 5,
	})

	msg := model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{
			RequestID: "r3",
			Metadata:  map[string]interface{}{"email": "a@x"},
		},
	}
	d, acked := newDelivery(t, msg)

	p.Handle(context.Background(), d)
	assert.Equal(t, int32(1), *acked)
	assert.Equal(t, 1, adapter.calls())
	// The first attempt failed and scheduled a retry rather than
	// dead-lettering; no failed-queue publish yet, and status is still
	// processing (no regression per I1).
	assert.Equal(t, 0, b.count(bus.RoutingKeyFailed))
	assert.Equal(t, model.StatusProcessing, store.statusOf("email:idempotency:r3"))

	// Simulate the scheduled republish landing back on the queue as a new
	// delivery carrying attempts forward (I3) — the retry goroutine itself
	// only sleeps and republishes, which this test does not need to wait on.
	retried := msg
	retried.Attempts = 1
	d2, acked2 := newDelivery(t, retried)

	p.Handle(context.Background(), d2)

	assert.Equal(t, int32(1), *acked2)
	assert.Equal(t, 2, adapter.calls())
	assert.Equal(t, model.StatusDelivered, store.statusOf("email:idempotency:r3"))
}

func TestPipeline_RetryLadder_AdvancesPastOwnProcessingRecord(t *testing.T) {
	store := newFakeStore()
	b := &fakeBus{}
	adapter := &fakeAdapter{sendErrs: []error{
		errors.New("smtp timeout 1"),
		errors.New("smtp timeout 2"),
	}}

	p := New(Config{
		Channel:     model.ChannelEmail,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		MaxAttempts: 2,
	})

	msg := model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{
			RequestID: "r5",
			Metadata:  map[string]interface{}{"email": "a@x"},
		},
	}

	// Attempt 1: fails, schedules a retry. Its own processing record must
	// not block attempt 2 from reaching Validate/Send.
	d1, acked1 := newDelivery(t, msg)
	p.Handle(context.Background(), d1)
	assert.Equal(t, int32(1), *acked1)
	assert.Equal(t, 1, adapter.calls())
	assert.Equal(t, model.StatusProcessing, store.statusOf("email:idempotency:r5"))

	// Attempt 2 (the republish attempt 1 would have scheduled): fails again,
	// reaches the attempt ceiling, and must dead-letter rather than being
	// dropped as a duplicate of its own in-flight record.
	retried := msg
	retried.Attempts = 1
	d2, acked2 := newDelivery(t, retried)
	p.Handle(context.Background(), d2)

	assert.Equal(t, int32(1), *acked2)
	assert.Equal(t, 2, adapter.calls())
	assert.Equal(t, model.StatusFailed, store.statusOf("email:idempotency:r5"))
	assert.Equal(t, 1, b.count(bus.RoutingKeyFailed))
}

func TestPipeline_DeadLetter_WritesAuditEntry(t *testing.T) {
	store := newFakeStore()
	b := &fakeBus{}
	adapter := &fakeAdapter{validateErr: errors.New("email_missing")}
	aud := &fakeAudit{}

	p := New(Config{
		Channel:     model.ChannelEmail,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		Audit:       aud,
		MaxAttempts: 1,
	})

	msg := model.EnqueuedMessage{NotificationRequest: model.NotificationRequest{RequestID: "r4"}}
	d, _ := newDelivery(t, msg)

	p.Handle(context.Background(), d)

	assert.Equal(t, 1, aud.count())
}
