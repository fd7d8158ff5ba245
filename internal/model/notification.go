// Package model defines the wire and storage types shared across the
// gateway and worker processes.
package model

import "time"

// Channel identifies which worker fleet a notification belongs to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Status is the lifecycle state of a StatusRecord.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// NotificationRequest is the canonical inbound entity accepted by the
// ingress gateway.
type NotificationRequest struct {
	NotificationType Channel                `json:"notification_type" validate:"required,oneof=email push"`
	UserID           string                 `json:"user_id" validate:"required"`
	TemplateCode     string                 `json:"template_code" validate:"required"`
	Variables        map[string]interface{} `json:"variables"`
	RequestID        string                 `json:"request_id" validate:"required"`
	Priority         int                    `json:"priority"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// EnqueuedMessage is the bus payload: a NotificationRequest plus the fields
// the worker maintains across delivery attempts.
type EnqueuedMessage struct {
	NotificationRequest
	NotificationID string    `json:"notification_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Attempts       int       `json:"attempts"`
}

// StatusRecord is the StatusStore value, keyed
// "<channel>:idempotency:<request_id>" or "idemp:<request_id>" at ingress.
type StatusRecord struct {
	NotificationID string  `json:"notification_id"`
	Status         Status  `json:"status"`
	SentAt         *string `json:"sent_at,omitempty"`
	Error          *string `json:"error,omitempty"`
	FailedAt       *string `json:"failed_at,omitempty"`
}

// FailedRecord is the dead-letter payload published to the failed queue.
type FailedRecord struct {
	EnqueuedMessage
	Error    string `json:"error"`
	FailedAt string `json:"failed_at"`
}

// StatusCallback is the body accepted by the external status-ingestion
// endpoint.
type StatusCallback struct {
	NotificationID string `json:"notification_id" validate:"required"`
	Status         Status `json:"status" validate:"required,oneof=delivered pending failed"`
	Timestamp      string `json:"timestamp"`
	Error          string `json:"error,omitempty"`
}

// UserPayload is the body accepted by the out-of-band user registration
// endpoint. It carries no idempotency guard.
type UserPayload struct {
	UserID string                 `json:"user_id" validate:"required"`
	Email  string                 `json:"email"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}
