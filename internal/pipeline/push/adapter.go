// Package push implements the pipeline.Adapter for the push channel:
// metadata.push_token shape validation, gateway send through a circuit
// breaker, per spec.md §4.5.
package push

import (
	"context"
	"fmt"

	"github.com/aliskhannn/notifyhub/internal/breaker"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/pkg/push"
)

const minTokenLength = 10

// sender is the subset of pkg/push.Client this adapter depends on.
type sender interface {
	Send(payload push.Payload) error
}

// Adapter is the push channel's validator + breaker-wrapped sender.
type Adapter struct {
	client  sender
	breaker *breaker.Breaker
}

// New builds a push Adapter over a gateway client and its circuit breaker.
func New(client sender, b *breaker.Breaker) *Adapter {
	return &Adapter{client: client, breaker: b}
}

// Validate requires metadata.push_token to be a string of length >= 10, per
// spec.md §4.5.
func (a *Adapter) Validate(msg model.EnqueuedMessage) error {
	token, _ := msg.Metadata["push_token"].(string)
	if len(token) < minTokenLength {
		return fmt.Errorf("push_token_missing")
	}
	return nil
}

// Send builds the FCM-shaped payload from metadata.title/body/image_url/data
// and body, and sends through the breaker, per spec.md §4.5.
func (a *Adapter) Send(ctx context.Context, msg model.EnqueuedMessage, body string) error {
	token, _ := msg.Metadata["push_token"].(string)
	title, _ := msg.Metadata["title"].(string)
	image, _ := msg.Metadata["image_url"].(string)

	data, _ := msg.Metadata["data"].(map[string]interface{})

	pushBody := body
	if explicit, ok := msg.Metadata["body"].(string); ok && explicit != "" {
		pushBody = explicit
	}

	payload := push.Payload{
		Token: token,
		Notification: push.Notification{
			Title: title,
			Body:  pushBody,
			Image: image,
		},
		Data: data,
	}

	return a.breaker.Fire(ctx, func(ctx context.Context) error {
		return a.client.Send(payload)
	})
}
