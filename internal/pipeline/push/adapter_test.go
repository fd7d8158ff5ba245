package push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/notifyhub/internal/breaker"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/pkg/push"
)

type fakeSender struct {
	err        error
	lastPayload push.Payload
}

func (f *fakeSender) Send(p push.Payload) error {
	f.lastPayload = p
	return f.err
}

func TestAdapter_Validate_RequiresTokenLength(t *testing.T) {
	a := New(&fakeSender{}, breaker.New(breaker.Settings{}))

	err := a.Validate(model.EnqueuedMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push_token_missing")

	err = a.Validate(model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{Metadata: map[string]interface{}{"push_token": "short"}},
	})
	require.Error(t, err)

	err = a.Validate(model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{Metadata: map[string]interface{}{"push_token": "0123456789"}},
	})
	assert.NoError(t, err)
}

func TestAdapter_Send_BuildsPayloadFromMetadata(t *testing.T) {
	sender := &fakeSender{}
	a := New(sender, breaker.New(breaker.Settings{}))

	msg := model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{
			Metadata: map[string]interface{}{
				"push_token": "0123456789",
				"title":      "Hello",
				"image_url":  "https://img",
			},
		},
	}

	err := a.Send(context.Background(), msg, "rendered body")
	require.NoError(t, err)

	assert.Equal(t, "0123456789", sender.lastPayload.Token)
	assert.Equal(t, "Hello", sender.lastPayload.Notification.Title)
	assert.Equal(t, "rendered body", sender.lastPayload.Notification.Body)
	assert.Equal(t, "https://img", sender.lastPayload.Notification.Image)
}
