package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/notifyhub/internal/breaker"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/pkg/email"
)

type fakeSender struct {
	err     error
	lastMsg email.Message
}

func (f *fakeSender) Send(msg email.Message) error {
	f.lastMsg = msg
	return f.err
}

func TestAdapter_Validate_RequiresEmail(t *testing.T) {
	a := New(&fakeSender{}, breaker.New(breaker.Settings{}))

	err := a.Validate(model.EnqueuedMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email_missing")

	err = a.Validate(model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{Metadata: map[string]interface{}{"email": "a@x"}},
	})
	assert.NoError(t, err)
}

func TestAdapter_Send_StripsHTMLForText(t *testing.T) {
	sender := &fakeSender{}
	a := New(sender, breaker.New(breaker.Settings{}))

	msg := model.EnqueuedMessage{
		NotificationRequest: model.NotificationRequest{
			Metadata: map[string]interface{}{"email": "a@x", "subject": "Hi"},
		},
	}

	err := a.Send(context.Background(), msg, "<p>Hello <b>Ada</b></p>")
	require.NoError(t, err)

	assert.Equal(t, "a@x", sender.lastMsg.To)
	assert.Equal(t, "Hi", sender.lastMsg.Subject)
	assert.Equal(t, "<p>Hello <b>Ada</b></p>", sender.lastMsg.HTML)
	assert.Equal(t, "Hello Ada", sender.lastMsg.Text)
}
