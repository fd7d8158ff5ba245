package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
)

type fakeStore struct {
	records map[string]json.RawMessage
}

func (f *fakeStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	v, ok := f.records[key]
	if !ok {
		return nil, statusstore.ErrAbsent
	}
	return v, nil
}

func TestHandler_GetStatus_Found(t *testing.T) {
	rec := model.StatusRecord{NotificationID: "n1", Status: model.StatusDelivered}
	body, _ := json.Marshal(rec)

	store := &fakeStore{records: map[string]json.RawMessage{
		"email:idempotency:r1": body,
	}}
	h := NewHandler(store, model.ChannelEmail)

	req := httptest.NewRequest(http.MethodGet, "/status/r1", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "request_id", Value: "r1"}}

	h.GetStatus(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var env struct {
		Data model.StatusRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, model.StatusDelivered, env.Data.Status)
}

func TestHandler_GetStatus_NotFound(t *testing.T) {
	store := &fakeStore{records: map[string]json.RawMessage{}}
	h := NewHandler(store, model.ChannelPush)

	req := httptest.NewRequest(http.MethodGet, "/status/unknown", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "request_id", Value: "unknown"}}

	h.GetStatus(c)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}
