// Package statusapi implements the per-worker StatusAPI of spec.md §4.7:
// GET /status/:request_id over the StatusStore, built on the same
// wb-go/wbf/ginext handler/router pattern as internal/ingress.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/internal/respond"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
)

// store is the subset of statusstore.Store this handler depends on.
type store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
}

// Handler implements GET /status/:request_id for one channel.
type Handler struct {
	store   store
	channel model.Channel
}

// NewHandler builds a Handler scoped to one channel's idempotency key
// family.
func NewHandler(s store, channel model.Channel) *Handler {
	return &Handler{store: s, channel: channel}
}

// GetStatus implements GET /status/:request_id, per spec.md §4.7.
func (h *Handler) GetStatus(c *ginext.Context) {
	requestID := c.Param("request_id")

	key := fmt.Sprintf("%s:idempotency:%s", h.channel, requestID)

	raw, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if err == statusstore.ErrAbsent {
			respond.NotFound(c.Writer, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("request_id", requestID).Msg("statusapi: lookup failed")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, json.RawMessage(raw), "ok")
}
