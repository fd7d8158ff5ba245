package statusapi

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/notifyhub/internal/respond"
)

// NewRouter wires the per-worker status and health endpoints.
func NewRouter(h *Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	e.GET("/status/:request_id", h.GetStatus)
	e.GET("/health", func(c *ginext.Context) {
		respond.OK(c.Writer, map[string]string{"status": "ok"}, "healthy")
	})

	return e
}
