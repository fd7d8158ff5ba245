package ingress

import (
	"github.com/wb-go/wbf/ginext"
)

// NewRouter wires the IngressGateway endpoints, grouped and middlewared the
// same way the teacher's internal/api/router.New does.
func NewRouter(h *Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.Use(h.Authenticate)

	api.POST("/notifications/", h.Create)
	api.POST("/users/", h.CreateUser)
	api.POST("/:channel/status/", h.IngestStatus)

	return e
}
