// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP surface: seven endpoints over gin, gzip on
// responses, and a counted admission semaphore bounding in-flight
// requests. Everything interesting happens below it in the engine.
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/loveindex/queryserver/internal/engine"
)

// DefaultMaxInFlight bounds concurrent requests when the caller
// doesn't configure the semaphore.
const DefaultMaxInFlight = 64

// Server owns the router and its middleware stack.
type Server struct {
	router *gin.Engine
}

// New builds the router over eng. maxInFlight <= 0 selects the
// default.
func New(eng *engine.Engine, maxInFlight int) *Server {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(admission(eng, maxInFlight))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	m := &Module{eng: eng}
	m.Route(r)

	return &Server{router: r}
}

// Router exposes the underlying gin engine (tests drive it directly
// through httptest).
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve blocks, listening on addr.
func (s *Server) Serve(addr string) error {
	return s.router.Run(addr)
}

// admission is the counted semaphore bounding in-flight requests,
// plus the rebuild-exclusion gate: requests arriving mid-rebuild are rejected
// outright rather than raced against index mutation.
func admission(eng *engine.Engine, maxInFlight int) gin.HandlerFunc {
	slots := make(chan struct{}, maxInFlight)
	return func(c *gin.Context) {
		if eng.RebuildInProgress() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{})
			return
		}
		slots <- struct{}{}
		defer func() { <-slots }()
		c.Next()
	}
}

// Module groups the endpoint handlers around one engine.
type Module struct {
	eng *engine.Engine
}

// Route attaches every endpoint.
func (m *Module) Route(r *gin.Engine) {
	r.GET("/accounts/filter/", m.FilterGETHandler)
	r.GET("/accounts/group/", m.GroupGETHandler)
	r.GET("/accounts/:id/recommend/", m.RecommendGETHandler)
	r.GET("/accounts/:id/suggest/", m.SuggestGETHandler)
	r.POST("/accounts/new/", m.NewPOSTHandler)
	r.POST("/accounts/likes/", m.LikesPOSTHandler)
	r.POST("/accounts/:id/", m.UpdatePOSTHandler)
}
