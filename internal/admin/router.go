// Package admin serves the operator HTTP endpoints of the bridge.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omochice/toy-irc-bridge/internal/mappings"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

// Sessions lists the nicknames of registered clients.
type Sessions interface {
	Nicks() []string
}

// Rooms lists the room mappings.
type Rooms interface {
	Rooms() []mappings.Room
}

type Router struct {
	router   *gin.Engine
	sessions Sessions
	rooms    Rooms
	server   *http.Server
	log      logger.Logger
}

func NewRouter(log logger.Logger, sessions Sessions, rooms Rooms) *Router {
	r := &Router{
		router:   gin.New(),
		sessions: sessions,
		rooms:    rooms,
		log:      log,
	}
	r.server = r.newServer(r.router)
	r.router.Use(gin.Recovery())

	r.router.GET("/healthz", r.healthHandler)
	r.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.router.GET("/sessions", r.sessionsHandler)
	r.router.GET("/rooms", r.roomsHandler)
	return r
}

// Handler exposes the routes for tests and embedding.
func (r *Router) Handler() http.Handler {
	return r.router
}

func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) sessionsHandler(c *gin.Context) {
	nicks := r.sessions.Nicks()
	if nicks == nil {
		nicks = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(nicks), "nicks": nicks})
}

func (r *Router) roomsHandler(c *gin.Context) {
	type room struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Query bool   `json:"query"`
	}
	rooms := make([]room, 0)
	for _, m := range r.rooms.Rooms() {
		rooms = append(rooms, room{ID: m.ID, Name: m.Name, Query: m.IsQuery()})
	}
	c.JSON(http.StatusOK, rooms)
}

// Serve answers on l until Shutdown is called. It returns at once when
// Shutdown already ran.
func (r *Router) Serve(l net.Listener) error {
	r.log.Info("Admin HTTP listening", "addr", l.Addr().String())
	if err := r.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func (r *Router) newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
