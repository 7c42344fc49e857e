// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/middleware"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter creates a router around the handler set.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup wires all routes and middleware.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// The websocket endpoint sits outside the rate limiter: one
	// upgrade per dashboard, then the hub owns the connection.
	r.Get("/ws", router.handler.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(
			router.rateLimitRequests(),
			router.rateLimitWindow(),
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/standings", router.handler.Standings)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", router.handler.ListDevices)
			r.Post("/", router.handler.CreateDevice)
			r.Get("/{id}", router.handler.GetDevice)
			r.Delete("/{id}", router.handler.DeleteDevice)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", router.handler.ListUsers)
			r.Post("/", router.handler.CreateUser)
			r.Get("/{id}", router.handler.GetUser)
			r.Put("/{id}", router.handler.UpdateUser)
			r.Delete("/{id}", router.handler.DeleteUser)
			r.Post("/{id}/device", router.handler.LinkDevice)
			r.Get("/{id}/standings", router.handler.UserStandings)
		})
	})

	return r
}

func (router *Router) rateLimitRequests() int {
	if router.cfg.RateLimitReqs > 0 {
		return router.cfg.RateLimitReqs
	}
	return 100
}

func (router *Router) rateLimitWindow() time.Duration {
	if router.cfg.RateLimitWindow > 0 {
		return router.cfg.RateLimitWindow
	}
	return time.Minute
}
