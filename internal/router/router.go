// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/lanparty/internal/handler"
	"github.com/iliyamo/lanparty/internal/middleware"
	"github.com/iliyamo/lanparty/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Events      *handler.EventHandler
	Consumption *handler.ConsumptionHandler
	Costs       *handler.CostsHandler
	Tips        *handler.TipHandler
	Settlements *handler.SettlementHandler
	Hardware    *handler.HardwareHandler
	Seats       *handler.SeatHandler
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.ReadyCheck) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers login and token endpoints.  Logout and me need a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1/auth", middleware.JWTAuth(jwtSecret))
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the guest and kiosk endpoints.  mw typically
// holds the rate limiter and the response cache.
func RegisterPublic(e *echo.Echo, h Handlers, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)

	g.GET("/events", h.Events.ListEvents)
	g.GET("/events/:id", h.Events.GetEvent)
	g.GET("/events/:id/guests", h.Events.ListGuests)
	g.GET("/events/:id/products", h.Events.ListProducts)
	g.GET("/events/:id/costs", h.Costs.EventCosts)
	g.GET("/events/:id/seats", h.Seats.List)
	g.GET("/hardware", h.Hardware.ListItems)

	g.POST("/consumption", h.Consumption.Create)
	g.DELETE("/consumption", h.Consumption.Delete)
}

// RegisterAdmin registers endpoints that require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string, mw ...echo.MiddlewareFunc) {
	mw = append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}, mw...)
	g := e.Group("/v1", mw...)

	// ---- Tips ----
	g.POST("/tips", h.Tips.Upsert)
	g.POST("/tips/solve", h.Tips.Solve)

	// ---- Settlements ----
	s := g.Group("/events/:id/settlements")
	s.GET("", h.Settlements.List)
	s.POST("", h.Settlements.Action)
	s.GET("/export.xlsx", h.Settlements.Export)
	s.GET("/:guest_id", h.Settlements.Get)
	s.GET("/:guest_id/qr.png", h.Settlements.QRImage)
	s.POST("/:guest_id/adjustments", h.Settlements.AddAdjustment)
	s.DELETE("/:guest_id/adjustments/:idx", h.Settlements.RemoveAdjustment)
	s.POST("/:guest_id/custom-items", h.Settlements.AddCustomItem)
	s.DELETE("/:guest_id/custom-items/:idx", h.Settlements.RemoveCustomItem)
	s.POST("/:guest_id/overrides", h.Settlements.SaveOverride)
	s.DELETE("/:guest_id/overrides/:key", h.Settlements.RemoveOverride)

	// ---- Hardware ----
	g.GET("/events/:id/hardware-reservations", h.Hardware.ListReservations)
	g.POST("/hardware-reservations", h.Hardware.CreateReservation)
	g.DELETE("/hardware-reservations/:rid", h.Hardware.DeleteReservation)

	// ---- Seats ----
	g.PUT("/events/:id/seats", h.Seats.Layout)
	g.PUT("/events/:id/seats/:seat_id", h.Seats.Assign)
}
