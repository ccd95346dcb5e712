package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/handlers"
	"github.com/Skotchmaster/support_desk/internal/middleware"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	TicketHandler *handlers.TicketHandler
	SearchHandler *handlers.SearchHandler
	ChatHandler   *handlers.ChatHandler
	Auth          *middleware.Auth
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/signup", d.AuthHandler.Signup)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	user := v1.Group("/user", d.Auth.RequireUser)
	user.POST("/tickets", d.TicketHandler.Create)
	user.GET("/tickets", d.TicketHandler.ListMine)
	user.GET("/tickets/:id", d.TicketHandler.GetMine)

	csr := v1.Group("/csr", d.Auth.RequireUser, d.Auth.RequireCSR)
	csr.GET("/tickets", d.TicketHandler.ListAll)
	csr.POST("/tickets/:id/assign", d.TicketHandler.Assign)
	csr.PATCH("/tickets/:id", d.TicketHandler.UpdateStatus)
	if d.SearchHandler != nil {
		csr.GET("/tickets/search", d.SearchHandler.Search)
	}

	e.GET("/ws/tickets/:id", d.ChatHandler.Serve)
}
