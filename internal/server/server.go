package server

import (
	"course-billing/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	webhookHandler *handler.WebhookHandler
	billingHandler *handler.BillingHandler
}

func NewServer(webhookHandler *handler.WebhookHandler, billingHandler *handler.BillingHandler) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		webhookHandler: webhookHandler,
		billingHandler: billingHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Provider-initiated notifications. The provider id in the path picks
	// the gateway implementation; signature checking happens inside.
	s.echo.POST("/webhook/:provider", s.webhookHandler.Handle)

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	api.GET("/gateway/health", s.billingHandler.GatewayHealth)

	api.POST("/checkouts", s.billingHandler.CreateCheckout)
	api.GET("/products", s.billingHandler.GetProducts)
	api.GET("/products/:id", s.billingHandler.GetProduct)

	api.GET("/subscriptions/:id", s.billingHandler.GetSubscription)
	api.DELETE("/subscriptions/:id", s.billingHandler.CancelSubscription)

	api.GET("/customers/:id/subscriptions", s.billingHandler.GetCustomerSubscriptions)
	api.GET("/customers/:id/transactions", s.billingHandler.GetCustomerTransactions)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
