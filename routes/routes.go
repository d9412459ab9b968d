package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketgrid/storefront-backend-go/handlers"
	custommw "github.com/marketgrid/storefront-backend-go/middleware"
)

// SetupRoutes wires every endpoint onto the Echo instance.
func SetupRoutes(e *echo.Echo, h *handlers.Handler) {
	// Public routes
	e.POST("/api/auth/register", h.Register)
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/verify-otp", h.VerifyOTP)
	e.POST("/api/auth/resend-otp", h.ResendOTP)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Authenticated API routes
	api := e.Group("/api")
	api.Use(custommw.Auth(h.Cfg.JWTSecret))

	// User routes
	api.GET("/users/me", h.GetProfile)
	api.PUT("/users/me", h.UpdateProfile)
	api.GET("/users/me/addresses", h.ListAddresses)
	api.POST("/users/me/addresses", h.AddAddress)
	api.PUT("/users/me/addresses/:id", h.UpdateAddress)
	api.DELETE("/users/me/addresses/:id", h.DeleteAddress)

	// Catalog routes
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)

	// Order routes
	api.POST("/orders", h.CreateOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/number/:orderNumber", h.GetOrderByNumber)
	api.PATCH("/orders/:id/cancel", h.CancelOrder)

	// Admin routes
	admin := api.Group("/admin", custommw.AdminOnly)
	admin.GET("/dashboard", h.Dashboard)
	admin.GET("/orders", h.ListAllOrders)
	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSettings)
	admin.POST("/products", h.CreateProduct)
	admin.PUT("/products/:id", h.UpdateProduct)
	admin.DELETE("/products/:id", h.DeleteProduct)
	admin.POST("/products/:id/images", h.UploadProductImage)

	// Catalog mutation endpoints kept at their documented paths, gated by
	// the admin check rather than the route prefix.
	api.PATCH("/products/:id/stock", h.AdjustStock, custommw.AdminOnly)
	api.PATCH("/orders/:id/status", h.UpdateOrderStatus, custommw.AdminOnly)
	api.PATCH("/orders/:id/payment-status", h.UpdatePaymentStatus, custommw.AdminOnly)
}
