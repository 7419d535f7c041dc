package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/jwtmiddleware"
)

type Deps struct {
	ProductHandler  *ProductHTTP
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	OrderHandler    *OrderHTTP
	ReviewHandler   *ReviewHTTP
	CouponHandler   *CouponHTTP
	SearchHandler   *SearchHTTP

	JWTSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	requireUser := jwtmiddleware.RequireUser(d.JWTSecret)
	requireAdmin := jwtmiddleware.RequireAdmin(d.JWTSecret)

	api := e.Group("/api/v1")

	products := api.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/reviews", d.ReviewHandler.ListReviews)
	products.POST("/:id/reviews", d.ReviewHandler.SubmitReview, requireUser)

	productsAdmin := products.Group("", requireAdmin)
	productsAdmin.POST("", d.ProductHandler.CreateProduct)
	productsAdmin.PATCH("/:id", d.ProductHandler.PatchProduct)
	productsAdmin.DELETE("/:id", d.ProductHandler.DeleteProduct)

	api.GET("/categories", d.ProductHandler.GetCategories)
	api.POST("/categories", d.ProductHandler.CreateCategory, requireAdmin)
	api.DELETE("/categories/:id", d.ProductHandler.DeleteCategory, requireAdmin)

	if d.SearchHandler != nil {
		api.GET("/search", d.SearchHandler.Search)
	}

	cart := api.Group("/cart", requireUser)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("/:id", d.CartHandler.DeleteOneFromCart)
	cart.DELETE("", d.CartHandler.DeleteAllFromCart)

	checkout := api.Group("/checkout")
	checkout.POST("", d.CheckoutHandler.Checkout, requireUser)
	checkout.POST("/:id/cancel", d.CheckoutHandler.Cancel, requireUser)
	// The gateway signs its callbacks; no user token is involved.
	checkout.POST("/webhook", d.CheckoutHandler.Webhook)

	orders := api.Group("/orders", requireUser)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	api.PATCH("/orders/:id/status", d.OrderHandler.UpdateOrderStatus, requireAdmin)

	coupons := api.Group("/coupons", requireAdmin)
	coupons.GET("", d.CouponHandler.ListCoupons)
	coupons.POST("", d.CouponHandler.CreateCoupon)
	coupons.POST("/:id/deactivate", d.CouponHandler.DeactivateCoupon)
	coupons.DELETE("/:id", d.CouponHandler.DeleteCoupon)
}
