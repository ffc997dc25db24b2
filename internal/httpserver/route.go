package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/teashop/pkg/middleware/auth"
	"github.com/Skotchmaster/teashop/pkg/middleware/csrf"
	"github.com/Skotchmaster/teashop/pkg/middleware/ratelimit"
)

type Deps struct {
	Health  *HealthHTTP
	Catalog *CatalogHTTP
	Orders  *OrderHTTP
	Users   *UserHTTP
	Cart    *CartHTTP
	Admin   *AdminHTTP
	Storage *StorageHTTP

	JWTSecret []byte
	Limits    ratelimit.Store
	CSRF      csrf.Config
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", d.Health.Live)
	e.GET("/health/ready", d.Health.Ready)

	authMW := middleware.New(d.JWTSecret)
	limits := d.Limits
	if limits == nil {
		limits = ratelimit.NewMemoryStore()
	}
	strict := ratelimit.Middleware(limits, ratelimit.Strict)
	moderate := ratelimit.Middleware(limits, ratelimit.Moderate)
	relaxed := ratelimit.Middleware(limits, ratelimit.Relaxed)
	admin := ratelimit.Middleware(limits, ratelimit.Admin)

	csrfCfg := d.CSRF
	if csrfCfg == (csrf.Config{}) {
		csrfCfg = csrf.DefaultConfig()
	}

	api := e.Group("/api", csrf.Middleware(csrfCfg))
	api.GET("/health", d.Health.Health)

	products := api.Group("/products", relaxed)
	products.GET("", d.Catalog.GetProducts)
	products.GET("/search", d.Catalog.SearchProducts)
	products.GET("/:id", d.Catalog.GetProduct)

	orders := api.Group("/orders", moderate)
	orders.POST("", d.Orders.CreateOrder, authMW.OptionalAuth)
	orders.GET("/:id", d.Orders.GetOrder, authMW.OptionalAuth)
	orders.PUT("/:id/status", d.Orders.UpdateStatus, authMW.RequireAuth)

	users := api.Group("/users")
	users.POST("/register", d.Users.Register, strict)
	users.POST("/login", d.Users.Login, strict)
	me := users.Group("/me", moderate, authMW.RequireAuth)
	me.GET("", d.Users.Me)
	me.PUT("", d.Users.UpdateMe)
	me.POST("/avatar", d.Users.UploadAvatar)
	me.GET("/orders", d.Users.MyOrders)

	cart := api.Group("/cart", relaxed, authMW.RequireAuth)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.ReplaceCart)
	cart.DELETE("", d.Cart.ClearCart)
	cart.POST("/items", d.Cart.AddItem)
	cart.PUT("/items/:productId", d.Cart.SetQuantity)
	cart.DELETE("/items/:productId", d.Cart.RemoveItem)

	adm := api.Group("/admin", admin, authMW.RequireAdmin)
	adm.GET("/products", d.Admin.ListProducts)
	adm.POST("/products", d.Admin.CreateProduct)
	adm.PUT("/products/:id", d.Admin.UpdateProduct)
	adm.DELETE("/products/:id", d.Admin.DeleteProduct)
	adm.GET("/orders", d.Admin.ListOrders)
	adm.PUT("/orders/:id/status", d.Orders.UpdateStatus)
	adm.GET("/users", d.Admin.ListUsers)
	adm.POST("/uploads", d.Admin.Upload)

	api.GET("/storage/*", d.Storage.Serve, relaxed)

	api.Any("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	})
}
