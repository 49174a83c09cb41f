package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the full HTTP surface: the cart cookie endpoint under
// /api/cart and the session cart API under /api/v1/cart.
func NewRouter(cart *CartHandler, cookie *CookieHandler, secure bool, timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware(secure))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Cookie endpoint: consumed by the syncer, read by server-rendered
		// pages through the resulting cookie.
		r.Post("/cart", cookie.SetCart)
		r.Delete("/cart", cookie.ClearCart)

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ClearCart)
			r.Post("/items", cart.AddItem)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
		})
	})

	return r
}
