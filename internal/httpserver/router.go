package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pointstock/internal/accounts"
	"pointstock/internal/auth"
	"pointstock/internal/health"
	"pointstock/internal/httputil"
	"pointstock/internal/notices"
	"pointstock/internal/orders"
)

type RouterDeps struct {
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	OrderHandler    *orders.Handler
	NoticesHandler  *notices.Handler
	HealthHandler   *health.Handler
	AuthService     *auth.Service
	InternalToken   string
	QuotesWS        http.Handler
}

// authed adapts a userID-taking handler to chi, rejecting requests whose
// token the auth middleware could not resolve.
func authed(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)
	r.Get("/metrics", d.HealthHandler.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})
		r.Get("/quotes/ws", d.QuotesWS.ServeHTTP)
		r.Get("/notices", d.NoticesHandler.List)
		r.Get("/notices/{id}", d.NoticesHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", authed(d.AuthHandler.Me))
			r.Get("/account", authed(d.AccountsHandler.Me))
			r.Post("/account", authed(d.AccountsHandler.Create))
			r.Post("/account/deposit", authed(d.AccountsHandler.Deposit))

			r.Post("/orders/buy", authed(d.OrderHandler.Buy))
			r.Post("/orders/sell", authed(d.OrderHandler.Sell))
			r.Delete("/orders/{id}/buy", authed(d.OrderHandler.CancelBuy))
			r.Delete("/orders/{id}/sell", authed(d.OrderHandler.CancelSell))
			r.Get("/orders", authed(d.OrderHandler.List))
			r.Get("/orders/pending", authed(d.OrderHandler.ListPending))
			r.Get("/orders/stock/{code}", authed(d.OrderHandler.ListStock))

			r.Get("/holdings", authed(d.OrderHandler.Holdings))
			r.Get("/holdings/{id}", authed(d.OrderHandler.Holding))

			r.Post("/notices", authed(d.NoticesHandler.Create))
			r.Put("/notices/{id}", authed(d.NoticesHandler.Update))
			r.Delete("/notices/{id}", authed(d.NoticesHandler.Delete))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/sweep", d.OrderHandler.Sweep)
		})
	})
	return r
}
