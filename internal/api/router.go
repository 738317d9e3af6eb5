/**
 * @description
 * This file sets up the HTTP router for the signer service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies the HMAC authentication middleware to everything but the liveness
 * probe.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/transfa/signer-service/internal/domain"
)

// Routes creates and returns the router for the signer service.
func Routes(h *Handlers, signer *domain.Signer, securityEnabled bool) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/ping", h.PingHandler)

	// Everything else requires a signed request.
	r.Group(func(r chi.Router) {
		r.Use(HMACAuthMiddleware(signer, securityEnabled))

		r.Post("/accounts/{network}/{currency}/{type}", h.CreateAccountHandler)
		r.Post("/accounts/onetime/{network}/{currency}/{type}", h.CreateOneTimeAccountHandler)

		r.Post("/keys/{network}/{currency}/{type}", h.StoreKeyHandler)
		r.Post("/keys/unsafe/{network}/{currency}/{type}", h.StoreKeyUnsafeHandler)
		r.Get("/keys/address/{network}/{currency}/{type}", h.KeyAddressHandler)
		r.Get("/keys/stored/{network}/{currency}/{type}", h.KeyStoredHandler)

		r.Post("/transactions/{network}/{currency}/{type}", h.CreateTransactionHandler)
		r.Post("/transactions/finish/{network}/{currency}/{type}", h.FinishTransactionHandler)
		r.Delete("/transactions/{id}", h.CancelTransactionHandler)

		r.Get("/balance/{network}/{currency}/{type}/{address}", h.BalanceHandler)
	})

	return r
}
