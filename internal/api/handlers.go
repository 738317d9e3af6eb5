/**
 * @description
 * This file contains the HTTP handlers for the signer service's API
 * endpoints. Handlers parse incoming requests, call the appropriate methods
 * on the application layer, and write the response envelope. They act as the
 * bridge between the web layer and the transfer orchestration logic.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Orchestration, models, keystore.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/signer-service/internal/app"
	"github.com/transfa/signer-service/internal/store"
)

// Handlers holds the application services the HTTP layer dispatches to.
type Handlers struct {
	manager      *app.Manager
	transactions *app.TransactionService
	keys         *store.KeyRepository
	guard        *store.RequestGuard
	logger       *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(manager *app.Manager, transactions *app.TransactionService, keys *store.KeyRepository, guard *store.RequestGuard, logger *slog.Logger) *Handlers {
	return &Handlers{
		manager:      manager,
		transactions: transactions,
		keys:         keys,
		guard:        guard,
		logger:       logger,
	}
}

// envelope is the uniform response body for every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		h.logger.Error("failed to encode response", "err", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// acquireOnce takes the short-lived dedup lock for a transfer id. Concurrent
// retries of the same request are rejected instead of double-processed.
func (h *Handlers) acquireOnce(w http.ResponseWriter, r *http.Request, id string) bool {
	if err := h.guard.Acquire(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrDuplicateRequest) {
			h.writeError(w, http.StatusConflict, "request is already being processed")
			return false
		}
		h.logger.Error("request guard failed", "transfer_id", id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "unable to process request")
		return false
	}
	return true
}

func accountParams(r *http.Request) (network, currency, accountType string) {
	return chi.URLParam(r, "network"), chi.URLParam(r, "currency"), chi.URLParam(r, "type")
}

// PingHandler answers liveness probes.
func (h *Handlers) PingHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, "pong")
}

// CreateAccountHandler generates a wallet and returns it in full. The caller
// takes custody of the private key.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	wallet, err := h.manager.CreateAccount(r.Context(), network, currency, accountType)
	if err != nil {
		h.logger.Warn("account creation rejected", "network", network, "currency", currency, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, wallet)
}

type oneTimeAccountRequest struct {
	Amount   float64 `json:"amount"`
	ID       string  `json:"id"`
	Callback string  `json:"callback"`
}

// CreateOneTimeAccountHandler generates an ephemeral deposit wallet and
// starts polling it for the expected amount. The private key never leaves
// the service.
func (h *Handlers) CreateOneTimeAccountHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	var req oneTimeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "id and a positive amount are required")
		return
	}
	if !h.acquireOnce(w, r, req.ID) {
		return
	}

	wallet, err := h.manager.CreateOneTimeAccount(r.Context(), app.OneTimeAccountParams{
		Network:      network,
		Currency:     currency,
		AccountType:  accountType,
		TargetAmount: req.Amount,
		InternalID:   req.ID,
		Callback:     req.Callback,
	})
	if err != nil {
		h.logger.Error("one-time account creation failed", "transfer_id", req.ID, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, wallet)
}

type storeKeyRequest struct {
	PrivateKey string `json:"privateKey"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

// StoreKeyHandler stores a custody key encrypted under the application key.
func (h *Handlers) StoreKeyHandler(w http.ResponseWriter, r *http.Request) {
	h.storeKey(w, r, false)
}

// StoreKeyUnsafeHandler stores a custody key without encryption. It exists
// for local development against throwaway keys.
func (h *Handlers) StoreKeyUnsafeHandler(w http.ResponseWriter, r *http.Request) {
	h.storeKey(w, r, true)
}

func (h *Handlers) storeKey(w http.ResponseWriter, r *http.Request, plain bool) {
	network, currency, accountType := accountParams(r)
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PrivateKey == "" {
		h.writeError(w, http.StatusBadRequest, "privateKey is required")
		return
	}

	material := store.KeyMaterial{PrivateKey: req.PrivateKey, Mnemonic: req.Mnemonic}
	var err error
	if plain {
		err = h.keys.StorePlain(r.Context(), network, currency, accountType, material)
	} else {
		err = h.keys.StoreEncrypted(r.Context(), network, currency, accountType, material)
	}
	if err != nil {
		h.logger.Error("key storage failed", "network", network, "currency", currency, "err", err)
		h.writeError(w, http.StatusInternalServerError, "unable to store key")
		return
	}
	h.writeJSON(w, http.StatusCreated, "stored")
}

// KeyAddressHandler returns the custody address derived from the stored key.
func (h *Handlers) KeyAddressHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	address, err := h.manager.CustodyAddress(r.Context(), network, currency, accountType)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			h.writeError(w, http.StatusNotFound, "no key stored")
			return
		}
		h.logger.Error("address derivation failed", "network", network, "currency", currency, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// KeyStoredHandler reports whether a custody key exists for the triple.
func (h *Handlers) KeyStoredHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	stored, err := h.keys.IsStored(r.Context(), network, currency, accountType)
	if err != nil {
		h.logger.Error("key lookup failed", "network", network, "currency", currency, "err", err)
		h.writeError(w, http.StatusInternalServerError, "unable to check key")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"stored": stored})
}

type createTransactionRequest struct {
	To       string `json:"to"`
	Amount   string `json:"amount"`
	ID       string `json:"id"`
	Callback string `json:"callback"`
}

// CreateTransactionHandler starts a fiat-to-crypto transfer out of custody.
func (h *Handlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.To == "" || req.Amount == "" {
		h.writeError(w, http.StatusBadRequest, "id, to and amount are required")
		return
	}
	if !h.acquireOnce(w, r, req.ID) {
		return
	}

	err := h.manager.StartTransfer(r.Context(), app.SignParams{
		Network:     network,
		Currency:    currency,
		AccountType: accountType,
		ID:          req.ID,
		To:          req.To,
		Amount:      req.Amount,
		Callback:    req.Callback,
	})
	if err != nil {
		h.logger.Error("transfer initiation failed", "transfer_id", req.ID, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"id": req.ID})
}

type finishTransactionRequest struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	ID       string `json:"id"`
	Callback string `json:"callback"`
}

// FinishTransactionHandler resumes a crypto-to-fiat transfer after the
// upstream has acknowledged the deposit.
func (h *Handlers) FinishTransactionHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	var req finishTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Address == "" || req.Balance == "" {
		h.writeError(w, http.StatusBadRequest, "id, address and balance are required")
		return
	}
	if !h.acquireOnce(w, r, req.ID) {
		return
	}

	err := h.manager.FinishTransfer(r.Context(), app.FinishParams{
		Network:     network,
		Currency:    currency,
		AccountType: accountType,
		Address:     req.Address,
		Balance:     req.Balance,
		ID:          req.ID,
		Callback:    req.Callback,
	})
	if err != nil {
		h.logger.Error("transfer continuation failed", "transfer_id", req.ID, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"id": req.ID})
}

// CancelTransactionHandler removes every pending job for a transfer id.
func (h *Handlers) CancelTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	removed, err := h.transactions.CancelTransaction(r.Context(), id)
	if err != nil {
		h.logger.Error("cancellation failed", "transfer_id", id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "unable to cancel transfer")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": removed})
}

// BalanceHandler returns the balance of an address in the given currency.
func (h *Handlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	network, currency, accountType := accountParams(r)
	address := chi.URLParam(r, "address")
	balance, err := h.manager.Balance(r.Context(), network, currency, accountType, address)
	if err != nil {
		h.logger.Error("balance lookup failed", "wallet", address, "err", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}
