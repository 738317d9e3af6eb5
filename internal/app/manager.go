/**
 * @description
 * Entry-point operations behind the HTTP surface. The manager resolves the
 * right coordinator, seeds ephemeral wallets into the TTL cache, and drops
 * transfers into the first queue of their pipeline.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/transfa/signer-service/internal/domain"
)

// Manager exposes the transfer entry points consumed by the HTTP handlers.
type Manager struct {
	factory      ServiceResolver
	queues       Queues
	wallets      WalletCache
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewManager wires the entry-point operations.
func NewManager(factory ServiceResolver, queues Queues, wallets WalletCache, pollInterval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		factory:      factory,
		queues:       queues,
		wallets:      wallets,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// CreateAccount generates a wallet and returns it in full, private key
// included. Callers are expected to take custody of the key themselves.
func (m *Manager) CreateAccount(ctx context.Context, network, currency, accountType string) (domain.Wallet, error) {
	svc, err := m.factory.Service(ctx, network, currency, accountType)
	if err != nil {
		return domain.Wallet{}, err
	}
	return svc.CreateAccount()
}

// OneTimeAccountParams describes a deposit expectation on a fresh wallet.
type OneTimeAccountParams struct {
	Network      string
	Currency     string
	AccountType  string
	TargetAmount float64
	InternalID   string
	Callback     string
}

// CreateOneTimeAccount generates an ephemeral deposit wallet, caches its key
// under the address TTL, and starts deposit polling. The returned wallet has
// the private key stripped; the cache is the only place it lives.
func (m *Manager) CreateOneTimeAccount(ctx context.Context, params OneTimeAccountParams) (domain.Wallet, error) {
	svc, err := m.factory.Service(ctx, params.Network, params.Currency, params.AccountType)
	if err != nil {
		return domain.Wallet{}, err
	}
	wallet, err := svc.CreateAccount()
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("generate one-time wallet for %s: %w", params.InternalID, err)
	}
	if err := m.wallets.Save(ctx, wallet); err != nil {
		return domain.Wallet{}, fmt.Errorf("cache one-time wallet for %s: %w", params.InternalID, err)
	}

	err = m.queues.Balance.Enqueue(ctx, domain.BalanceJob{
		Network:      params.Network,
		Currency:     params.Currency,
		AccountType:  params.AccountType,
		Wallet:       wallet.Address,
		TargetAmount: params.TargetAmount,
		Attempts:     1,
		Contract:     svc.Contract(),
		Callback:     params.Callback,
		InternalID:   params.InternalID,
	}, params.InternalID, m.pollInterval)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("enqueue deposit polling for %s: %w", params.InternalID, err)
	}

	m.logger.Info("one-time account created",
		"transfer_id", params.InternalID, "wallet", wallet.Address,
		"target", params.TargetAmount)
	return wallet.Public(), nil
}

// StartTransfer begins a fiat-to-crypto transfer out of custody.
func (m *Manager) StartTransfer(ctx context.Context, params SignParams) error {
	svc, err := m.factory.Service(ctx, params.Network, params.Currency, params.AccountType)
	if err != nil {
		return err
	}
	return svc.CreateAndSignTransfer(ctx, params)
}

// FinishTransfer resumes a crypto-to-fiat transfer after the deposit has
// been acknowledged upstream. The balance worker advances confirmed deposits
// on its own; a late or repeated call for an address whose cache entry is
// gone (already swept, or expired) is rejected rather than restarted.
func (m *Manager) FinishTransfer(ctx context.Context, params FinishParams) error {
	if _, err := m.wallets.Get(ctx, params.Address); err != nil {
		return fmt.Errorf("continue transfer %s: %w", params.ID, err)
	}
	svc, err := m.factory.Service(ctx, params.Network, params.Currency, params.AccountType)
	if err != nil {
		return err
	}
	return svc.FinishTransaction(ctx, params)
}

// Balance returns the current balance of an address in the given currency.
func (m *Manager) Balance(ctx context.Context, network, currency, accountType, address string) (float64, error) {
	svc, err := m.factory.Service(ctx, network, currency, accountType)
	if err != nil {
		return 0, err
	}
	return svc.GetBalance(ctx, address)
}

// CustodyAddress returns the hot wallet address for the stored key.
func (m *Manager) CustodyAddress(ctx context.Context, network, currency, accountType string) (string, error) {
	svc, err := m.factory.Service(ctx, network, currency, accountType)
	if err != nil {
		return "", err
	}
	return svc.CustodyAddress()
}
