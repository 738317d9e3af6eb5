/**
 * @description
 * Redis-backed repository for ephemeral deposit wallets. A wallet is written
 * once when a one-time deposit address is issued, read once when the transfer
 * is finalized, and silently expires if the flow never completes. Reading an
 * expired wallet is an explicit error so finalization never proceeds on
 * stale or absent key material.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transfa/signer-service/internal/domain"
)

// ErrWalletExpired is returned when the TTL entry for an ephemeral wallet is
// gone by the time finalization needs it.
var ErrWalletExpired = errors.New("ephemeral wallet expired or never stored")

// WalletRepository persists ephemeral wallets under wallet:{address} with a
// configured TTL.
type WalletRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewWalletRepository returns a repository writing entries with the given TTL.
func NewWalletRepository(client redis.UniversalClient, ttl time.Duration) *WalletRepository {
	return &WalletRepository{client: client, ttl: ttl}
}

func walletKey(address string) string {
	return "wallet:" + address
}

// Save stores the wallet unless an entry for the address already exists; the
// NX guard keeps a re-issued address from clobbering live key material.
func (r *WalletRepository) Save(ctx context.Context, wallet domain.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("marshal wallet %s: %w", wallet.Address, err)
	}
	if err := r.client.SetNX(ctx, walletKey(wallet.Address), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store wallet %s: %w", wallet.Address, err)
	}
	return nil
}

// Delete drops the cache entry once the wallet has been swept. A finalized
// address must not be finalizable again.
func (r *WalletRepository) Delete(ctx context.Context, address string) error {
	if err := r.client.Del(ctx, walletKey(address)).Err(); err != nil {
		return fmt.Errorf("drop wallet %s: %w", address, err)
	}
	return nil
}

// Get recovers the wallet for an address, or ErrWalletExpired when the entry
// is gone.
func (r *WalletRepository) Get(ctx context.Context, address string) (domain.Wallet, error) {
	data, err := r.client.Get(ctx, walletKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Wallet{}, ErrWalletExpired
		}
		return domain.Wallet{}, fmt.Errorf("load wallet %s: %w", address, err)
	}
	var wallet domain.Wallet
	if err := json.Unmarshal(data, &wallet); err != nil {
		return domain.Wallet{}, fmt.Errorf("decode wallet %s: %w", address, err)
	}
	return wallet, nil
}
