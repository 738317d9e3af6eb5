/**
 * @description
 * Resolves the per-currency coordinator for a (network, currency, account
 * type) triple. The custody key is loaded from the encrypted keystore on
 * every resolution, so key rotation takes effect without a restart.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/transfa/signer-service/internal/config"
	"github.com/transfa/signer-service/internal/store"
)

// Supported (network, currency) pairs.
const (
	NetworkTRC20 = "TRC20"

	CurrencyUSDT = "USDTTRC20"
	CurrencyTRX  = "TRX"
)

// CryptoServiceFactory builds coordinators bound to stored custody keys.
type CryptoServiceFactory struct {
	deps   Deps
	keys   *store.KeyRepository
	cfg    config.Config
	logger *slog.Logger
}

// NewCryptoServiceFactory returns a factory over the shared dependencies.
func NewCryptoServiceFactory(deps Deps, keys *store.KeyRepository, cfg config.Config, logger *slog.Logger) *CryptoServiceFactory {
	return &CryptoServiceFactory{deps: deps, keys: keys, cfg: cfg, logger: logger}
}

// Service resolves the coordinator for the requested pair, loading its
// custody key from the keystore.
func (f *CryptoServiceFactory) Service(ctx context.Context, network, currency, accountType string) (CryptoService, error) {
	if network != NetworkTRC20 {
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	material, err := f.keys.Load(ctx, network, currency, accountType)
	if err != nil {
		return nil, fmt.Errorf("load custody key for %s:%s:%s: %w", network, currency, accountType, err)
	}

	switch currency {
	case CurrencyUSDT:
		return NewUSDTService(
			f.deps,
			material.PrivateKey,
			f.cfg.USDTContract,
			f.cfg.TronFeeLimit,
			f.cfg.PollingInterval(),
			f.cfg.ReFeeProceedOnFailure,
			f.logger,
		), nil
	case CurrencyTRX:
		return NewTRXService(
			f.deps,
			material.PrivateKey,
			f.cfg.PollingInterval(),
			f.cfg.ReFeeProceedOnFailure,
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported currency %q on network %q", currency, network)
	}
}
