/**
 * @description
 * Stage worker that polls a wallet's chain resources until the rented
 * energy and bandwidth have landed, then runs the terminal sign-and-
 * broadcast transition for the transfer. Ledger calls are throttled by a
 * shared limiter so replicas stay under the node provider's quota.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/internal/queue"
	"github.com/transfa/signer-service/internal/store"
)

// ResourcesWorker waits for rented resources and completes transfers.
type ResourcesWorker struct {
	factory ServiceResolver
	ledger  Ledger
	limiter *RedisRateLimiter
	logger  *slog.Logger
}

// NewResourcesWorker returns the resources stage handler.
func NewResourcesWorker(factory ServiceResolver, ledger Ledger, limiter *RedisRateLimiter, logger *slog.Logger) *ResourcesWorker {
	return &ResourcesWorker{factory: factory, ledger: ledger, limiter: limiter, logger: logger}
}

// Handle processes one resources poll.
func (w *ResourcesWorker) Handle(ctx context.Context, job queue.Job) (queue.Disposition, error) {
	var payload domain.ResourcesJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Fatal, fmt.Errorf("decode resources job %s: %w", job.ID, err)
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return queue.RetryLater, fmt.Errorf("throttle ledger call for %s: %w", payload.ID, err)
		}
	}

	res, err := w.ledger.Resources(ctx, payload.Wallet)
	if err != nil {
		return queue.RetryLater, fmt.Errorf("poll resources for %s: %w", payload.ID, err)
	}
	energyLeft := domain.AvailableResource(res.EnergyLimit, res.EnergyUsed)
	bandwidthLeft := domain.AvailableResource(res.FreeNetLimit, res.FreeNetUsed) +
		domain.AvailableResource(res.NetLimit, res.NetUsed)

	if !domain.ResourcesSatisfied(energyLeft, bandwidthLeft, payload.TargetEnergy, payload.TargetBandwidth) {
		w.logger.Info("resources not ready yet",
			"transfer_id", payload.ID, "wallet", payload.Wallet,
			"energy_left", energyLeft, "target_energy", payload.TargetEnergy,
			"bandwidth_left", bandwidthLeft, "target_bandwidth", payload.TargetBandwidth,
			"attempt", job.Attempt)
		return queue.RetryLater, ErrAwaitingResources
	}

	svc, err := w.factory.Service(ctx, payload.Network, payload.Currency, payload.AccountType)
	if err != nil {
		return queue.Fatal, err
	}

	if payload.IsCryptoToFiat {
		err = svc.FinishControlledTransaction(ctx, payload)
	} else {
		err = svc.FinishFiatToCryptoTransaction(ctx, payload)
	}
	if err != nil {
		// An expired ephemeral key can never recover; everything else may
		// be a transient node failure.
		if errors.Is(err, store.ErrWalletExpired) {
			return queue.Fatal, err
		}
		return queue.RetryLater, fmt.Errorf("complete transfer %s: %w", payload.ID, err)
	}
	return queue.Advance, nil
}
