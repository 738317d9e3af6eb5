/**
 * @description
 * Stage worker that polls a wallet until it exists on chain. Token sweeps
 * cannot run against an unactivated account, so the deposit flow parks here
 * until the first inbound transaction has been recorded.
 */
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/internal/queue"
)

// ActivationWorker waits for ephemeral wallets to appear on chain.
type ActivationWorker struct {
	factory ServiceResolver
	ledger  Ledger
	logger  *slog.Logger
}

// NewActivationWorker returns the activation stage handler.
func NewActivationWorker(factory ServiceResolver, ledger Ledger, logger *slog.Logger) *ActivationWorker {
	return &ActivationWorker{factory: factory, ledger: ledger, logger: logger}
}

// Handle processes one activation poll.
func (w *ActivationWorker) Handle(ctx context.Context, job queue.Job) (queue.Disposition, error) {
	var payload domain.ActivationJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Fatal, fmt.Errorf("decode activation job %s: %w", job.ID, err)
	}

	active, err := w.ledger.IsActive(ctx, payload.To)
	if err != nil {
		return queue.RetryLater, fmt.Errorf("check activation for %s: %w", payload.ID, err)
	}
	if !active {
		w.logger.Info("wallet not active yet",
			"transfer_id", payload.ID, "wallet", payload.To, "attempt", job.Attempt)
		return queue.RetryLater, ErrWalletNotActive
	}

	svc, err := w.factory.Service(ctx, payload.Network, payload.Currency, payload.AccountType)
	if err != nil {
		return queue.Fatal, err
	}
	err = svc.FinishActivationControl(ctx, ActivationControlParams{
		Network:        payload.Network,
		Currency:       payload.Currency,
		AccountType:    payload.AccountType,
		To:             payload.To,
		Amount:         payload.Amount,
		ID:             payload.ID,
		IsCryptoToFiat: true,
		Callback:       payload.Callback,
	})
	if err != nil {
		return queue.RetryLater, fmt.Errorf("advance activation %s: %w", payload.ID, err)
	}
	return queue.Advance, nil
}
