/**
 * @description
 * Stage worker that polls an ephemeral deposit wallet until the expected
 * amount has arrived. On confirmation it emits the payment-received webhook
 * and hands the transfer to the coordinator's deposit flow.
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

// BalanceWorker confirms deposits on ephemeral wallets.
type BalanceWorker struct {
	factory ServiceResolver
	queues  Queues
	logger  *slog.Logger
}

// NewBalanceWorker returns the deposit-confirmation stage handler.
func NewBalanceWorker(factory ServiceResolver, queues Queues, logger *slog.Logger) *BalanceWorker {
	return &BalanceWorker{factory: factory, queues: queues, logger: logger}
}

// Handle processes one balance poll.
func (w *BalanceWorker) Handle(ctx context.Context, job queue.Job) (queue.Disposition, error) {
	var payload domain.BalanceJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Fatal, fmt.Errorf("decode balance job %s: %w", job.ID, err)
	}

	svc, err := w.factory.Service(ctx, payload.Network, payload.Currency, payload.AccountType)
	if err != nil {
		return queue.Fatal, err
	}

	balance, err := svc.GetBalanceFromTransfers(ctx, payload.Wallet)
	if err != nil {
		return queue.RetryLater, fmt.Errorf("poll balance for %s: %w", payload.InternalID, err)
	}
	if balance < payload.TargetAmount {
		w.logger.Info("deposit not confirmed yet",
			"transfer_id", payload.InternalID, "wallet", payload.Wallet,
			"balance", balance, "target", payload.TargetAmount, "attempt", job.Attempt)
		return queue.RetryLater, ErrBalanceNotReached
	}

	txID, err := svc.LastTransaction(ctx, payload.Wallet)
	if err != nil {
		return queue.RetryLater, fmt.Errorf("resolve deposit tx for %s: %w", payload.InternalID, err)
	}
	w.logger.Info("deposit confirmed",
		"transfer_id", payload.InternalID, "wallet", payload.Wallet, "balance", balance, "tx_id", txID)

	if payload.Callback != "" {
		err = w.queues.Notification.Enqueue(ctx, domain.NotificationJob{
			Wallet:     payload.Wallet,
			Callback:   payload.Callback,
			Contract:   svc.Contract(),
			Balance:    balance,
			TxID:       txID,
			InternalID: payload.InternalID,
			Type:       domain.NotificationPaymentReceived,
		}, payload.InternalID+domain.SuffixPayment, 0)
		if err != nil {
			return queue.RetryLater, fmt.Errorf("enqueue payment notification for %s: %w", payload.InternalID, err)
		}
	}

	err = svc.FinishTransaction(ctx, FinishParams{
		Network:     payload.Network,
		Currency:    payload.Currency,
		AccountType: payload.AccountType,
		Address:     payload.Wallet,
		Balance:     formatAmount(balance),
		ID:          payload.InternalID,
		Callback:    payload.Callback,
	})
	if err != nil {
		return queue.RetryLater, fmt.Errorf("advance deposit %s: %w", payload.InternalID, err)
	}
	return queue.Advance, nil
}
