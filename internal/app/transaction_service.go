/**
 * @description
 * Transfer-level operations that cut across the stage queues. Cancellation
 * removes every pending job derived from a transfer id; a job already
 * leased by a worker is past the point of no return and stays untouched.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/transfa/signer-service/internal/domain"
)

// TransactionService operates on transfers across all stage queues.
type TransactionService struct {
	queues Queues
	logger *slog.Logger
}

// NewTransactionService returns the cross-queue transfer service.
func NewTransactionService(queues Queues, logger *slog.Logger) *TransactionService {
	return &TransactionService{queues: queues, logger: logger}
}

// CancelTransaction removes every waiting job whose id derives from the
// transfer id. It reports whether anything was actually removed.
func (s *TransactionService) CancelTransaction(ctx context.Context, transferID string) (bool, error) {
	removed := false
	var lastErr error
	for _, q := range []JobQueue{s.queues.Balance, s.queues.Activation, s.queues.Resources, s.queues.Notification} {
		for _, suffix := range domain.KnownSuffixes {
			ok, err := q.Remove(ctx, transferID+suffix)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				removed = true
			}
		}
	}
	if removed {
		s.logger.Info("transfer cancelled", "transfer_id", transferID)
	} else {
		s.logger.Info("no pending jobs found for transfer", "transfer_id", transferID)
	}
	return removed, lastErr
}
