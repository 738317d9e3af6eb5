/**
 * @description
 * Lifecycle coordinator for native TRX transfers. Native transfers burn
 * bandwidth only, so the flow is lighter than the token one: no energy
 * estimate, no activation polling for deposits (a wallet that received TRX
 * is active by definition). Both directions still pass through the
 * resources stage so the rented bandwidth can land before signing.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/pkg/refeeclient"
	"github.com/transfa/signer-service/pkg/tronclient"
)

// Bandwidth targets for native transfers. The rental rounds up to the
// provisioner's minimum order; polling only waits for what a plain transfer
// actually needs.
const (
	trxRentedBandwidth = 1000
	trxTargetBandwidth = 600
)

// TRXService coordinates native TRX transfers.
type TRXService struct {
	deps       Deps
	privateKey string

	pollInterval   time.Duration
	proceedOnError bool
	logger         *slog.Logger
}

// NewTRXService returns the native coordinator bound to the custody key.
func NewTRXService(deps Deps, privateKey string, pollInterval time.Duration, proceedOnError bool, logger *slog.Logger) *TRXService {
	return &TRXService{
		deps:           deps,
		privateKey:     privateKey,
		pollInterval:   pollInterval,
		proceedOnError: proceedOnError,
		logger:         logger,
	}
}

// CreateAccount generates a fresh wallet.
func (s *TRXService) CreateAccount() (domain.Wallet, error) {
	account, err := tronclient.GenerateAccount()
	if err != nil {
		return domain.Wallet{}, err
	}
	return domain.Wallet{
		Address:    account.Base58Address,
		HexAddress: account.HexAddress,
		PrivateKey: account.PrivateKey,
		PublicKey:  account.PublicKey,
	}, nil
}

// CustodyAddress derives the hot wallet address from the custody key.
func (s *TRXService) CustodyAddress() (string, error) {
	return tronclient.AddressFromPrivateKey(s.privateKey)
}

// CreateAndSignTransfer starts a fiat-to-crypto transfer: rent bandwidth for
// custody, then poll until it lands before sending.
func (s *TRXService) CreateAndSignTransfer(ctx context.Context, params SignParams) error {
	s.logger.Info("processing native transaction", "transfer_id", params.ID, "stage", "first")
	custody, err := s.CustodyAddress()
	if err != nil {
		return fmt.Errorf("derive custody address: %w", err)
	}
	return s.enterResourcesStage(ctx, resourcesEntry{
		Network:     params.Network,
		Currency:    params.Currency,
		AccountType: params.AccountType,
		ID:          params.ID,
		Wallet:      custody,
		To:          params.To,
		Amount:      params.Amount,
		Outbound:    true,
		Callback:    params.Callback,
	})
}

// FinishTransaction starts the sweep of a confirmed deposit: rent bandwidth
// for the ephemeral wallet so it can push its TRX into custody.
func (s *TRXService) FinishTransaction(ctx context.Context, params FinishParams) error {
	s.logger.Info("processing native transaction", "transfer_id", params.ID, "stage", "resources")
	custody, err := s.CustodyAddress()
	if err != nil {
		return fmt.Errorf("derive custody address: %w", err)
	}
	return s.enterResourcesStage(ctx, resourcesEntry{
		Network:     params.Network,
		Currency:    params.Currency,
		AccountType: params.AccountType,
		ID:          params.ID,
		Wallet:      params.Address,
		To:          custody,
		Amount:      params.Balance,
		Outbound:    false,
		Callback:    params.Callback,
	})
}

// FinishActivationControl is the post-activation entry point. Wallets that
// hold TRX are active by definition, so native transfers never queue
// activation jobs and this transition is not reachable.
func (s *TRXService) FinishActivationControl(ctx context.Context, params ActivationControlParams) error {
	return fmt.Errorf("activation control not supported for native transfers (transfer %s)", params.ID)
}

type resourcesEntry struct {
	Network     string
	Currency    string
	AccountType string
	ID          string
	Wallet      string
	To          string
	Amount      string
	Outbound    bool
	Callback    string
}

func (s *TRXService) enterResourcesStage(ctx context.Context, entry resourcesEntry) error {
	if _, err := s.deps.Provisioner.RentResource(ctx, entry.Wallet, trxRentedBandwidth, refeeclient.ResourceBandwidth, refeeclient.DefaultRentDuration); err != nil {
		if !s.proceedOnError {
			return fmt.Errorf("rent bandwidth for %s: %w", entry.ID, err)
		}
		s.logger.Warn("bandwidth rental failed; proceeding", "transfer_id", entry.ID, "err", err)
	}

	jobID := entry.ID + domain.SuffixTRX
	err := s.deps.Queues.Resources.Enqueue(ctx, domain.ResourcesJob{
		ID:              entry.ID,
		Network:         entry.Network,
		Currency:        entry.Currency,
		AccountType:     entry.AccountType,
		To:              entry.To,
		Wallet:          entry.Wallet,
		Balance:         entry.Amount,
		Attempts:        1,
		IsCryptoToFiat:  !entry.Outbound,
		TargetEnergy:    0,
		TargetBandwidth: trxTargetBandwidth,
		Callback:        entry.Callback,
	}, jobID, s.pollInterval)
	if err != nil {
		return fmt.Errorf("enqueue resources for %s: %w", entry.ID, err)
	}
	s.deps.publishStage(ctx, entry.ID, "resources_enqueued", entry.Wallet, "")
	return nil
}

// FinishControlledTransaction sweeps a confirmed deposit from the ephemeral
// wallet into custody. The ephemeral key is recovered from the TTL cache;
// an expired entry fails the transfer explicitly.
func (s *TRXService) FinishControlledTransaction(ctx context.Context, job domain.ResourcesJob) error {
	s.logger.Info("processing native transaction", "transfer_id", job.ID, "stage", "last")

	wallet, err := s.deps.Wallets.Get(ctx, job.Wallet)
	if err != nil {
		return fmt.Errorf("recover ephemeral wallet for %s: %w", job.ID, err)
	}
	amountSun, err := tronclient.ToSun(job.Balance)
	if err != nil {
		return fmt.Errorf("convert amount for %s: %w", job.ID, err)
	}

	txID, err := s.transferNative(ctx, wallet.Address, wallet.PrivateKey, job.To, amountSun)
	if err != nil {
		return fmt.Errorf("sweep deposit for %s: %w", job.ID, err)
	}
	s.deps.publishStage(ctx, job.ID, "swept", wallet.Address, txID)

	// The entry is read exactly once; dropping it keeps a redelivered or
	// replayed finish from sweeping twice.
	if err := s.deps.Wallets.Delete(ctx, wallet.Address); err != nil {
		s.logger.Warn("failed to drop swept wallet", "transfer_id", job.ID, "wallet", wallet.Address, "err", err)
	}

	if job.Callback != "" {
		err = s.deps.Queues.Notification.Enqueue(ctx, domain.NotificationJob{
			Wallet:     job.Wallet,
			Callback:   job.Callback,
			TxID:       txID,
			InternalID: job.ID,
			Type:       domain.NotificationCryptoToFiatCompleted,
		}, job.ID+domain.SuffixNotification, 0)
		if err != nil {
			return fmt.Errorf("enqueue notification for %s: %w", job.ID, err)
		}
	}
	return nil
}

// FinishFiatToCryptoTransaction pushes TRX from custody out to the
// counterparty and queues the completion webhook.
func (s *TRXService) FinishFiatToCryptoTransaction(ctx context.Context, job domain.ResourcesJob) error {
	s.logger.Info("processing native transaction", "transfer_id", job.ID, "stage", "last")

	custody, err := s.CustodyAddress()
	if err != nil {
		return fmt.Errorf("derive custody address: %w", err)
	}
	amountSun, err := tronclient.ToSun(job.Balance)
	if err != nil {
		return fmt.Errorf("convert amount for %s: %w", job.ID, err)
	}

	txID, err := s.transferNative(ctx, custody, s.privateKey, job.To, amountSun)
	if err != nil {
		return fmt.Errorf("send transfer for %s: %w", job.ID, err)
	}
	s.deps.publishStage(ctx, job.ID, "sent", job.To, txID)

	err = s.deps.Queues.Notification.Enqueue(ctx, domain.NotificationJob{
		Wallet:     job.To,
		Callback:   job.Callback,
		TxID:       txID,
		InternalID: job.ID,
		Type:       domain.NotificationFiatToCryptoCompleted,
	}, job.ID+domain.SuffixNotification, 0)
	if err != nil {
		return fmt.Errorf("enqueue notification for %s: %w", job.ID, err)
	}
	return nil
}

func (s *TRXService) transferNative(ctx context.Context, from, fromKey, to string, amountSun int64) (string, error) {
	tx, err := s.deps.Ledger.CreateTRXTransfer(ctx, from, to, amountSun)
	if err != nil {
		return "", err
	}
	if err := tronclient.Sign(tx, fromKey); err != nil {
		return "", err
	}
	return s.deps.Ledger.Broadcast(ctx, tx)
}

// GetBalance returns the address's TRX balance in whole coins.
func (s *TRXService) GetBalance(ctx context.Context, address string) (float64, error) {
	sun, err := s.deps.Ledger.TRXBalance(ctx, address)
	if err != nil {
		return 0, err
	}
	return float64(sun) / 1e6, nil
}

// GetBalanceFromTransfers is the deposit-polling view of the balance. Native
// balances come straight from the account, not from transfer history.
func (s *TRXService) GetBalanceFromTransfers(ctx context.Context, address string) (float64, error) {
	return s.GetBalance(ctx, address)
}

// LastTransaction has no native equivalent on the account endpoint; deposit
// confirmations for TRX report the wallet without a transaction id.
func (s *TRXService) LastTransaction(ctx context.Context, address string) (string, error) {
	return "", nil
}

// Contract returns the empty string: native transfers have no token
// contract.
func (s *TRXService) Contract() string {
	return ""
}
