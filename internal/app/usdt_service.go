/**
 * @description
 * Lifecycle coordinator for USDT (TRC20) transfers. Token transfers burn
 * energy as well as bandwidth, so both directions pass through the
 * activation and resources stages before the terminal contract call:
 *
 *   crypto-to-fiat: deposit confirmed -> activation poll on the ephemeral
 *   wallet -> rent resources for it -> sweep tokens into custody.
 *
 *   fiat-to-crypto: custody is already active -> rent resources for custody
 *   -> push tokens out to the counterparty.
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

// USDTService coordinates TRC20 token transfers.
type USDTService struct {
	deps       Deps
	privateKey string
	contract   string
	feeLimit   int64

	pollInterval   time.Duration
	proceedOnError bool
	logger         *slog.Logger
}

// NewUSDTService returns the token coordinator bound to the custody key.
func NewUSDTService(deps Deps, privateKey, contract string, feeLimit int64, pollInterval time.Duration, proceedOnError bool, logger *slog.Logger) *USDTService {
	return &USDTService{
		deps:           deps,
		privateKey:     privateKey,
		contract:       contract,
		feeLimit:       feeLimit,
		pollInterval:   pollInterval,
		proceedOnError: proceedOnError,
		logger:         logger,
	}
}

// CreateAccount generates a fresh wallet.
func (s *USDTService) CreateAccount() (domain.Wallet, error) {
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
func (s *USDTService) CustodyAddress() (string, error) {
	return tronclient.AddressFromPrivateKey(s.privateKey)
}

// CreateAndSignTransfer starts a fiat-to-crypto transfer. Custody is already
// activated, so the transfer goes straight to resource provisioning.
func (s *USDTService) CreateAndSignTransfer(ctx context.Context, params SignParams) error {
	s.logger.Info("processing token transaction", "transfer_id", params.ID, "stage", "first")
	return s.FinishActivationControl(ctx, ActivationControlParams{
		Network:        params.Network,
		Currency:       params.Currency,
		AccountType:    params.AccountType,
		To:             params.To,
		Amount:         params.Amount,
		ID:             params.ID,
		IsCryptoToFiat: false,
		Callback:       params.Callback,
	})
}

// FinishTransaction enters the controlled sweep of a confirmed deposit: the
// ephemeral wallet must first be seen active on chain before resources can
// be rented for it.
func (s *USDTService) FinishTransaction(ctx context.Context, params FinishParams) error {
	s.logger.Info("processing token transaction", "transfer_id", params.ID, "stage", "activation")
	err := s.deps.Queues.Activation.Enqueue(ctx, domain.ActivationJob{
		Network:     params.Network,
		Currency:    params.Currency,
		AccountType: params.AccountType,
		To:          params.Address,
		Amount:      params.Balance,
		ID:          params.ID,
		Callback:    params.Callback,
	}, params.ID, 0)
	if err != nil {
		return fmt.Errorf("enqueue activation for %s: %w", params.ID, err)
	}
	s.deps.publishStage(ctx, params.ID, "activation_enqueued", params.Address, "")
	return nil
}

// FinishActivationControl computes the resource targets, rents them from the
// provisioner, and enters the resources stage. The rented resources land on
// the address that will hold the tokens when the contract call runs: the
// ephemeral wallet for sweeps, custody for outbound pushes.
func (s *USDTService) FinishActivationControl(ctx context.Context, params ActivationControlParams) error {
	s.logger.Info("processing token transaction", "transfer_id", params.ID, "stage", "resources")

	targetEnergy, err := s.deps.Provisioner.EstimateEnergy(ctx, params.To)
	if err != nil {
		if !s.proceedOnError {
			return fmt.Errorf("estimate energy for %s: %w", params.ID, err)
		}
		s.logger.Warn("energy estimate failed; proceeding with zero target", "transfer_id", params.ID, "err", err)
		targetEnergy = 0
	}

	wallet := params.To
	if !params.IsCryptoToFiat {
		custody, err := s.CustodyAddress()
		if err != nil {
			return fmt.Errorf("derive custody address: %w", err)
		}
		wallet = custody
	}

	var targetBandwidth int64
	if !params.IsCryptoToFiat {
		// Outbound transfers pay their own bandwidth; size it from the
		// actual serialized transaction rather than a guess.
		targetBandwidth, err = s.estimateBandwidth(ctx, wallet, params.To, params.Amount)
		if err != nil {
			if !s.proceedOnError {
				return fmt.Errorf("estimate bandwidth for %s: %w", params.ID, err)
			}
			s.logger.Warn("bandwidth estimate failed; proceeding with zero target", "transfer_id", params.ID, "err", err)
			targetBandwidth = 0
		}
		if targetBandwidth > 0 {
			if err := s.rent(ctx, params.ID, wallet, targetBandwidth, refeeclient.ResourceBandwidth); err != nil {
				return err
			}
		}
	}

	if err := s.rent(ctx, params.ID, wallet, targetEnergy, refeeclient.ResourceEnergy); err != nil {
		return err
	}

	err = s.deps.Queues.Resources.Enqueue(ctx, domain.ResourcesJob{
		ID:              params.ID,
		Network:         params.Network,
		Currency:        params.Currency,
		AccountType:     params.AccountType,
		To:              params.To,
		Wallet:          wallet,
		Balance:         params.Amount,
		Attempts:        1,
		IsCryptoToFiat:  params.IsCryptoToFiat,
		TargetEnergy:    targetEnergy,
		TargetBandwidth: targetBandwidth,
		Callback:        params.Callback,
	}, params.ID, s.pollInterval)
	if err != nil {
		return fmt.Errorf("enqueue resources for %s: %w", params.ID, err)
	}
	s.deps.publishStage(ctx, params.ID, "resources_enqueued", wallet, "")
	return nil
}

// rent orders a resource from the provisioner, honoring the soft-fail
// policy.
func (s *USDTService) rent(ctx context.Context, transferID, wallet string, amount int64, resource string) error {
	if _, err := s.deps.Provisioner.RentResource(ctx, wallet, amount, resource, refeeclient.DefaultRentDuration); err != nil {
		if !s.proceedOnError {
			return fmt.Errorf("rent %s for %s: %w", resource, transferID, err)
		}
		s.logger.Warn("resource rental failed; proceeding", "transfer_id", transferID, "resource", resource, "err", err)
	}
	return nil
}

// FinishControlledTransaction sweeps a confirmed deposit from the ephemeral
// wallet into custody. The ephemeral key is recovered from the TTL cache;
// an expired entry fails the transfer explicitly.
func (s *USDTService) FinishControlledTransaction(ctx context.Context, job domain.ResourcesJob) error {
	s.logger.Info("processing token transaction", "transfer_id", job.ID, "stage", "last")

	wallet, err := s.deps.Wallets.Get(ctx, job.Wallet)
	if err != nil {
		return fmt.Errorf("recover ephemeral wallet for %s: %w", job.ID, err)
	}

	custody, err := s.CustodyAddress()
	if err != nil {
		return fmt.Errorf("derive custody address: %w", err)
	}
	amountSun, err := tronclient.ToSun(job.Balance)
	if err != nil {
		return fmt.Errorf("convert amount for %s: %w", job.ID, err)
	}

	txID, err := s.transferToken(ctx, wallet.Address, wallet.PrivateKey, custody, amountSun)
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

// FinishFiatToCryptoTransaction pushes tokens from custody out to the
// counterparty and queues the completion webhook.
func (s *USDTService) FinishFiatToCryptoTransaction(ctx context.Context, job domain.ResourcesJob) error {
	s.logger.Info("processing token transaction", "transfer_id", job.ID, "stage", "last")

	custody, err := s.CustodyAddress()
	if err != nil {
		return fmt.Errorf("derive custody address: %w", err)
	}
	amountSun, err := tronclient.ToSun(job.Balance)
	if err != nil {
		return fmt.Errorf("convert amount for %s: %w", job.ID, err)
	}

	txID, err := s.transferToken(ctx, custody, s.privateKey, job.To, amountSun)
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

func (s *USDTService) transferToken(ctx context.Context, owner, ownerKey, recipient string, amountSun int64) (string, error) {
	tx, err := s.deps.Ledger.CreateTRC20Transfer(ctx, owner, s.contract, recipient, amountSun, s.feeLimit)
	if err != nil {
		return "", err
	}
	if err := tronclient.Sign(tx, ownerKey); err != nil {
		return "", err
	}
	return s.deps.Ledger.Broadcast(ctx, tx)
}

// estimateBandwidth builds the real contract call to measure its serialized
// size.
func (s *USDTService) estimateBandwidth(ctx context.Context, owner, to, amount string) (int64, error) {
	amountSun, err := tronclient.ToSun(amount)
	if err != nil {
		return 0, err
	}
	tx, err := s.deps.Ledger.CreateTRC20Transfer(ctx, owner, s.contract, to, amountSun, s.feeLimit)
	if err != nil {
		return 0, err
	}
	return domain.EstimateBandwidth(tx.SizeBytes()), nil
}

// GetBalance returns the address's token balance.
func (s *USDTService) GetBalance(ctx context.Context, address string) (float64, error) {
	return s.deps.Ledger.TRC20Balance(ctx, address, s.contract)
}

// GetBalanceFromTransfers derives the balance from token transfer history,
// which is what deposit polling trusts for single-use wallets.
func (s *USDTService) GetBalanceFromTransfers(ctx context.Context, address string) (float64, error) {
	return s.deps.Ledger.TRC20Balance(ctx, address, s.contract)
}

// LastTransaction returns the most recent token transaction id for the
// address.
func (s *USDTService) LastTransaction(ctx context.Context, address string) (string, error) {
	return s.deps.Ledger.LastTRC20Transaction(ctx, address, s.contract)
}

// Contract returns the token contract address.
func (s *USDTService) Contract() string {
	return s.contract
}
