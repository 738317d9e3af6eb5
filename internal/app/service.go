/**
 * @description
 * Core interfaces and shared dependencies of the transfer pipeline. A
 * CryptoService is the per-currency lifecycle coordinator: it decides which
 * polling stage a transfer enters next and performs the terminal signing
 * step. Implementations differ only in payload construction (native transfer
 * vs. token contract call) and in which address receives rented resources.
 *
 * @dependencies
 * - internal/domain, internal/store, internal/queue: Models, caches, queues.
 * - pkg/tronclient, pkg/refeeclient, pkg/rabbitmq: External capabilities.
 */
package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/pkg/rabbitmq"
	"github.com/transfa/signer-service/pkg/refeeclient"
	"github.com/transfa/signer-service/pkg/tronclient"
)

// Retryable domain signals. Stage workers map these onto a retry-later
// verdict so the queue's fixed backoff re-polls the condition.
var (
	ErrBalanceNotReached = errors.New("BALANCE_NOT_REACHED")
	ErrWalletNotActive   = errors.New("WALLET_NOT_ACTIVE")
	ErrAwaitingResources = errors.New("AWAITING_RESOURCES")
)

// JobQueue is the enqueue/cancel surface of a stage queue.
type JobQueue interface {
	Enqueue(ctx context.Context, payload any, jobID string, delay time.Duration) error
	Remove(ctx context.Context, jobID string) (bool, error)
}

// Queues groups the four stage queues shared by every coordinator.
type Queues struct {
	Balance      JobQueue
	Activation   JobQueue
	Resources    JobQueue
	Notification JobQueue
}

// Ledger is the chain-read/write capability the pipeline consumes.
type Ledger interface {
	IsActive(ctx context.Context, address string) (bool, error)
	TRXBalance(ctx context.Context, address string) (int64, error)
	TRC20Balance(ctx context.Context, address, contract string) (float64, error)
	LastTRC20Transaction(ctx context.Context, address, contract string) (string, error)
	Resources(ctx context.Context, address string) (tronclient.AccountResources, error)
	CreateTRXTransfer(ctx context.Context, from, to string, amountSun int64) (*tronclient.Transaction, error)
	CreateTRC20Transfer(ctx context.Context, owner, contract, recipient string, amountSun, feeLimit int64) (*tronclient.Transaction, error)
	Broadcast(ctx context.Context, tx *tronclient.Transaction) (string, error)
}

// Provisioner is the external resource-rental capability.
type Provisioner interface {
	EstimateEnergy(ctx context.Context, address string) (int64, error)
	RentResource(ctx context.Context, address string, amount int64, resource, duration string) (*refeeclient.RentOrder, error)
}

// SignParams starts a fiat-to-crypto transfer.
type SignParams struct {
	Network     string
	Currency    string
	AccountType string
	ID          string
	To          string
	Amount      string
	Callback    string
}

// FinishParams enters the deposit confirmation path: the upstream has seen
// the payment-received webhook and asks for the sweep into custody.
type FinishParams struct {
	Network     string
	Currency    string
	AccountType string
	Address     string
	Balance     string
	ID          string
	Callback    string
}

// ActivationControlParams moves an activated transfer into the resources
// stage.
type ActivationControlParams struct {
	Network        string
	Currency       string
	AccountType    string
	To             string
	Amount         string
	ID             string
	IsCryptoToFiat bool
	Callback       string
}

// CryptoService is the per-currency transaction lifecycle coordinator.
type CryptoService interface {
	// CreateAccount generates a fresh wallet for this currency's network.
	CreateAccount() (domain.Wallet, error)
	// CustodyAddress returns the service-controlled hot wallet address.
	CustodyAddress() (string, error)
	// CreateAndSignTransfer starts an outbound (fiat-to-crypto) transfer.
	CreateAndSignTransfer(ctx context.Context, params SignParams) error
	// FinishTransaction starts the controlled sweep of a confirmed deposit.
	FinishTransaction(ctx context.Context, params FinishParams) error
	// FinishActivationControl computes resource targets, rents them, and
	// enqueues the resources stage.
	FinishActivationControl(ctx context.Context, params ActivationControlParams) error
	// FinishControlledTransaction is the crypto-to-fiat terminal step.
	FinishControlledTransaction(ctx context.Context, job domain.ResourcesJob) error
	// FinishFiatToCryptoTransaction is the fiat-to-crypto terminal step.
	FinishFiatToCryptoTransaction(ctx context.Context, job domain.ResourcesJob) error
	// GetBalance returns the spendable balance of an address.
	GetBalance(ctx context.Context, address string) (float64, error)
	// GetBalanceFromTransfers derives the balance from transfer history,
	// which is what deposit polling trusts.
	GetBalanceFromTransfers(ctx context.Context, address string) (float64, error)
	// LastTransaction returns the most recent matching transaction id.
	LastTransaction(ctx context.Context, address string) (string, error)
	// Contract returns the token contract address, or "" for native assets.
	Contract() string
}

// ServiceResolver resolves the coordinator for a (network, currency,
// account type) triple.
type ServiceResolver interface {
	Service(ctx context.Context, network, currency, accountType string) (CryptoService, error)
}

// WalletCache holds ephemeral wallet material for the lifetime of a
// deposit.
type WalletCache interface {
	Save(ctx context.Context, wallet domain.Wallet) error
	Get(ctx context.Context, address string) (domain.Wallet, error)
	Delete(ctx context.Context, address string) error
}

// Deps carries the shared collaborators every coordinator needs.
type Deps struct {
	Ledger      Ledger
	Provisioner Provisioner
	Queues      Queues
	Wallets     WalletCache
	Events      rabbitmq.Publisher
}

// publishStage emits a best-effort lifecycle event; failures never block the
// pipeline.
func (d Deps) publishStage(ctx context.Context, transferID, stage, wallet, detail string) {
	if d.Events == nil {
		return
	}
	_ = d.Events.PublishStageEvent(ctx, rabbitmq.StageEvent{
		TransferID: transferID,
		Stage:      stage,
		Wallet:     wallet,
		Detail:     detail,
	})
}

// formatAmount renders a coin amount with the shortest exact decimal form.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
