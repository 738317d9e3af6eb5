/**
 * @description
 * This file defines the core domain models for the signer-service: the job
 * payloads that move a transfer through its polling stages, and the stage
 * job-id suffixes that let one transfer hold jobs in several queues at once.
 *
 * @notes
 * - Job ids are derived from the caller-supplied transfer id so that
 *   re-enqueuing is an idempotent upsert and cancellation can address every
 *   queue by id.
 */
package domain

// Transfer directions. A crypto-to-fiat transfer sweeps a deposit from an
// ephemeral wallet into custody; a fiat-to-crypto transfer pushes funds from
// custody out to the counterparty.
const (
	DirectionCryptoToFiat = "crypto_to_fiat"
	DirectionFiatToCrypto = "fiat_to_crypto"
)

// Job id suffixes. The bare transfer id is used by the balance, activation
// and token-resources jobs; the suffixed forms keep simultaneous jobs for the
// same transfer from colliding.
const (
	SuffixTRX          = "-TRX"
	SuffixPayment      = "-PAYMENT"
	SuffixNotification = "-NOTIFICATION"
)

// KnownSuffixes is the set of job-id suffixes the cancellation path scans.
var KnownSuffixes = []string{"", SuffixTRX, SuffixPayment, SuffixNotification}

// BalanceJob asks the balance worker to poll an ephemeral deposit wallet
// until the target amount has arrived.
type BalanceJob struct {
	Network      string  `json:"network"`
	Currency     string  `json:"currency"`
	AccountType  string  `json:"accountType"`
	Wallet       string  `json:"wallet"`
	TargetAmount float64 `json:"targetAmount"`
	Attempts     int     `json:"attempts"`
	Contract     string  `json:"contract,omitempty"`
	Callback     string  `json:"callback"`
	InternalID   string  `json:"internalId"`
}

// ActivationJob asks the activation worker to poll an address until it exists
// on chain, then hand the transfer to the coordinator's activation-complete
// transition.
type ActivationJob struct {
	Network     string `json:"network"`
	Currency    string `json:"currency"`
	AccountType string `json:"accountType"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	ID          string `json:"id"`
	Callback    string `json:"callback"`
}

// ResourcesJob asks the resources worker to poll a wallet's energy and
// bandwidth until the rented resources have landed, then run the terminal
// transition selected by IsCryptoToFiat.
type ResourcesJob struct {
	ID              string `json:"id"`
	Network         string `json:"network"`
	Currency        string `json:"currency"`
	AccountType     string `json:"accountType"`
	To              string `json:"to"`
	Wallet          string `json:"wallet"`
	Balance         string `json:"balance"`
	Attempts        int    `json:"attempts"`
	IsCryptoToFiat  bool   `json:"isCryptoToFiat"`
	TargetEnergy    int64  `json:"targetEnergy"`
	TargetBandwidth int64  `json:"targetBandwidth"`
	Callback        string `json:"callback"`
}
