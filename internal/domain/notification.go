/**
 * @description
 * This file models the outbound webhook notifications delivered to the
 * upstream application when a transfer stage completes. The numeric type
 * values are part of the wire contract with the upstream consumer.
 */
package domain

import "fmt"

// NotificationType identifies which webhook a notification job delivers.
type NotificationType int

const (
	// NotificationPaymentReceived reports that a deposit reached its target
	// amount on an ephemeral wallet.
	NotificationPaymentReceived NotificationType = 1
	// NotificationFiatToCryptoCompleted reports a completed outbound transfer
	// from custody to the counterparty.
	NotificationFiatToCryptoCompleted NotificationType = 2
	// NotificationCryptoToFiatCompleted reports a completed sweep from an
	// ephemeral wallet into custody.
	NotificationCryptoToFiatCompleted NotificationType = 3
)

// WebhookPath returns the callback-relative path the notification is
// delivered to.
func (t NotificationType) WebhookPath() (string, error) {
	switch t {
	case NotificationPaymentReceived:
		return "/api/transactions/webhook/payments", nil
	case NotificationFiatToCryptoCompleted:
		return "/api/transactions/webhook/fc/completed", nil
	case NotificationCryptoToFiatCompleted:
		return "/api/transactions/webhook/cf/completed", nil
	default:
		return "", fmt.Errorf("unsupported notification type %d", int(t))
	}
}

// NotificationJob is the payload queued for the notification worker. Callback
// is the delivery target and is stripped from the webhook body itself.
type NotificationJob struct {
	Wallet     string           `json:"wallet"`
	Callback   string           `json:"callback"`
	Contract   string           `json:"contract,omitempty"`
	Balance    float64          `json:"balance,omitempty"`
	TxID       string           `json:"txId,omitempty"`
	InternalID string           `json:"internalId"`
	Type       NotificationType `json:"type"`
}

// WebhookBody is the JSON document actually posted to the callback. It is the
// notification payload minus the delivery target.
type WebhookBody struct {
	Wallet     string           `json:"wallet"`
	Contract   string           `json:"contract,omitempty"`
	Balance    float64          `json:"balance,omitempty"`
	TxID       string           `json:"txId,omitempty"`
	InternalID string           `json:"internalId"`
	Type       NotificationType `json:"type"`
}

// Body derives the webhook body from the queued job.
func (n NotificationJob) Body() WebhookBody {
	return WebhookBody{
		Wallet:     n.Wallet,
		Contract:   n.Contract,
		Balance:    n.Balance,
		TxID:       n.TxID,
		InternalID: n.InternalID,
		Type:       n.Type,
	}
}
