package app

import (
	"context"
	"errors"
	"testing"

	"github.com/transfa/signer-service/internal/domain"
)

func TestCancelTransaction_ScansEveryQueueAndSuffix(t *testing.T) {
	balance := &queueStub{removed: map[string]bool{}}
	activation := &queueStub{removed: map[string]bool{}}
	resources := &queueStub{removed: map[string]bool{"transfer-1" + domain.SuffixTRX: true}}
	notification := &queueStub{removed: map[string]bool{}}
	service := NewTransactionService(Queues{
		Balance:      balance,
		Activation:   activation,
		Resources:    resources,
		Notification: notification,
	}, testLogger())

	removed, err := service.CancelTransaction(context.Background(), "transfer-1")
	if err != nil {
		t.Fatalf("CancelTransaction: %v", err)
	}
	if !removed {
		t.Fatal("expected the pending resources job to be removed")
	}

	for _, q := range []*queueStub{balance, activation, resources, notification} {
		if len(q.removeLog) != len(domain.KnownSuffixes) {
			t.Fatalf("expected %d removal attempts per queue, got %d", len(domain.KnownSuffixes), len(q.removeLog))
		}
	}
}

func TestCancelTransaction_ReportsNothingRemoved(t *testing.T) {
	empty := func() *queueStub { return &queueStub{removed: map[string]bool{}} }
	service := NewTransactionService(Queues{
		Balance:      empty(),
		Activation:   empty(),
		Resources:    empty(),
		Notification: empty(),
	}, testLogger())

	removed, err := service.CancelTransaction(context.Background(), "transfer-1")
	if err != nil {
		t.Fatalf("CancelTransaction: %v", err)
	}
	if removed {
		t.Fatal("expected no removals for an unknown transfer")
	}
}

func TestCancelTransaction_SurfacesQueueErrors(t *testing.T) {
	failing := &queueStub{removeErr: errors.New("redis unavailable")}
	ok := &queueStub{removed: map[string]bool{"transfer-1": true}}
	service := NewTransactionService(Queues{
		Balance:      failing,
		Activation:   ok,
		Resources:    &queueStub{removed: map[string]bool{}},
		Notification: &queueStub{removed: map[string]bool{}},
	}, testLogger())

	removed, err := service.CancelTransaction(context.Background(), "transfer-1")
	if err == nil {
		t.Fatal("expected the queue failure to surface")
	}
	if !removed {
		t.Fatal("expected the healthy queues to still report their removal")
	}
}
