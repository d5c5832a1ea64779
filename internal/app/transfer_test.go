package app

import (
	"context"
	"errors"
	"testing"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
)

func TestTransferPoints_MovesPointsAtomically(t *testing.T) {
	repo := newMemStore()
	notifier := &recordingNotifier{}
	svc, _ := newTestService(repo, notifier)
	alice := repo.seed("alice", 100)
	bob := repo.seed("bob", 10)

	res, err := svc.TransferPoints(context.Background(), alice, bob, 40)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.SenderBalance != 60 || res.ReceiverID != bob || res.Amount != 40 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := repo.account(alice).Balance; got != 60 {
		t.Fatalf("expected sender 60, got %d", got)
	}
	if got := repo.account(bob).Balance; got != 50 {
		t.Fatalf("expected receiver 50, got %d", got)
	}

	out := repo.entriesFor(alice)
	last := out[len(out)-1]
	if last.Category != domain.CategoryTransferOut || last.Amount != -40 || last.Metadata["counterparty_username"] != "bob" {
		t.Fatalf("unexpected sender entry: %+v", last)
	}
	in := repo.entriesFor(bob)
	last = in[len(in)-1]
	if last.Category != domain.CategoryTransferIn || last.Amount != 40 || last.Metadata["counterparty_username"] != "alice" {
		t.Fatalf("unexpected receiver entry: %+v", last)
	}
	if notifier.count() != 2 {
		t.Fatalf("expected both parties notified, got %d", notifier.count())
	}
	assertLedgerConsistent(t, repo)
}

func TestTransferPoints_Rejections(t *testing.T) {
	repo := newMemStore()
	svc, _ := newTestService(repo, nil)
	alice := repo.seed("alice", 100)
	bob := repo.seed("bob", 0)

	tests := []struct {
		name     string
		receiver uuid.UUID
		amount   int64
		want     error
	}{
		{name: "zero amount", receiver: bob, amount: 0, want: ErrInvalidAmount},
		{name: "negative amount", receiver: bob, amount: -5, want: ErrInvalidAmount},
		{name: "self transfer", receiver: alice, amount: 5, want: ErrSelfTransfer},
		{name: "over balance", receiver: bob, amount: 101, want: ErrInsufficientBalance},
		{name: "unknown receiver", receiver: uuid.New(), amount: 5, want: ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.TransferPoints(context.Background(), alice, tt.receiver, tt.amount); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got := repo.account(alice).Balance; got != 100 {
				t.Fatalf("sender balance changed to %d", got)
			}
		})
	}
	if got := len(repo.entriesFor(alice)); got != 1 {
		t.Fatalf("expected only the opening entry, got %d", got)
	}
}

func TestTransferPoints_OpposingTransfersConserveTotal(t *testing.T) {
	repo := newMemStore()
	svc, _ := newTestService(repo, nil)
	alice := repo.seed("alice", 50)
	bob := repo.seed("bob", 50)

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := svc.TransferPoints(context.Background(), alice, bob, 7)
			done <- err
		}()
		go func() {
			_, err := svc.TransferPoints(context.Background(), bob, alice, 3)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil && !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	total := repo.account(alice).Balance + repo.account(bob).Balance
	if total != 100 {
		t.Fatalf("expected total 100, got %d", total)
	}
	assertLedgerConsistent(t, repo)
}
