package app

import (
	"context"
	"errors"
	"testing"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/logging"
	"github.com/google/uuid"
)

type stubRegistrar struct {
	calls []domain.RegisterAccountRequest
	err   error
}

func (s *stubRegistrar) RegisterAccount(ctx context.Context, req domain.RegisterAccountRequest) (*domain.Account, bool, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, false, s.err
	}
	return &domain.Account{ID: uuid.New(), UserID: req.UserID, Username: req.Username}, true, nil
}

func TestHandleUserRegistered(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantAck   bool
		wantCalls int
	}{
		{name: "valid event", body: `{"user_id":"u1","username":"ann","referrer_user_id":"u0"}`, wantAck: true, wantCalls: 1},
		{name: "malformed json", body: `{"user_id":`, wantAck: true, wantCalls: 0},
		{name: "incomplete event", body: `{"user_id":"u1"}`, err: ErrInvalidAccount, wantAck: true, wantCalls: 1},
		{name: "transient failure", body: `{"user_id":"u1","username":"ann"}`, err: errors.New("db down"), wantAck: false, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registrar := &stubRegistrar{err: tt.err}
			consumer := NewAccountEventConsumer(registrar, logging.Discard())

			if got := consumer.HandleUserRegistered([]byte(tt.body)); got != tt.wantAck {
				t.Fatalf("expected ack=%v, got %v", tt.wantAck, got)
			}
			if len(registrar.calls) != tt.wantCalls {
				t.Fatalf("expected %d registrar calls, got %d", tt.wantCalls, len(registrar.calls))
			}
			if tt.name == "valid event" && registrar.calls[0].ReferrerUserID != "u0" {
				t.Fatalf("referrer not decoded: %+v", registrar.calls[0])
			}
		})
	}
}
