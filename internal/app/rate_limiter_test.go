package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseWindowResult(t *testing.T) {
	tests := []struct {
		name      string
		raw       interface{}
		wantCount int
		wantRetry int
		wantErr   bool
	}{
		{name: "accepted", raw: []interface{}{int64(3), int64(0)}, wantCount: 3, wantRetry: 0},
		{name: "rejected waits for oldest", raw: []interface{}{int64(11), int64(41500)}, wantCount: 11, wantRetry: 42},
		{name: "sub-second wait rounds up", raw: []interface{}{int64(11), int64(20)}, wantCount: 11, wantRetry: 1},
		{name: "clock skew clamps to zero", raw: []interface{}{int64(11), int64(-5)}, wantCount: 11, wantRetry: 0},
		{name: "bad shape", raw: "nope", wantErr: true},
		{name: "bad count", raw: []interface{}{"3", int64(1)}, wantErr: true},
		{name: "bad wait", raw: []interface{}{int64(3), "soon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retry, err := parseWindowResult(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr {
				return
			}
			if count != tt.wantCount || retry != tt.wantRetry {
				t.Fatalf("expected (%d, %d), got (%d, %d)", tt.wantCount, tt.wantRetry, count, retry)
			}
		})
	}
}

func TestRedisRateLimiter_KeyAndNilClient(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "points:rl:")
	if got := limiter.Key("transfer", "abc"); got != "points:rl:transfer:abc" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := NewRedisRateLimiter(nil, "").Key("redeem", "x"); got != "points:rate_limit:redeem:x" {
		t.Fatalf("unexpected default key %q", got)
	}
	count, retry, err := limiter.ConsumeRateLimit(context.Background(), "transfer", "abc", 10, time.Minute)
	if err != nil || count != 0 || retry != 0 {
		t.Fatalf("nil client must allow: %d %d %v", count, retry, err)
	}
}

type stubLimiter struct {
	count  int
	retry  int
	err    error
	limits []int
}

func (s *stubLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	s.count++
	s.limits = append(s.limits, limit)
	return s.count, s.retry, s.err
}

func TestEnforceRateLimit(t *testing.T) {
	repo := newMemStore()
	svc, _ := newTestService(repo, nil)
	svc.settings.RateLimitPerMin = 2
	limiter := &stubLimiter{retry: 30}
	svc.SetRateLimiter(limiter)
	id := repo.seed("spender", 100)

	for i := 0; i < 2; i++ {
		if _, err := svc.RedeemPoints(context.Background(), id, 1); err != nil {
			t.Fatalf("redeem %d: %v", i+1, err)
		}
	}
	_, err := svc.RedeemPoints(context.Background(), id, 1)
	var rle *RateLimitError
	if !errors.As(err, &rle) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfterSeconds != 30 || rle.Scope != "redeem" {
		t.Fatalf("unexpected rate limit error: %+v", rle)
	}
	if got := repo.account(id).Balance; got != 98 {
		t.Fatalf("rate limited request must not debit, balance %d", got)
	}

	limiter.err = errors.New("redis down")
	if _, err := svc.RedeemPoints(context.Background(), id, 1); err != nil {
		t.Fatalf("limiter failure must fail open, got %v", err)
	}
}

func TestEnforceRateLimit_ScopedBudgets(t *testing.T) {
	repo := newMemStore()
	svc, _ := newTestService(repo, nil)
	svc.settings.RateLimitPerMin = 60
	svc.settings.RateLimits = map[string]int{"redeem": 1, "transfer": 0}
	limiter := &stubLimiter{}
	svc.SetRateLimiter(limiter)
	alice := repo.seed("alice", 100)
	bob := repo.seed("bob", 0)

	if _, err := svc.RedeemPoints(context.Background(), alice, 1); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := svc.RedeemPoints(context.Background(), alice, 1)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError on the scoped budget, got %v", err)
	}
	if rle.RetryAfterSeconds != 1 {
		t.Fatalf("a rejected request must carry a positive retry hint, got %d", rle.RetryAfterSeconds)
	}
	if len(limiter.limits) != 2 || limiter.limits[0] != 1 {
		t.Fatalf("expected the redeem budget of 1 to be passed, got %v", limiter.limits)
	}

	calls := limiter.count
	for i := 0; i < 3; i++ {
		if _, err := svc.TransferPoints(context.Background(), alice, bob, 1); err != nil {
			t.Fatalf("transfer %d with a disabled scope: %v", i+1, err)
		}
	}
	if limiter.count != calls {
		t.Fatalf("a zero scoped budget must skip the limiter, got %d extra calls", limiter.count-calls)
	}
}
