package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedTarget(v int64) func() int64 {
	return func() int64 { return v }
}

func TestDailyLoginClaim_FirstClaimOpensWindow(t *testing.T) {
	out := DailyLoginState{}.Claim(date(2026, time.September, 1), fixedTarget(300))

	if !out.WindowOpened {
		t.Fatal("expected a new window to open")
	}
	if out.Reason != DailyLoginClaimed {
		t.Fatalf("expected claimed, got %s", out.Reason)
	}
	if out.EarnedToday != 10 {
		t.Fatalf("expected 10 points for a 300 target in a 30-day month, got %d", out.EarnedToday)
	}
	if out.State.MonthlyEarned != 10 || out.State.Streak != 1 {
		t.Fatalf("unexpected state: %+v", out.State)
	}
}

func TestDailyLoginClaim_SameDayIsNoop(t *testing.T) {
	today := date(2026, time.September, 1)
	first := DailyLoginState{}.Claim(today, fixedTarget(300))

	second := first.State.Claim(today, func() int64 {
		t.Fatal("target must not be redrawn inside the same window")
		return 0
	})
	if second.Reason != DailyLoginAlreadyClaimed || second.EarnedToday != 0 {
		t.Fatalf("expected already claimed no-op, got %+v", second)
	}
	if second.State.MonthlyEarned != first.State.MonthlyEarned {
		t.Fatal("monthly earned changed on a duplicate claim")
	}
}

func TestDailyLoginClaim_StreakAcrossWindowBoundary(t *testing.T) {
	s := DailyLoginState{}
	for d := 28; d <= 31; d++ {
		s = s.Claim(date(2026, time.August, d), fixedTarget(620)).State
	}
	if s.Streak != 4 {
		t.Fatalf("expected streak 4 at end of August, got %d", s.Streak)
	}

	out := s.Claim(date(2026, time.September, 1), fixedTarget(90))
	if !out.WindowOpened {
		t.Fatal("expected a new window for September")
	}
	if out.State.Streak != 5 {
		t.Fatalf("expected streak to continue to 5 across the boundary, got %d", out.State.Streak)
	}
	if out.State.MonthlyEarned != 3 || out.State.MonthlyTarget != 90 {
		t.Fatalf("unexpected window state: %+v", out.State)
	}
}

func TestDailyLoginClaim_GapResetsStreak(t *testing.T) {
	s := DailyLoginState{}.Claim(date(2026, time.March, 3), fixedTarget(310)).State
	s = s.Claim(date(2026, time.March, 4), fixedTarget(310)).State
	out := s.Claim(date(2026, time.March, 6), fixedTarget(310))

	if out.State.Streak != 1 {
		t.Fatalf("expected streak reset to 1 after a gap, got %d", out.State.Streak)
	}
}

func TestDailyLoginClaim_EarnedNeverExceedsTarget(t *testing.T) {
	tests := []struct {
		name   string
		month  time.Month
		target int64
	}{
		{name: "minimum target long month", month: time.January, target: 50},
		{name: "maximum target february", month: time.February, target: 1000},
		{name: "uneven target thirty days", month: time.April, target: 977},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DailyLoginState{}
			days := DaysInMonth(date(2026, tt.month, 1))
			var total int64
			for d := 1; d <= days; d++ {
				out := s.Claim(date(2026, tt.month, d), fixedTarget(tt.target))
				s = out.State
				total += out.EarnedToday
				if s.MonthlyEarned > s.MonthlyTarget {
					t.Fatalf("day %d: earned %d exceeds target %d", d, s.MonthlyEarned, s.MonthlyTarget)
				}
			}
			if total != s.MonthlyEarned {
				t.Fatalf("paid %d but state recorded %d", total, s.MonthlyEarned)
			}
			if s.Streak != days {
				t.Fatalf("expected streak %d, got %d", days, s.Streak)
			}
		})
	}
}

func TestDailyLoginClaim_CapReached(t *testing.T) {
	s := DailyLoginState{
		WindowMonth:   int(time.May),
		WindowYear:    2026,
		MonthlyTarget: 100,
		MonthlyEarned: 100,
	}
	out := s.Claim(date(2026, time.May, 20), fixedTarget(999))
	if out.Reason != DailyLoginMonthlyCapReach || out.EarnedToday != 0 {
		t.Fatalf("expected cap reached, got %+v", out)
	}
	if out.State.LastClaimDate != nil {
		t.Fatal("a capped claim must not record the day")
	}
}

func TestCalendarDate_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	instant := time.Date(2026, time.June, 30, 22, 30, 0, 0, time.UTC)

	got := CalendarDate(instant, loc)
	if !got.Equal(date(2026, time.July, 1)) {
		t.Fatalf("expected July 1 in UTC+3, got %s", got)
	}
}

func TestStreakBonuses_For(t *testing.T) {
	b := StreakBonuses{7: 500, 30: 3000}
	if b.For(7) != 500 || b.For(30) != 3000 || b.For(8) != 0 {
		t.Fatalf("unexpected bonus lookup")
	}
	var none StreakBonuses
	if none.For(7) != 0 {
		t.Fatal("nil bonuses must pay nothing")
	}
}
