/**
 * @description
 * Daily login accrual rules. A window covers one calendar month: when it opens a
 * monthly target is drawn, and each claimed day pays floor(target / daysInMonth)
 * until the target is met. The streak counts consecutive claimed calendar days and
 * is carried across window boundaries.
 */

package domain

import "time"

// DailyLoginReason explains the outcome of a claim.
type DailyLoginReason string

const (
	DailyLoginClaimed         DailyLoginReason = "claimed"
	DailyLoginAlreadyClaimed  DailyLoginReason = "already_claimed"
	DailyLoginMonthlyCapReach DailyLoginReason = "monthly_cap_reached"
)

// MinMonthlyTarget is the smallest target that still pays at least one point a
// day in a 31-day month.
const MinMonthlyTarget = 31

// DailyLoginState is the accrual state embedded in an Account.
// A zero WindowYear means no window has been opened yet.
type DailyLoginState struct {
	WindowMonth   int        `json:"month"`
	WindowYear    int        `json:"year"`
	MonthlyTarget int64      `json:"monthly_target"`
	MonthlyEarned int64      `json:"monthly_earned"`
	LastClaimDate *time.Time `json:"last_claim_date,omitempty"`
	Streak        int        `json:"streak"`
}

// DailyLoginOutcome is the pure result of applying a claim to a state.
type DailyLoginOutcome struct {
	State        DailyLoginState
	Reason       DailyLoginReason
	EarnedToday  int64
	WindowOpened bool
}

// DailyLoginResult is returned to the caller of a daily login claim.
type DailyLoginResult struct {
	EarnedToday   int64            `json:"earned_today"`
	StreakBonus   int64            `json:"streak_bonus"`
	Reason        DailyLoginReason `json:"reason"`
	Balance       int64            `json:"balance"`
	Streak        int              `json:"streak"`
	MonthlyTarget int64            `json:"monthly_target"`
	MonthlyEarned int64            `json:"monthly_earned"`
}

// CalendarDate truncates t to its calendar day in loc, expressed as midnight UTC so
// dates compare with Equal regardless of the zone they were computed in.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the month containing date.
func DaysInMonth(date time.Time) int {
	return time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// HasWindow reports whether an accrual window has ever been opened.
func (s DailyLoginState) HasWindow() bool {
	return s.WindowYear != 0
}

// InWindow reports whether today falls in the state's current window.
func (s DailyLoginState) InWindow(today time.Time) bool {
	return s.HasWindow() && s.WindowYear == today.Year() && s.WindowMonth == int(today.Month())
}

// ClaimedOn reports whether the last recorded claim happened on date.
func (s DailyLoginState) ClaimedOn(date time.Time) bool {
	return s.LastClaimDate != nil && s.LastClaimDate.Equal(date)
}

// Claim applies one claim attempt for today. drawTarget is called only when a new
// window opens. The receiver is not modified.
func (s DailyLoginState) Claim(today time.Time, drawTarget func() int64) DailyLoginOutcome {
	next := s
	out := DailyLoginOutcome{}

	if !next.InWindow(today) {
		next.WindowMonth = int(today.Month())
		next.WindowYear = today.Year()
		next.MonthlyTarget = drawTarget()
		next.MonthlyEarned = 0
		out.WindowOpened = true
	}

	if next.ClaimedOn(today) {
		out.State = next
		out.Reason = DailyLoginAlreadyClaimed
		return out
	}

	daily := next.MonthlyTarget / int64(DaysInMonth(today))
	if next.MonthlyEarned >= next.MonthlyTarget || daily <= 0 {
		out.State = next
		out.Reason = DailyLoginMonthlyCapReach
		return out
	}
	if remaining := next.MonthlyTarget - next.MonthlyEarned; daily > remaining {
		daily = remaining
	}

	yesterday := today.AddDate(0, 0, -1)
	if next.ClaimedOn(yesterday) {
		next.Streak++
	} else {
		next.Streak = 1
	}
	claimed := today
	next.LastClaimDate = &claimed
	next.MonthlyEarned += daily

	out.State = next
	out.Reason = DailyLoginClaimed
	out.EarnedToday = daily
	return out
}

// StreakBonuses maps a streak length to the bonus paid when it is reached.
type StreakBonuses map[int]int64

// For returns the bonus for reaching streak, or 0.
func (b StreakBonuses) For(streak int) int64 {
	if b == nil {
		return 0
	}
	return b[streak]
}
