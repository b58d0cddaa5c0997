package policy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/calebmorton/shelfline-backend/pkg/config"
)

// LoanPolicy is the process-wide lending rule table. Immutable after
// construction.
type LoanPolicy struct {
	MaxActiveLoansPerMember int
	LoanDurationDays        int
	LateFeePerDay           decimal.Decimal
}

// FromConfig builds the policy from the circulation configuration. The fee
// string is parsed here so a config assembled in code is treated the same as
// one read from the environment.
func FromConfig(cfg config.CirculationConfig) (LoanPolicy, error) {
	fee, err := cfg.LateFee()
	if err != nil {
		return LoanPolicy{}, err
	}
	return LoanPolicy{
		MaxActiveLoansPerMember: cfg.MaxActiveLoansPerMember,
		LoanDurationDays:        cfg.LoanDurationDays,
		LateFeePerDay:           fee,
	}, nil
}

// DueDate returns the due date for a loan created at the given time.
func (p LoanPolicy) DueDate(loanDate time.Time) time.Time {
	return loanDate.AddDate(0, 0, p.LoanDurationDays)
}

// DaysLate returns the number of whole calendar days the return is past the
// due date. Fractional days truncate: a return on the due date is zero days
// late regardless of time of day.
func (p LoanPolicy) DaysLate(dueDate, returnedAt time.Time) int {
	due := truncateToDate(dueDate.UTC())
	returned := truncateToDate(returnedAt.UTC())
	if !returned.After(due) {
		return 0
	}
	return int(returned.Sub(due).Hours() / 24)
}

// FineFor computes the fine owed for a loan returned at the given time.
func (p LoanPolicy) FineFor(dueDate, returnedAt time.Time) decimal.Decimal {
	daysLate := p.DaysLate(dueDate, returnedAt)
	if daysLate <= 0 {
		return decimal.Zero
	}
	return p.LateFeePerDay.Mul(decimal.NewFromInt(int64(daysLate)))
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
