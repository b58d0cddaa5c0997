package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/notify"
	"github.com/calebmorton/shelfline-backend/internal/policy"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
	"github.com/calebmorton/shelfline-backend/pkg/metrics"
)

const defaultDueSoonWindowHours = 24

type reminderLoanReader interface {
	ListActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
	ListActiveOverdue(ctx context.Context, asOf time.Time) ([]models.Loan, error)
}

// LoanReminderJobParams configure the loan reminder sweep.
type LoanReminderJobParams struct {
	Logger      *logger.Logger
	Loans       reminderLoanReader
	Notify      notify.Sink
	History     history.Sink
	Policy      policy.LoanPolicy
	Metrics     *metrics.SweepMetrics
	WindowHours int
}

// NewLoanReminderJob builds the sweep that nudges members about loans coming
// due and loans already overdue.
func NewLoanReminderJob(params LoanReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loans == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if params.Notify == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history sink required")
	}
	window := params.WindowHours
	if window <= 0 {
		window = defaultDueSoonWindowHours
	}
	return &loanReminderJob{
		logg:    params.Logger,
		loans:   params.Loans,
		notify:  params.Notify,
		history: params.History,
		policy:  params.Policy,
		metrics: params.Metrics,
		window:  time.Duration(window) * time.Hour,
		now:     time.Now,
	}, nil
}

type loanReminderJob struct {
	logg    *logger.Logger
	loans   reminderLoanReader
	notify  notify.Sink
	history history.Sink
	policy  policy.LoanPolicy
	metrics *metrics.SweepMetrics
	window  time.Duration
	now     func() time.Time
}

func (j *loanReminderJob) Name() string { return "loan-reminder" }

// Run reminds members in two passes: loans due within the window, then loans
// past due. Neither pass mutates loan or stock state. Every tick re-scans all
// active loans, so a loan inside its window is reminded on each tick until it
// is returned.
func (j *loanReminderJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.remindDueSoon(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.remindOverdue(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *loanReminderJob) remindDueSoon(ctx context.Context) error {
	now := j.now().UTC()
	dueSoon, err := j.loans.ListActiveDueBetween(ctx, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("query due-soon loans: %w", err)
	}

	var errs []error
	count := 0
	for _, loan := range dueSoon {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		message := fmt.Sprintf("your loan is due on %s", loan.DueDate.Format("2006-01-02"))
		if err := j.remind(ctx, loan, enums.NotificationKindDueSoon, enums.HistoryEventDueSoonReminder, message); err != nil {
			errs = append(errs, fmt.Errorf("due-soon reminder for loan %s: %w", loan.ID, err))
			continue
		}
		count++
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "due-soon reminder loop complete")
	return multierr.Combine(errs...)
}

func (j *loanReminderJob) remindOverdue(ctx context.Context) error {
	now := j.now().UTC()
	overdue, err := j.loans.ListActiveOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("query overdue loans: %w", err)
	}

	var errs []error
	count := 0
	for _, loan := range overdue {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		daysLate := j.policy.DaysLate(loan.DueDate, now)
		if daysLate < 1 {
			daysLate = 1
		}
		message := fmt.Sprintf("your loan is %d day(s) overdue", daysLate)
		if err := j.remind(ctx, loan, enums.NotificationKindOverdue, enums.HistoryEventOverdueReminder, message); err != nil {
			errs = append(errs, fmt.Errorf("overdue reminder for loan %s: %w", loan.ID, err))
			continue
		}
		count++
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "overdue reminder loop complete")
	return multierr.Combine(errs...)
}

func (j *loanReminderJob) remind(ctx context.Context, loan models.Loan, kind enums.NotificationKind, event enums.HistoryEventType, message string) error {
	if err := j.notify.Notify(ctx, nil, loan.MemberID, kind, message); err != nil {
		return err
	}
	j.history.Record(ctx, nil, history.Entry{
		MemberID:  loan.MemberID,
		EventType: event,
		LoanID:    &loan.ID,
		Note:      message,
	})
	return nil
}
