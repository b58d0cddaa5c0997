package circulation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/cron"
	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/loans"
	"github.com/calebmorton/shelfline-backend/internal/members"
	"github.com/calebmorton/shelfline-backend/internal/notify"
	"github.com/calebmorton/shelfline-backend/internal/policy"
	"github.com/calebmorton/shelfline-backend/internal/reservations"
	"github.com/calebmorton/shelfline-backend/internal/stock"
	"github.com/calebmorton/shelfline-backend/pkg/config"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
	"github.com/calebmorton/shelfline-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params configure the circulation service.
type Params struct {
	DB      *gorm.DB
	Runner  txRunner
	Logger  *logger.Logger
	Config  config.CirculationConfig
	Metrics *metrics.SweepMetrics
}

// Service is the in-process surface of the circulation engine. The API layer
// calls its loan and reservation operations; the cron worker drives the two
// sweeps through the same instance.
type Service struct {
	engine  *loans.Engine
	queue   *reservations.Queue
	ledger  *stock.Ledger
	notices *notify.Service

	expiry   cron.Job
	reminder cron.Job
}

// New assembles the circulation engine on top of the shared database handle.
func New(params Params) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database handle required")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	logg := params.Logger
	ledger, err := stock.NewLedger(stock.NewRepository(params.DB), logg)
	if err != nil {
		return nil, err
	}
	notices, err := notify.NewService(notify.NewRepository(params.DB))
	if err != nil {
		return nil, err
	}
	audit, err := history.NewService(history.NewRepository(params.DB), logg)
	if err != nil {
		return nil, err
	}
	directory, err := members.NewDirectory(params.DB)
	if err != nil {
		return nil, err
	}

	resvRepo := reservations.NewRepository(params.DB)
	handoff, err := reservations.NewHandoff(resvRepo, ledger, notices, audit, logg)
	if err != nil {
		return nil, err
	}
	queue, err := reservations.NewQueue(resvRepo, ledger, directory, handoff, audit, params.Runner, logg)
	if err != nil {
		return nil, err
	}

	loanPolicy, err := policy.FromConfig(params.Config)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "circulation config")
	}
	loanRepo := loans.NewRepository(params.DB)
	engine, err := loans.NewEngine(loanRepo, ledger, directory, handoff, loanPolicy, audit, params.Runner, logg)
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:       logg,
		DB:           params.Runner,
		Reservations: resvRepo,
		Ledger:       ledger,
		History:      audit,
		Metrics:      params.Metrics,
		WindowHours:  params.Config.ReservationExpiryHours,
	})
	if err != nil {
		return nil, err
	}
	reminder, err := cron.NewLoanReminderJob(cron.LoanReminderJobParams{
		Logger:      logg,
		Loans:       loanRepo,
		Notify:      notices,
		History:     audit,
		Policy:      loanPolicy,
		Metrics:     params.Metrics,
		WindowHours: params.Config.DueSoonWindowHours,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		engine:   engine,
		queue:    queue,
		ledger:   ledger,
		notices:  notices,
		expiry:   expiry,
		reminder: reminder,
	}, nil
}

// CreateLoan lends one copy of the title to the member.
func (s *Service) CreateLoan(ctx context.Context, memberID, titleID uuid.UUID) (*models.Loan, error) {
	return s.engine.Create(ctx, memberID, titleID)
}

// ReturnLoan settles the loan and hands the freed copy to the wait list.
func (s *Service) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*loans.ReturnResult, error) {
	return s.engine.Return(ctx, loanID)
}

// UpdateLoan applies a staff correction to a loan record.
func (s *Service) UpdateLoan(ctx context.Context, loanID uuid.UUID, input loans.UpdateInput) (*models.Loan, error) {
	return s.engine.AdminUpdate(ctx, loanID, input)
}

// DeleteLoan removes a loan record without circulation side effects.
func (s *Service) DeleteLoan(ctx context.Context, loanID uuid.UUID) error {
	return s.engine.AdminDelete(ctx, loanID)
}

// CreateReservation queues the member for a title with no free copies.
func (s *Service) CreateReservation(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error) {
	return s.queue.Create(ctx, memberID, titleID)
}

// CancelReservation withdraws the member's reservation.
func (s *Service) CancelReservation(ctx context.Context, memberID, reservationID uuid.UUID) error {
	return s.queue.Cancel(ctx, memberID, reservationID)
}

// ListPendingReservations returns the title's wait list in promotion order.
func (s *Service) ListPendingReservations(ctx context.Context, titleID uuid.UUID) ([]models.Reservation, error) {
	return s.queue.ListPendingForTitle(ctx, titleID)
}

// SetStock records the absolute number of free copies of a title.
func (s *Service) SetStock(ctx context.Context, titleID uuid.UUID, quantity int) error {
	return s.ledger.SetQuantity(ctx, nil, titleID, quantity)
}

// Notifications lists a member's in-app notifications.
func (s *Service) Notifications(ctx context.Context, memberID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	return s.notices.List(ctx, memberID, unreadOnly)
}

// RunExpirySweep reclaims holds left unclaimed past the pickup window.
func (s *Service) RunExpirySweep(ctx context.Context) error {
	return s.expiry.Run(ctx)
}

// RunReminderSweep notifies members about due-soon and overdue loans.
func (s *Service) RunReminderSweep(ctx context.Context) error {
	return s.reminder.Run(ctx)
}

// Jobs exposes the background sweeps for registration with the cron worker.
func (s *Service) Jobs() []cron.Job {
	return []cron.Job{s.expiry, s.reminder}
}
