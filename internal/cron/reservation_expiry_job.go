package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/reservations"
	"github.com/calebmorton/shelfline-backend/internal/stock"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
	"github.com/calebmorton/shelfline-backend/pkg/metrics"
)

const defaultExpiryWindowHours = 48

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationExpiryJobParams configure the hold-expiry sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Reservations reservations.Repository
	Ledger       *stock.Ledger
	History      history.Sink
	Metrics      *metrics.SweepMetrics
	WindowHours  int
}

// NewReservationExpiryJob builds the sweep that reclaims holds left unclaimed
// past the pickup window.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history sink required")
	}
	window := params.WindowHours
	if window <= 0 {
		window = defaultExpiryWindowHours
	}
	return &reservationExpiryJob{
		logg:    params.Logger,
		db:      params.DB,
		resv:    params.Reservations,
		ledger:  params.Ledger,
		history: params.History,
		metrics: params.Metrics,
		window:  time.Duration(window) * time.Hour,
		now:     time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	db      txRunner
	resv    reservations.Repository
	ledger  *stock.Ledger
	history history.Sink
	metrics *metrics.SweepMetrics
	window  time.Duration
	now     func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

// Run reclaims every hold whose pickup window has elapsed. Each reservation
// is expired in its own transaction with an idempotent re-check, and the
// cancellation signal is honored between records, so an interrupted sweep
// simply finishes the remainder on the next tick.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	stale, err := j.resv.ListAvailableBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query expired holds: %w", err)
	}

	var errs []error
	count := 0
	for _, reservation := range stale {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := j.expireOne(ctx, reservation, cutoff); err != nil {
			errs = append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		count++
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(j.Name(), count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": count,
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *reservationExpiryJob) expireOne(ctx context.Context, reservation models.Reservation, cutoff time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.resv.WithTx(tx)
		current, err := repo.FindByID(ctx, reservation.ID)
		if err != nil {
			return err
		}
		// Re-check inside the transaction; the member may have picked the
		// copy up between the query and this record.
		if current.Status != enums.ReservationStatusAvailable {
			return nil
		}
		if current.AvailableAt == nil || current.AvailableAt.After(cutoff) {
			return nil
		}
		updates := map[string]any{
			"status":              enums.ReservationStatusExpired,
			"assigned_stock_unit": nil,
		}
		if err := repo.UpdateFields(ctx, current.ID, updates); err != nil {
			return err
		}
		if err := j.ledger.Increment(ctx, tx, current.TitleID); err != nil {
			return err
		}
		j.history.Record(ctx, tx, history.Entry{
			MemberID:      current.MemberID,
			EventType:     enums.HistoryEventReservationExpired,
			ReservationID: &current.ID,
			Note:          "hold unclaimed past the pickup window",
		})
		return nil
	})
}
