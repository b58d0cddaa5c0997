package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/members"
	"github.com/calebmorton/shelfline-backend/internal/stock"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
	"github.com/calebmorton/shelfline-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Queue manages the member-facing reservation lifecycle: joining the wait
// list for an unavailable title, listing the queue, and cancelling.
type Queue struct {
	repo    Repository
	ledger  *stock.Ledger
	members members.Directory
	handoff *Handoff
	history history.Sink
	runner  txRunner
	logg    *logger.Logger
	now     func() time.Time
}

// NewQueue wires the queue to its collaborators.
func NewQueue(repo Repository, ledger *stock.Ledger, directory members.Directory, handoff *Handoff, audit history.Sink, runner txRunner, logg *logger.Logger) (*Queue, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservations repository required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock ledger required")
	}
	if directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "member directory required")
	}
	if handoff == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "allocation handoff required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history sink required")
	}
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Queue{
		repo:    repo,
		ledger:  ledger,
		members: directory,
		handoff: handoff,
		history: audit,
		runner:  runner,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Create queues the member for the title. Reservations exist only to wait for
// titles with no free copy; when one is free the member borrows directly.
func (q *Queue) Create(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error) {
	exists, err := q.members.Exists(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up member")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}

	if _, err := q.repo.FindActiveByMemberAndTitle(ctx, memberID, titleID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "member already has an active reservation for this title")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing reservation")
	}

	reservation := &models.Reservation{
		ID:        uuid.New(),
		TitleID:   titleID,
		MemberID:  memberID,
		Status:    enums.ReservationStatusPending,
		CreatedAt: q.now().UTC(),
	}

	err = q.runner.WithTx(ctx, func(tx *gorm.DB) error {
		available, aerr := q.ledger.IsAvailable(ctx, tx, titleID)
		if aerr != nil {
			return aerr
		}
		if available {
			return pkgerrors.New(pkgerrors.CodePolicyViolation, "copies are available; borrow directly instead of reserving")
		}
		if cerr := q.repo.WithTx(tx).Create(ctx, reservation); cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create reservation")
		}
		q.history.Record(ctx, tx, history.Entry{
			MemberID:      memberID,
			EventType:     enums.HistoryEventReservationPlaced,
			ReservationID: &reservation.ID,
			Note:          "joined wait list",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := q.logg.WithFields(q.logg.WithMemberID(ctx, memberID.String()), map[string]any{
		"reservation_id": reservation.ID.String(),
		"title_id":       titleID.String(),
	})
	q.logg.Info(logCtx, "reservation created")
	return reservation, nil
}

// ListPendingForTitle returns the title's wait list in promotion order.
func (q *Queue) ListPendingForTitle(ctx context.Context, titleID uuid.UUID) ([]models.Reservation, error) {
	reservations, err := q.repo.ListPendingForTitle(ctx, titleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending reservations")
	}
	return reservations, nil
}

// Cancel withdraws the member's reservation. Cancelling a hold frees its unit
// back to stock, which immediately offers it to the next member in line.
func (q *Queue) Cancel(ctx context.Context, memberID, reservationID uuid.UUID) error {
	reservation, err := q.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation.MemberID != memberID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if !reservation.IsActive() {
		return pkgerrors.New(pkgerrors.CodePolicyViolation, "reservation is already resolved")
	}

	err = q.runner.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{"status": enums.ReservationStatusCancelled}
		if uerr := q.repo.WithTx(tx).UpdateFields(ctx, reservation.ID, updates); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "cancel reservation")
		}
		if reservation.Status == enums.ReservationStatusAvailable {
			if ierr := q.ledger.Increment(ctx, tx, reservation.TitleID); ierr != nil {
				return ierr
			}
			if _, perr := q.handoff.PromoteOldest(ctx, tx, reservation.TitleID); perr != nil {
				return perr
			}
		}
		q.history.Record(ctx, tx, history.Entry{
			MemberID:      memberID,
			EventType:     enums.HistoryEventReservationCancelled,
			ReservationID: &reservation.ID,
			Note:          "cancelled by member",
		})
		return nil
	})
	if err != nil {
		return err
	}

	logCtx := q.logg.WithField(q.logg.WithMemberID(ctx, memberID.String()), "reservation_id", reservation.ID.String())
	q.logg.Info(logCtx, "reservation cancelled")
	return nil
}

// UpdateInput carries a staff correction to a reservation record.
type UpdateInput struct {
	Status string `json:"status" validate:"required"`
}

// AdminUpdate corrects a reservation's status without touching stock. It is a
// bookkeeping override for staff; circulation side effects stay with the
// member-facing operations.
func (q *Queue) AdminUpdate(ctx context.Context, reservationID uuid.UUID, input UpdateInput) (*models.Reservation, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	status, err := enums.ParseReservationStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown reservation status")
	}

	reservation, err := q.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}

	err = q.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if uerr := q.repo.WithTx(tx).UpdateFields(ctx, reservation.ID, map[string]any{"status": status}); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "update reservation")
		}
		q.history.Record(ctx, tx, history.Entry{
			MemberID:      reservation.MemberID,
			EventType:     enums.HistoryEventReservationCorrected,
			ReservationID: &reservation.ID,
			Note:          "status corrected by staff",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	reservation.Status = status
	return reservation, nil
}

// AdminDelete removes a reservation record outright. Like AdminUpdate it is a
// data correction, not a circulation action, so stock is left alone.
func (q *Queue) AdminDelete(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := q.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}

	return q.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if derr := q.repo.WithTx(tx).Delete(ctx, reservation.ID); derr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, derr, "delete reservation")
		}
		q.history.Record(ctx, tx, history.Entry{
			MemberID:      reservation.MemberID,
			EventType:     enums.HistoryEventReservationCorrected,
			ReservationID: &reservation.ID,
			Note:          "record deleted by staff",
		})
		return nil
	})
}
