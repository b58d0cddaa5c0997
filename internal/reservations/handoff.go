package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/notify"
	"github.com/calebmorton/shelfline-backend/internal/stock"
	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
)

// Handoff moves freed copies to waiting members. It promotes the oldest
// pending reservation when a unit comes back and completes a held reservation
// when its member picks the copy up.
type Handoff struct {
	repo    Repository
	ledger  *stock.Ledger
	notify  notify.Sink
	history history.Sink
	logg    *logger.Logger
	now     func() time.Time
}

// NewHandoff wires the handoff to its collaborators.
func NewHandoff(repo Repository, ledger *stock.Ledger, notifier notify.Sink, audit history.Sink, logg *logger.Logger) (*Handoff, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservations repository required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock ledger required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification sink required")
	}
	if audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history sink required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Handoff{
		repo:    repo,
		ledger:  ledger,
		notify:  notifier,
		history: audit,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// PromoteOldest hands the title's freed unit to the head of the queue. The
// caller has already returned the unit to stock, so promotion re-claims it
// through the ledger; if another claimant wins that race the promotion is
// undone and the queue is left untouched. Returns whether a reservation was
// promoted.
func (h *Handoff) PromoteOldest(ctx context.Context, tx *gorm.DB, titleID uuid.UUID) (bool, error) {
	repo := h.repo.WithTx(tx)

	head, err := repo.OldestPendingForTitle(ctx, titleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load queue head")
	}

	availableAt := h.now().UTC()
	updates := map[string]any{
		"status":       enums.ReservationStatusAvailable,
		"available_at": availableAt,
	}
	if err := repo.UpdateFields(ctx, head.ID, updates); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote reservation")
	}

	record, err := h.ledger.Decrement(ctx, tx, titleID)
	if err != nil {
		// The freed unit was claimed by someone else before the queue got
		// to it. Put the head back and report nothing promoted.
		undo := map[string]any{
			"status":       enums.ReservationStatusPending,
			"available_at": nil,
		}
		if undoErr := repo.UpdateFields(ctx, head.ID, undo); undoErr != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, undoErr, "undo promotion")
		}
		if pkgerrors.HasCode(err, pkgerrors.CodePolicyViolation) || pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			logCtx := h.logg.WithField(h.logg.WithTitleID(ctx, titleID.String()), "reservation_id", head.ID.String())
			h.logg.Warn(logCtx, "freed unit claimed before promotion")
			return false, nil
		}
		return false, err
	}

	if err := repo.UpdateFields(ctx, head.ID, map[string]any{"assigned_stock_unit": record.ID}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign stock unit")
	}

	if nerr := h.notify.Notify(ctx, tx, head.MemberID, enums.NotificationKindReservationReady, "a copy you reserved is ready for pickup"); nerr != nil {
		h.logg.Error(h.logg.WithMemberID(ctx, head.MemberID.String()), "reservation ready notification failed", nerr)
	}
	h.history.Record(ctx, tx, history.Entry{
		MemberID:      head.MemberID,
		EventType:     enums.HistoryEventReservationPromoted,
		ReservationID: &head.ID,
		Note:          "reservation promoted to available",
	})
	return true, nil
}

// ConsumeAvailable completes the member's held reservation for the title so a
// loan can reuse its unit instead of claiming a fresh one. Returns the
// completed reservation, or ok=false when the member holds none.
func (h *Handoff) ConsumeAvailable(ctx context.Context, tx *gorm.DB, memberID, titleID uuid.UUID) (*models.Reservation, bool, error) {
	repo := h.repo.WithTx(tx)

	reservation, err := repo.FindAvailableByMemberAndTitle(ctx, memberID, titleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load held reservation")
	}

	if err := repo.UpdateFields(ctx, reservation.ID, map[string]any{"status": enums.ReservationStatusCompleted}); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete reservation")
	}
	h.history.Record(ctx, tx, history.Entry{
		MemberID:      memberID,
		EventType:     enums.HistoryEventReservationCompleted,
		ReservationID: &reservation.ID,
		Note:          "held copy picked up as loan",
	})
	return reservation, true, nil
}
