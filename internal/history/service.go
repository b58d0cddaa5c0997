package history

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
)

// Entry captures the immutable data one audit record requires.
type Entry struct {
	MemberID      uuid.UUID
	EventType     enums.HistoryEventType
	LoanID        *uuid.UUID
	ReservationID *uuid.UUID
	Note          string
}

// Sink is the append-only audit trail consumed by the circulation core.
// Recording is fire-and-forget: failures are logged, never propagated to the
// caller of the triggering operation.
type Sink interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a history sink with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Sink, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) {
	if entry.MemberID == uuid.Nil || !entry.EventType.IsValid() {
		s.logg.Warn(ctx, "dropping malformed history entry")
		return
	}

	event := &models.HistoryEvent{
		ID:            uuid.New(),
		MemberID:      entry.MemberID,
		EventType:     entry.EventType,
		LoanID:        entry.LoanID,
		ReservationID: entry.ReservationID,
		Note:          entry.Note,
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"member_id":  entry.MemberID,
			"event_type": entry.EventType,
		})
		s.logg.Error(logCtx, "failed to record history event", err)
	}
}
