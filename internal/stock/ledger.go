package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
)

const conflictBackoff = 50 * time.Millisecond

// Ledger is the single point of truth for whether a copy of a title is free.
// All quantity changes go through it; callers pass the transaction their unit
// of work runs in, or nil for a standalone operation.
type Ledger struct {
	repo Repository
	logg *logger.Logger
}

// NewLedger wires the ledger to its repository.
func NewLedger(repo Repository, logg *logger.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Ledger{repo: repo, logg: logg}, nil
}

// Decrement claims one free unit of the title and returns the stock record
// the unit came from. A title whose record shows stock but whose guarded
// update affects zero rows lost a race to a concurrent claim; that conflict is
// retried once with a short backoff before surfacing as unavailable.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, titleID uuid.UUID) (*models.StockRecord, error) {
	repo := l.repo.WithTx(tx)

	record, err := repo.FindByTitle(ctx, titleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "title is not stocked")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	if record.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "no copies available")
	}

	backoff := retry.WithMaxRetries(1, retry.NewConstant(conflictBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, derr := repo.Decrement(ctx, titleID)
		if derr != nil {
			return derr
		}
		if !ok {
			l.logg.Warn(l.logg.WithTitleID(ctx, titleID.String()), "stock decrement lost race")
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeConflict, "stock decrement lost race"))
		}
		return nil
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "no copies available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	return record, nil
}

// Increment returns one unit of the title to general stock.
func (l *Ledger) Increment(ctx context.Context, tx *gorm.DB, titleID uuid.UUID) error {
	ok, err := l.repo.WithTx(tx).Increment(ctx, titleID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "title is not stocked")
	}
	return nil
}

// IsAvailable reports whether at least one copy of the title is free.
func (l *Ledger) IsAvailable(ctx context.Context, tx *gorm.DB, titleID uuid.UUID) (bool, error) {
	record, err := l.repo.WithTx(tx).FindByTitle(ctx, titleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "title is not stocked")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return record.IsAvailable(), nil
}

// SetQuantity stocks the title with an absolute copy count. Used by
// administrative stocking; the caller is responsible for auditing.
func (l *Ledger) SetQuantity(ctx context.Context, tx *gorm.DB, titleID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	record := &models.StockRecord{TitleID: titleID, Quantity: quantity}
	if err := l.repo.WithTx(tx).Upsert(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert stock record")
	}
	return nil
}
