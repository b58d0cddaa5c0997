package loans

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/internal/history"
	"github.com/calebmorton/shelfline-backend/internal/members"
	"github.com/calebmorton/shelfline-backend/internal/policy"
	"github.com/calebmorton/shelfline-backend/internal/reservations"
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

// ReturnResult reports the outcome of returning a loan.
type ReturnResult struct {
	Fine                decimal.Decimal
	ReservationPromoted bool
}

// Engine owns the loan lifecycle: deciding whether a member may borrow,
// claiming the copy, and settling the return (fine plus handing the freed
// copy to the wait list).
type Engine struct {
	repo    Repository
	ledger  *stock.Ledger
	members members.Directory
	handoff *reservations.Handoff
	policy  policy.LoanPolicy
	history history.Sink
	runner  txRunner
	logg    *logger.Logger
	now     func() time.Time
}

// NewEngine wires the engine to its collaborators.
func NewEngine(repo Repository, ledger *stock.Ledger, directory members.Directory, handoff *reservations.Handoff, loanPolicy policy.LoanPolicy, audit history.Sink, runner txRunner, logg *logger.Logger) (*Engine, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loans repository required")
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
	return &Engine{
		repo:    repo,
		ledger:  ledger,
		members: directory,
		handoff: handoff,
		policy:  loanPolicy,
		history: audit,
		runner:  runner,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Create lends one copy of the title to the member. A member holding an
// available reservation for the title picks up the unit that was already set
// aside for them; everyone else claims a fresh unit through the ledger. The
// loan-limit check happens before any stock is touched, so a rejected request
// never mutates the ledger.
func (e *Engine) Create(ctx context.Context, memberID, titleID uuid.UUID) (*models.Loan, error) {
	exists, err := e.members.Exists(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up member")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}

	active, err := e.repo.CountActiveByMember(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active loans")
	}
	if active >= int64(e.policy.MaxActiveLoansPerMember) {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "member has reached the active loan limit")
	}

	loanDate := e.now().UTC()
	loan := &models.Loan{
		ID:       uuid.New(),
		TitleID:  titleID,
		MemberID: memberID,
		LoanDate: loanDate,
		DueDate:  e.policy.DueDate(loanDate),
		Fine:     decimal.Zero,
	}

	err = e.runner.WithTx(ctx, func(tx *gorm.DB) error {
		held, ok, herr := e.handoff.ConsumeAvailable(ctx, tx, memberID, titleID)
		if herr != nil {
			return herr
		}
		if ok {
			// The promoted reservation already holds a unit off the shelf.
			loan.StockRecordID = *held.AssignedStockUnit
		} else {
			record, derr := e.ledger.Decrement(ctx, tx, titleID)
			if derr != nil {
				return derr
			}
			loan.StockRecordID = record.ID
		}
		if cerr := e.repo.WithTx(tx).Create(ctx, loan); cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create loan")
		}
		e.history.Record(ctx, tx, history.Entry{
			MemberID:  memberID,
			EventType: enums.HistoryEventLoan,
			LoanID:    &loan.ID,
			Note:      "copy lent",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.logg.WithFields(e.logg.WithLoanID(ctx, loan.ID.String()), map[string]any{
		"member_id": memberID.String(),
		"title_id":  titleID.String(),
		"due_date":  loan.DueDate,
	})
	e.logg.Info(logCtx, "loan created")
	return loan, nil
}

// Return settles the loan: sets the return date, computes the late fine,
// restores the copy to stock, and offers it to the wait list. The circulation
// facts commit together; only the side notifications are best-effort.
func (e *Engine) Return(ctx context.Context, loanID uuid.UUID) (*ReturnResult, error) {
	loan, err := e.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	if loan.ReturnDate != nil {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "loan is already returned")
	}

	returnedAt := e.now().UTC()
	fine := e.policy.FineFor(loan.DueDate, returnedAt)
	result := &ReturnResult{Fine: fine}

	err = e.runner.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{
			"return_date": returnedAt,
			"fine":        fine,
		}
		if uerr := e.repo.WithTx(tx).UpdateFields(ctx, loan.ID, updates); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "settle loan")
		}
		if ierr := e.ledger.Increment(ctx, tx, loan.TitleID); ierr != nil {
			return ierr
		}
		promoted, perr := e.handoff.PromoteOldest(ctx, tx, loan.TitleID)
		if perr != nil {
			return perr
		}
		result.ReservationPromoted = promoted
		e.history.Record(ctx, tx, history.Entry{
			MemberID:  loan.MemberID,
			EventType: enums.HistoryEventReturn,
			LoanID:    &loan.ID,
			Note:      "copy returned",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := e.logg.WithFields(e.logg.WithLoanID(ctx, loan.ID.String()), map[string]any{
		"fine":                 fine.StringFixed(2),
		"reservation_promoted": result.ReservationPromoted,
	})
	e.logg.Info(logCtx, "loan returned")
	return result, nil
}

// UpdateInput carries a staff correction to a loan record.
type UpdateInput struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// AdminUpdate corrects a loan's due date. A bookkeeping override for staff:
// no fine is computed and stock is left alone.
func (e *Engine) AdminUpdate(ctx context.Context, loanID uuid.UUID, input UpdateInput) (*models.Loan, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	loan, err := e.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}

	err = e.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if uerr := e.repo.WithTx(tx).UpdateFields(ctx, loan.ID, map[string]any{"due_date": input.DueDate.UTC()}); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "update loan")
		}
		e.history.Record(ctx, tx, history.Entry{
			MemberID:  loan.MemberID,
			EventType: enums.HistoryEventLoanCorrected,
			LoanID:    &loan.ID,
			Note:      "due date corrected by staff",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	loan.DueDate = input.DueDate.UTC()
	return loan, nil
}

// AdminDelete removes a loan record outright. Like AdminUpdate it is a data
// correction, not a return: no fine, no stock movement, no promotion.
func (e *Engine) AdminDelete(ctx context.Context, loanID uuid.UUID) error {
	loan, err := e.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}

	return e.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if derr := e.repo.WithTx(tx).Delete(ctx, loan.ID); derr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, derr, "delete loan")
		}
		e.history.Record(ctx, tx, history.Entry{
			MemberID:  loan.MemberID,
			EventType: enums.HistoryEventLoanDeleted,
			LoanID:    &loan.ID,
			Note:      "record deleted by staff",
		})
		return nil
	})
}
