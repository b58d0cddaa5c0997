package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
	"github.com/calebmorton/shelfline-backend/pkg/logger"
)

func newTestLedger(t *testing.T) (*Ledger, Repository) {
	t.Helper()
	db := newTestDB(t)
	repo := NewRepository(db)
	ledger, err := NewLedger(repo, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger, repo
}

func TestLedgerDecrementUnknownTitle(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	_, err := ledger.Decrement(context.Background(), nil, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedgerDecrementExhaustedStock(t *testing.T) {
	t.Parallel()

	ledger, repo := newTestLedger(t)
	ctx := context.Background()
	titleID := uuid.New()
	if err := ledger.SetQuantity(ctx, nil, titleID, 1); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	record, err := ledger.Decrement(ctx, nil, titleID)
	if err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	if record == nil || record.TitleID != titleID {
		t.Fatalf("decrement must return the claimed stock record, got %+v", record)
	}
	_, err = ledger.Decrement(ctx, nil, titleID)
	if !pkgerrors.HasCode(err, pkgerrors.CodePolicyViolation) {
		t.Fatalf("expected policy violation at zero stock, got %v", err)
	}

	record, rerr := repo.FindByTitle(ctx, titleID)
	if rerr != nil {
		t.Fatalf("find: %v", rerr)
	}
	if record.Quantity != 0 {
		t.Fatalf("quantity must not go negative, got %d", record.Quantity)
	}
}

func TestLedgerAvailability(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	titleID := uuid.New()
	if err := ledger.SetQuantity(ctx, nil, titleID, 1); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	available, err := ledger.IsAvailable(ctx, nil, titleID)
	if err != nil || !available {
		t.Fatalf("expected available, got %v err=%v", available, err)
	}

	if _, err := ledger.Decrement(ctx, nil, titleID); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	available, err = ledger.IsAvailable(ctx, nil, titleID)
	if err != nil || available {
		t.Fatalf("expected unavailable, got %v err=%v", available, err)
	}

	if err := ledger.Increment(ctx, nil, titleID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	available, err = ledger.IsAvailable(ctx, nil, titleID)
	if err != nil || !available {
		t.Fatalf("expected available after increment, got %v err=%v", available, err)
	}
}

func TestLedgerSetQuantityRejectsNegative(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	err := ledger.SetQuantity(context.Background(), nil, uuid.New(), -1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
